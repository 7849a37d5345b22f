package permission

import (
	"errors"
	"sync"
)

// MaxBits is the widest mask the registry can assign bits in.
const MaxBits = maskWords * 64

// Registry maps permission names to bit positions within a [Mask].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty permission [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// NewRegistryFrom registers every name in order and freezes the registry.
func NewRegistryFrom(names ...string) (*Registry, error) {
	r := NewRegistry()
	for _, name := range names {
		if _, err := r.Register(name); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}

// Register assigns the next available bit to the named permission.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= MaxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit assigned to name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission assigned to bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations. Called once guards are configured.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Compile builds a mask holding the bits of names. Unknown names are reported
// through ok=false; their bits are simply absent from the mask.
func (r *Registry) Compile(names []string) (mask Mask, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ok = true
	for _, name := range names {
		bit, known := r.nameToBit[name]
		if !known {
			ok = false
			continue
		}
		mask.Set(bit)
	}
	return mask, ok
}
