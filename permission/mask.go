package permission

const maskWords = 8

// Mask is a fixed 512-bit permission set.
type Mask [maskWords]uint64

func (m *Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	return m[bit/64]&(1<<(uint(bit)%64)) != 0
}

func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	m[bit/64] |= 1 << (uint(bit) % 64)
}

func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	m[bit/64] &^= 1 << (uint(bit) % 64)
}

// ContainsAll reports whether every bit of required is set in m.
func (m *Mask) ContainsAll(required Mask) bool {
	for i := range m {
		if m[i]&required[i] != required[i] {
			return false
		}
	}
	return true
}

func (m *Mask) IsZero() bool {
	return *m == Mask{}
}
