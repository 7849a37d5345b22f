package permission

// Input carries a token holder's claims and a handler's requirements.
type Input struct {
	Permissions         []string
	Roles               []string
	RequiredPermissions []string
	RequiredRoles       []string
}

// Evaluator decides whether a token holder satisfies a handler's requirements.
type Evaluator interface {
	Evaluate(in Input) bool
}

// EvaluatorFunc adapts a function to [Evaluator].
type EvaluatorFunc func(in Input) bool

// Evaluate calls f(in).
func (f EvaluatorFunc) Evaluate(in Input) bool {
	return f(in)
}

// Validate applies the evaluation rule with plain string comparison: every
// required permission, and any one required role.
func Validate(in Input) bool {
	if len(in.RequiredPermissions) > 0 {
		held := toSet(in.Permissions)
		for _, p := range in.RequiredPermissions {
			if _, ok := held[p]; !ok {
				return false
			}
		}
	}
	return hasAnyRole(in.Roles, in.RequiredRoles)
}

// MaskEvaluator applies the evaluation rule with permission bitmasks.
type MaskEvaluator struct {
	registry *Registry
}

// NewMaskEvaluator returns an evaluator backed by registry. A nil registry
// falls back to [Validate].
func NewMaskEvaluator(registry *Registry) *MaskEvaluator {
	return &MaskEvaluator{registry: registry}
}

// Evaluate compiles the requirements on every call; use [MaskEvaluator.Requirement] to compile once.
func (e *MaskEvaluator) Evaluate(in Input) bool {
	if e == nil || e.registry == nil {
		return Validate(in)
	}
	return e.Requirement(in.RequiredPermissions, in.RequiredRoles).Satisfied(in.Permissions, in.Roles)
}

// Requirement is a precompiled set of required permissions and roles.
type Requirement struct {
	registry    *Registry
	mask        Mask
	permissions []string
	roles       []string
	unknown     bool
}

// Requirement compiles permissions and roles for repeated evaluation.
func (e *MaskEvaluator) Requirement(permissions, roles []string) Requirement {
	req := Requirement{
		permissions: append([]string(nil), permissions...),
		roles:       append([]string(nil), roles...),
	}
	if e == nil || e.registry == nil {
		return req
	}
	req.registry = e.registry
	mask, ok := e.registry.Compile(permissions)
	req.mask = mask
	req.unknown = !ok
	return req
}

// Satisfied reports whether the held permissions and roles meet the requirement.
func (r Requirement) Satisfied(permissions, roles []string) bool {
	if r.registry == nil {
		return Validate(Input{
			Permissions:         permissions,
			Roles:               roles,
			RequiredPermissions: r.permissions,
			RequiredRoles:       r.roles,
		})
	}
	if r.unknown {
		return false
	}
	if !r.mask.IsZero() {
		held, _ := r.registry.Compile(permissions)
		if !held.ContainsAll(r.mask) {
			return false
		}
	}
	return hasAnyRole(roles, r.roles)
}

func hasAnyRole(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := toSet(held)
	for _, role := range required {
		if _, ok := set[role]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
