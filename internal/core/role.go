package core

import "fmt"

// Role names a network, or both networks together in a combined record.
type Role string

const (
	RoleGen      Role = "gen"
	RoleDis      Role = "dis"
	RoleCombined Role = "combined"
)

// NetworkRoles lists the two trained networks in growth order.
var NetworkRoles = []Role{RoleGen, RoleDis}

// IsNetwork reports whether r names a single network.
func (r Role) IsNetwork() bool {
	return r == RoleGen || r == RoleDis
}

// Roles returns the networks covered by a record of role r.
func (r Role) Roles() []Role {
	if r == RoleCombined {
		return NetworkRoles
	}
	if r.IsNetwork() {
		return []Role{r}
	}
	return nil
}

// ParseRole validates a role token.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleGen, RoleDis, RoleCombined:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Pair holds one value per network.
type Pair[T any] struct {
	Gen T `json:"gen"`
	Dis T `json:"dis"`
}

// Get returns the value for a network role. Other roles yield the zero value.
func (p Pair[T]) Get(r Role) T {
	switch r {
	case RoleGen:
		return p.Gen
	case RoleDis:
		return p.Dis
	default:
		var zero T
		return zero
	}
}

// Set stores v for a network role. Other roles are ignored.
func (p *Pair[T]) Set(r Role, v T) {
	switch r {
	case RoleGen:
		p.Gen = v
	case RoleDis:
		p.Dis = v
	}
}
