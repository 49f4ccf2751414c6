package model

import "fmt"

// Role is a capability level over a shared resource. Roles form a total
// order: View < Edit < Admin. The zero value means "no access".
type Role int

const (
	RoleNone  Role = 0
	RoleView  Role = 1
	RoleEdit  Role = 2
	RoleAdmin Role = 3
)

// AtLeast reports whether r grants at least the capability of need.
func (r Role) AtLeast(need Role) bool {
	return r >= need
}

// Valid reports whether r is one of the grantable roles.
func (r Role) Valid() bool {
	return r >= RoleView && r <= RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleView:
		return "view"
	case RoleEdit:
		return "edit"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// MaxRole returns the higher of two roles.
func MaxRole(a, b Role) Role {
	if a >= b {
		return a
	}
	return b
}

// ParseRole converts a string role name ("view", "edit", "admin") to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "view":
		return RoleView, nil
	case "edit":
		return RoleEdit, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleNone, fmt.Errorf("unknown role: %q", s)
	}
}
