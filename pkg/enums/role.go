package enums

import "fmt"

// Role is the closed set of actor roles. It is constructed once at the
// authentication boundary and passed by value through the core.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleOptometrist Role = "optometrist"
	RoleStaff       Role = "staff"
	RoleAdmin       Role = "admin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleOptometrist,
	RoleStaff,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaffOrAdmin reports whether the role may act on workflow objects.
func (r Role) IsStaffOrAdmin() bool {
	return r == RoleStaff || r == RoleAdmin
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
