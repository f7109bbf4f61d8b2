package enums

import "fmt"

// UserRole represents the authorization level of a library account.
type UserRole string

const (
	UserRolePatron    UserRole = "patron"
	UserRoleLibrarian UserRole = "librarian"
	UserRoleAdmin     UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRolePatron,
	UserRoleLibrarian,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role may act on other patrons' records.
func (u UserRole) IsStaff() bool {
	return u == UserRoleLibrarian || u == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
