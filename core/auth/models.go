package auth

import (
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
	RoleSuperuser Role = "superuser"
)

var (
	Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleSuperuser}

	errUnknownRole = errors.New("unknown role")
)

// ParseRole rejects anything that is not one of the four known roles.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", errors.Wrapf(errUnknownRole, "%q", s)
}

func (r Role) String() string { return string(r) }

// User is the authenticated caller. It is resolved fresh on every request and never persisted.
type User struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Role     Role        `json:"role"`
	FullName string      `json:"full_name"`
	SchoolID null.String `json:"school_id"`
}

// HasTenant reports whether the user belongs to a school.
func (u User) HasTenant() bool {
	return u.SchoolID.Valid && u.SchoolID.String != ""
}

func (u User) Is(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Credential is what the transport extracted from the request.
type Credential struct {
	Token  string
	UserID string
}
