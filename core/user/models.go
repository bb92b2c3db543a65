package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

const (
	profilesTable = "profiles"

	TokenType = "bearer"
)

type Profile struct {
	ID        string      `db:"id" json:"id"`
	Email     string      `db:"email" json:"email"`
	FullName  string      `db:"full_name" json:"full_name"`
	Role      string      `db:"role" json:"role"`
	SchoolID  null.String `db:"school_id" json:"school_id"`
	LastLogin null.Time   `db:"last_login" json:"last_login"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

// AuthUser returns the caller view of the profile.
func (p Profile) AuthUser() auth.User {
	role, _ := auth.ParseRole(p.Role)
	return auth.User{
		ID:       p.ID,
		Email:    p.Email,
		Role:     role,
		FullName: p.FullName,
		SchoolID: p.SchoolID,
	}
}

// Session is returned by signup and login.
type Session struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	User        Profile `json:"user"`
}

type Signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

func (s *Signup) Validate(validate *validator.Validate) error {
	s.Email = core.CleanString(s.Email, true /* lower */)
	s.FullName = core.CleanString(s.FullName)
	return validate.Struct(s)
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (l *Login) Validate(validate *validator.Validate) error {
	l.Email = core.CleanString(l.Email, true /* lower */)
	return validate.Struct(l)
}

// UpdateMe is what a user may change on their own profile.
// Role is only there to be refused.
type UpdateMe struct {
	FullName string  `json:"full_name" validate:"required"`
	Role     *string `json:"role"`
}

func (um *UpdateMe) Validate(validate *validator.Validate) error {
	um.FullName = core.CleanString(um.FullName)
	return validate.Struct(um)
}

// UpdateProfile is what an admin may change on a profile of their school.
type UpdateProfile struct {
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"omitempty,role"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	up.Role = core.CleanString(up.Role, true /* lower */)
	return validate.Struct(up)
}

// NewUser is an account created by a school admin. A password is generated when none is given.
type NewUser struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"required,role"`
	Password  string `json:"password" validate:"omitempty,min=6"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

func (nu NewUser) FullName() string {
	return nu.FirstName + " " + nu.LastName
}

type CreatedUser struct {
	Profile
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// NewAccount is an account created by an operator (admin CLI). Any role can be given, superuser included.
type NewAccount struct {
	Email    string
	FullName string
	Role     string
	SchoolID string
	Password string
}

type QueryFilter struct {
	Role string `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
