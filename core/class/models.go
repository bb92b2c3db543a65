package class

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const (
	classesTable = "classes"
	rostersTable = "class_students"
)

// Access is the kind of access asked on a class.
type Access int

const (
	// View is granted to the school admin, the class teacher and enrolled students.
	View Access = iota
	// Manage is granted to the school admin and the class teacher.
	Manage
)

type Class struct {
	ID          string      `db:"id" json:"id"`
	SchoolID    string      `db:"school_id" json:"school_id"`
	Name        string      `db:"name" json:"name"`
	Description null.String `db:"description" json:"description"`
	TeacherID   string      `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

type Enrollment struct {
	ClassID    string    `db:"class_id" json:"class_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

type NewClass struct {
	Name        string      `json:"name" validate:"required"`
	Description null.String `json:"description"`
	TeacherID   string      `json:"teacher_id" validate:"required,uuid"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.TeacherID = core.CleanString(nc.TeacherID, true /* lower */)
	return validate.Struct(nc)
}

// UpdateClass changes the non-empty fields only.
type UpdateClass struct {
	Name        string      `json:"name"`
	Description null.String `json:"description"`
	TeacherID   string      `json:"teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.TeacherID = core.CleanString(uc.TeacherID, true /* lower */)
	return validate.Struct(uc)
}

type NewEnrollment struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID, true /* lower */)
	return validate.Struct(ne)
}
