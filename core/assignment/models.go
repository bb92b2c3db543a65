package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const assignmentsTable = "assignments"

type Assignment struct {
	ID          string      `db:"id" json:"id"`
	SchoolID    string      `db:"school_id" json:"school_id"`
	ClassID     string      `db:"class_id" json:"class_id"`
	Title       string      `db:"title" json:"title"`
	Description null.String `db:"description" json:"description"`
	DueDate     null.String `db:"due_date" json:"due_date"`
	FileURL     null.String `db:"file_url" json:"file_url"`
	CreatedBy   string      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

type NewAssignment struct {
	ClassID     string      `json:"class_id" validate:"required,uuid"`
	Title       string      `json:"title" validate:"required"`
	Description null.String `json:"description"`
	DueDate     string      `json:"due_date" validate:"omitempty,date"`
	FileURL     string      `json:"file_url" validate:"omitempty,url"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.ClassID = core.CleanString(na.ClassID, true /* lower */)
	na.Title = core.CleanString(na.Title)
	na.DueDate = core.CleanString(na.DueDate)
	na.FileURL = core.CleanString(na.FileURL)
	return validate.Struct(na)
}

// UpdateAssignment changes the non-empty fields only.
type UpdateAssignment struct {
	Title       string      `json:"title"`
	Description null.String `json:"description"`
	DueDate     string      `json:"due_date" validate:"omitempty,date"`
	FileURL     string      `json:"file_url" validate:"omitempty,url"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.DueDate = core.CleanString(ua.DueDate)
	ua.FileURL = core.CleanString(ua.FileURL)
	return validate.Struct(ua)
}

func optional(s string) null.String {
	return null.NewString(s, s != "")
}
