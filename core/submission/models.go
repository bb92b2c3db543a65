package submission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const submissionsTable = "submissions"

type Submission struct {
	ID           string      `db:"id" json:"id"`
	SchoolID     string      `db:"school_id" json:"school_id"`
	AssignmentID string      `db:"assignment_id" json:"assignment_id"`
	ClassID      string      `db:"class_id" json:"class_id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	FileURL      null.String `db:"file_url" json:"file_url"`
	Notes        null.String `db:"notes" json:"notes"`
	SubmittedAt  time.Time   `db:"submitted_at" json:"submitted_at"`
}

// NewSubmission is handed in by a student for themself, or by staff on behalf of StudentID.
type NewSubmission struct {
	AssignmentID string      `json:"assignment_id" validate:"required,uuid"`
	StudentID    string      `json:"student_id" validate:"omitempty,uuid"`
	FileURL      null.String `json:"file_url"`
	Notes        null.String `json:"notes"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.AssignmentID = core.CleanString(ns.AssignmentID, true /* lower */)
	ns.StudentID = core.CleanString(ns.StudentID, true /* lower */)
	return validate.Struct(ns)
}

type UpdateSubmission struct {
	FileURL null.String `json:"file_url"`
	Notes   null.String `json:"notes"`
}
