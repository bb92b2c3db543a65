package grade

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const gradesTable = "grades"

type Grade struct {
	ID           string      `db:"id" json:"id"`
	SchoolID     string      `db:"school_id" json:"school_id"`
	SubmissionID string      `db:"submission_id" json:"submission_id"`
	StudentID    string      `db:"student_id" json:"student_id"`
	ClassID      string      `db:"class_id" json:"class_id"`
	Grade        string      `db:"grade" json:"grade"`
	Feedback     null.String `db:"feedback" json:"feedback"`
	GradedBy     string      `db:"graded_by" json:"graded_by"`
	GradedAt     time.Time   `db:"graded_at" json:"graded_at"`
}

type NewGrade struct {
	SubmissionID string      `json:"submission_id" validate:"required,uuid"`
	Grade        string      `json:"grade" validate:"required,max=16"`
	Feedback     null.String `json:"feedback"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.SubmissionID = core.CleanString(ng.SubmissionID, true /* lower */)
	ng.Grade = core.CleanString(ng.Grade)
	return validate.Struct(ng)
}

type UpdateGrade struct {
	Grade    string      `json:"grade" validate:"omitempty,max=16"`
	Feedback null.String `json:"feedback"`
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	ug.Grade = core.CleanString(ug.Grade)
	return validate.Struct(ug)
}
