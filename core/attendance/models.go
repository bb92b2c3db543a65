package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnmate/learnmate/core"
)

const (
	attendanceTable = "attendance"

	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

type Attendance struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Date      string    `db:"date" json:"date"`
	Status    string    `db:"status" json:"status"`
	MarkedBy  string    `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type NewAttendance struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	StudentID string `json:"student_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,date"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

func (na *NewAttendance) Clean() {
	na.ClassID = core.CleanString(na.ClassID, true /* lower */)
	na.StudentID = core.CleanString(na.StudentID, true /* lower */)
	na.Date = core.CleanString(na.Date)
	na.Status = core.CleanString(na.Status, true /* lower */)
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Clean()
	return validate.Struct(na)
}

type BulkAttendance struct {
	Records []NewAttendance `json:"records" validate:"required,min=1"`
}

// Skipped is a bulk item that was not recorded, with why.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Created []Attendance `json:"created"`
	Skipped []Skipped    `json:"skipped"`
}

type UpdateAttendance struct {
	Status string `json:"status" validate:"required,attendance_status"`
}

func (ua *UpdateAttendance) Validate(validate *validator.Validate) error {
	ua.Status = core.CleanString(ua.Status, true /* lower */)
	return validate.Struct(ua)
}

type QueryFilter struct {
	Date string `query:"date" validate:"omitempty,date"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Date = core.CleanString(qf.Date)
	return validate.Struct(qf)
}

type Summary struct {
	ClassID              string  `json:"class_id"`
	Date                 string  `json:"date"`
	TotalStudents        int     `json:"total_students"`
	PresentCount         int     `json:"present_count"`
	AbsentCount          int     `json:"absent_count"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}
