package analytics

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core/school"
)

const (
	activeWindow   = 30 * 24 * time.Hour
	activityWindow = 7 * 24 * time.Hour
	topSchools     = 10
)

type AdminMetrics struct {
	TotalUsers         int `json:"total_users"`
	ActiveUsers        int `json:"active_users"`
	TotalClasses       int `json:"total_classes"`
	StudentsEnrolled   int `json:"students_enrolled"`
	AttendanceRecords  int `json:"attendance_records"`
	AssignmentsCreated int `json:"assignments_created"`
	GradesEntered      int `json:"grades_entered"`
}

type UserStats struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	ByRole map[string]int `json:"by_role"`
}

type ClassStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type AttendanceStats struct {
	TotalRecords   int          `json:"total_records"`
	PresentCount   int          `json:"present_count"`
	AttendanceRate null.Float64 `json:"attendance_rate"` // null without records
	LastWeek       int          `json:"records_last_7_days"`
}

type Usage struct {
	Users      UserStats       `json:"users"`
	Classes    ClassStats      `json:"classes"`
	Attendance AttendanceStats `json:"attendance"`
}

type SchoolAnalytics struct {
	School school.School `json:"school"`
	Usage
}

type RankedSchool struct {
	SchoolID   string  `json:"school_id"`
	SchoolName string  `json:"school_name"`
	Value      float64 `json:"value"`
}

type PlatformAnalytics struct {
	TotalSchools  int `json:"total_schools"`
	ActiveSchools int `json:"active_schools"`
	Usage
	TopSchoolsByUsers          []RankedSchool `json:"top_schools_by_users"`
	TopSchoolsByAttendanceRate []RankedSchool `json:"top_schools_by_attendance_rate"`
}

// rows, only the columns analytics need

type profileRow struct {
	SchoolID  null.String `db:"school_id"`
	Role      string      `db:"role"`
	LastLogin null.Time   `db:"last_login"`
}

type classRow struct {
	SchoolID  string    `db:"school_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

type attendanceRow struct {
	SchoolID  string    `db:"school_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}
