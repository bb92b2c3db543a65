package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const (
	schoolsTable = "schools"

	StatusActive = "active"
)

type School struct {
	ID         string      `db:"id" json:"id"`
	SchoolName string      `db:"school_name" json:"school_name"`
	AdminID    string      `db:"admin_id" json:"admin_id"`
	Status     null.String `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// IsActive is true for schools without a status too.
func (s School) IsActive() bool {
	return !s.Status.Valid || s.Status.String == "" || s.Status.String == StatusActive
}

type NewSchool struct {
	SchoolName string `json:"school_name" validate:"required"`
	AdminID    string `json:"admin_id" validate:"omitempty,uuid"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.SchoolName = core.CleanString(ns.SchoolName)
	ns.AdminID = core.CleanString(ns.AdminID, true /* lower */)
	return validate.Struct(ns)
}

// WithAdmin is a school as listed to superusers.
type WithAdmin struct {
	School
	AdminName  string `json:"admin_name"`
	AdminEmail string `json:"admin_email"`
}

type Listing struct {
	TotalSchools int         `json:"total_schools"`
	Schools      []WithAdmin `json:"schools"`
}

type QueryFilter struct {
	Status string `query:"status"`
	SortBy string `query:"sort_by" validate:"omitempty,oneof=name created_at"`
	Order  string `query:"order" validate:"omitempty,oneof=asc desc"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.SortBy = core.CleanString(qf.SortBy, true /* lower */)
	qf.Order = core.CleanString(qf.Order, true /* lower */)
	return validate.Struct(qf)
}

func (qf QueryFilter) ordering() core.DBOrdering {
	ord := core.DBOrdering{Field: "created_at", Ascending: qf.Order == "asc"}
	if qf.SortBy == "name" {
		ord.Field = "school_name"
	}
	return ord
}
