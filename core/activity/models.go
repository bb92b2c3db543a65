package activity

import (
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	activityTable = "activity_logs"

	DefaultLimit = 50
	MaxLimit     = 500
)

type Log struct {
	ID           string      `db:"id" json:"id"`
	SchoolID     null.String `db:"school_id" json:"school_id"`
	UserID       string      `db:"user_id" json:"user_id"`
	Action       string      `db:"action" json:"action"`
	ResourceType string      `db:"resource_type" json:"resource_type"`
	ResourceID   null.String `db:"resource_id" json:"resource_id"`
	Details      null.String `db:"details" json:"details"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

type QueryFilter struct {
	Limit int `query:"limit"`
}

// Clean clamps the limit to ]0, MaxLimit].
func (qf *QueryFilter) Clean() {
	switch {
	case qf.Limit <= 0:
		qf.Limit = DefaultLimit
	case qf.Limit > MaxLimit:
		qf.Limit = MaxLimit
	}
}
