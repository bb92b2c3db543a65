package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

var nowFunc = time.Now // mockable

type Service struct {
	store  core.TableStore
	logger core.Logger
}

func NewService(store core.TableStore, logger core.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Record logs an action of u. It never fails: errors are only logged.
func (svc *Service) Record(ctx context.Context, u auth.User, action, resourceType, resourceID string) {
	_, err := svc.store.Insert(ctx, activityTable, core.Record{
		"id":            uuid.NewString(),
		"school_id":     u.SchoolID,
		"user_id":       u.ID,
		"action":        action,
		"resource_type": resourceType,
		"resource_id":   null.NewString(resourceID, resourceID != ""),
		"created_at":    nowFunc().UTC(),
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("recording %s %s: %v", action, resourceType, err), err, u)
	}
}

// List returns the latest activity of the admin's school, newest first.
func (svc *Service) List(ctx context.Context, u auth.User, filter QueryFilter) ([]Log, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return nil, err
	}
	filter.Clean()

	recs, err := svc.store.Select(ctx, activityTable, auth.Scoped(u, nil),
		core.OrderBy(core.DBOrdering{Field: "created_at"}), core.Limit(filter.Limit))
	if err != nil {
		return nil, errors.Wrap(err, "selecting activity")
	}
	logs := make([]Log, 0, len(recs))
	if err = core.DecodeRecords(recs, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
