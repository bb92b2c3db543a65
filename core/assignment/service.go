package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
)

var nowFunc = time.Now // mockable

type Service struct {
	store   core.TableStore
	classes *class.Service
}

func NewService(store core.TableStore, classes *class.Service) *Service {
	return &Service{store: store, classes: classes}
}

func (svc *Service) Create(ctx context.Context, u auth.User, data NewAssignment) (Assignment, error) {
	c, err := svc.classes.Authorize(ctx, u, data.ClassID, class.Manage)
	if err != nil {
		return Assignment{}, err
	}

	now := nowFunc().UTC()
	a := Assignment{
		ID:          uuid.NewString(),
		SchoolID:    c.SchoolID,
		ClassID:     c.ID,
		Title:       data.Title,
		Description: data.Description,
		DueDate:     optional(data.DueDate),
		FileURL:     optional(data.FileURL),
		CreatedBy:   u.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = svc.store.Insert(ctx, assignmentsTable, auth.Stamp(u, core.Record{
		"id":          a.ID,
		"class_id":    a.ClassID,
		"title":       a.Title,
		"description": a.Description,
		"due_date":    a.DueDate,
		"file_url":    a.FileURL,
		"created_by":  a.CreatedBy,
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	}))
	if err != nil {
		return Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (svc *Service) ListByClass(ctx context.Context, u auth.User, classID string) ([]Assignment, error) {
	c, err := svc.classes.Authorize(ctx, u, classID, class.View)
	if err != nil {
		return nil, err
	}
	recs, err := svc.store.Select(ctx, assignmentsTable, auth.Scoped(u, core.Filter{"class_id": c.ID}),
		core.OrderBy(core.DBOrdering{Field: "created_at"}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	res := make([]Assignment, 0, len(recs))
	if err = core.DecodeRecords(recs, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Authorize loads an assignment of u's school and checks u has access to its class.
func (svc *Service) Authorize(ctx context.Context, u auth.User, id string, access class.Access) (Assignment, class.Class, error) {
	var a Assignment
	if err := auth.FetchScoped(ctx, svc.store, u, assignmentsTable, id, &a); err != nil {
		return Assignment{}, class.Class{}, err
	}
	c, err := svc.classes.Authorize(ctx, u, a.ClassID, access)
	if err != nil {
		return Assignment{}, class.Class{}, err
	}
	return a, c, nil
}

func (svc *Service) Get(ctx context.Context, u auth.User, id string) (Assignment, error) {
	a, _, err := svc.Authorize(ctx, u, id, class.View)
	return a, err
}

func (svc *Service) Update(ctx context.Context, u auth.User, id string, data UpdateAssignment) (Assignment, error) {
	a, _, err := svc.Authorize(ctx, u, id, class.Manage)
	if err != nil {
		return Assignment{}, err
	}

	changes := core.Record{"updated_at": nowFunc().UTC()}
	if data.Title != "" {
		changes["title"] = data.Title
	}
	if data.Description.Valid {
		changes["description"] = data.Description
	}
	if data.DueDate != "" {
		changes["due_date"] = data.DueDate
	}
	if data.FileURL != "" {
		changes["file_url"] = data.FileURL
	}

	recs, err := svc.store.Update(ctx, assignmentsTable, auth.Scoped(u, core.Filter{"id": a.ID}), changes)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if len(recs) == 0 {
		return Assignment{}, core.NewNotFoundError("assignment")
	}
	if err = core.DecodeRecord(recs[0], &a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *Service) Delete(ctx context.Context, u auth.User, id string) error {
	a, _, err := svc.Authorize(ctx, u, id, class.Manage)
	if err != nil {
		return err
	}
	recs, err := svc.store.Delete(ctx, assignmentsTable, auth.Scoped(u, core.Filter{"id": a.ID}))
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("assignment")
	}
	return nil
}
