package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/user"
)

var (
	nowFunc = time.Now // mockable

	errNameTaken      = core.NewConflictError("a school with this name already exists")
	errAdminHasSchool = core.NewConflictError("admin already belongs to a school")
)

type Service struct {
	store core.TableStore
	users *user.Service
}

func NewService(store core.TableStore, users *user.Service) *Service {
	return &Service{store: store, users: users}
}

// Create creates a school and makes its admin a member of it.
// An admin may only create their own school, a superuser may create one for any admin without a school.
func (svc *Service) Create(ctx context.Context, u auth.User, data NewSchool) (School, error) {
	if err := auth.RequireAnyRole(u, auth.RoleAdmin, auth.RoleSuperuser); err != nil {
		return School{}, err
	}

	adminID := data.AdminID
	if u.Role == auth.RoleAdmin {
		if adminID != "" && adminID != u.ID {
			return School{}, core.ErrForbidden
		}
		adminID = u.ID
	} else if adminID == "" {
		return School{}, core.NewValidationError(nil, core.FieldError{Field: "admin_id", Error: "this field is required"})
	}

	admin, found, err := svc.users.GetByID(ctx, adminID)
	if err != nil {
		return School{}, err
	}
	if !found || admin.Role != auth.RoleAdmin.String() {
		return School{}, core.NewValidationError(nil, core.FieldError{Field: "admin_id", Error: "must reference an admin"})
	}
	if admin.SchoolID.Valid && admin.SchoolID.String != "" {
		return School{}, errAdminHasSchool
	}

	if n, err := svc.store.Count(ctx, schoolsTable, core.Filter{"school_name": data.SchoolName}); err != nil {
		return School{}, errors.Wrap(err, "counting schools")
	} else if n > 0 {
		return School{}, errNameTaken
	}

	now := nowFunc().UTC()
	s := School{
		ID:         uuid.NewString(),
		SchoolName: data.SchoolName,
		AdminID:    admin.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = svc.store.Insert(ctx, schoolsTable, core.Record{
		"id":          s.ID,
		"school_name": s.SchoolName,
		"admin_id":    s.AdminID,
		"status":      s.Status,
		"created_at":  s.CreatedAt,
		"updated_at":  s.UpdatedAt,
	})
	if core.IsConflict(err) {
		return School{}, errNameTaken
	}
	if err != nil {
		return School{}, errors.Wrap(err, "inserting school")
	}

	if err = svc.users.AssignSchool(ctx, admin.ID, s.ID); err != nil {
		return School{}, err
	}
	return s, nil
}

// ListOwn returns the admin's school.
func (svc *Service) ListOwn(ctx context.Context, u auth.User) ([]School, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return nil, err
	}
	recs, err := svc.store.Select(ctx, schoolsTable, core.Filter{"id": u.SchoolID.String})
	if err != nil {
		return nil, errors.Wrap(err, "selecting schools")
	}
	schools := make([]School, 0, len(recs))
	if err = core.DecodeRecords(recs, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// Get returns a school to its members, or to a superuser.
func (svc *Service) Get(ctx context.Context, u auth.User, id string) (School, error) {
	if u.Role != auth.RoleSuperuser {
		if err := auth.RequireSameTenant(u, id); err != nil {
			return School{}, err
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return School{}, core.NewNotFoundError("school")
	}

	var s School
	found, err := core.SelectOne(ctx, svc.store, schoolsTable, core.Filter{"id": id}, &s)
	if err != nil {
		return School{}, err
	}
	if !found {
		return School{}, core.NewNotFoundError("school")
	}
	return s, nil
}

// All returns every school. It is not tenant-scoped: callers authorize first.
func (svc *Service) All(ctx context.Context, orderings ...core.DBOrdering) ([]School, error) {
	recs, err := svc.store.Select(ctx, schoolsTable, nil, core.OrderBy(orderings...))
	if err != nil {
		return nil, errors.Wrap(err, "selecting schools")
	}
	schools := make([]School, 0, len(recs))
	if err = core.DecodeRecords(recs, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// ListForSuperuser lists every school of the platform with its admin.
// The "active" status also matches schools without a status.
func (svc *Service) ListForSuperuser(ctx context.Context, u auth.User, filter QueryFilter) (Listing, error) {
	if err := auth.RequireRole(u, auth.RoleSuperuser); err != nil {
		return Listing{}, err
	}

	schools, err := svc.All(ctx, filter.ordering())
	if err != nil {
		return Listing{}, err
	}

	adminIDs := make([]string, 0, len(schools))
	for _, s := range schools {
		adminIDs = append(adminIDs, s.AdminID)
	}
	admins, err := svc.users.ListByIDs(ctx, adminIDs)
	if err != nil {
		return Listing{}, err
	}

	res := Listing{Schools: make([]WithAdmin, 0, len(schools))}
	for _, s := range schools {
		if filter.Status != "" {
			if filter.Status == StatusActive && !s.IsActive() {
				continue
			}
			if filter.Status != StatusActive && s.Status.String != filter.Status {
				continue
			}
		}
		admin := admins[s.AdminID]
		res.Schools = append(res.Schools, WithAdmin{School: s, AdminName: admin.FullName, AdminEmail: admin.Email})
	}
	res.TotalSchools = len(res.Schools)
	return res, nil
}
