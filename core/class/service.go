package class

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

	errAlreadyEnrolled = core.NewConflictError("student already enrolled in this class")
)

type Service struct {
	store core.TableStore
	users *user.Service
}

var _ auth.EnrollmentLookup = (*Service)(nil)

func NewService(store core.TableStore, users *user.Service) *Service {
	return &Service{store: store, users: users}
}

func (c Class) record() core.Record {
	return core.Record{
		"id":          c.ID,
		"school_id":   c.SchoolID,
		"name":        c.Name,
		"description": c.Description,
		"teacher_id":  c.TeacherID,
		"created_at":  c.CreatedAt,
		"updated_at":  c.UpdatedAt,
	}
}

func (svc *Service) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	n, err := svc.store.Count(ctx, rostersTable, core.Filter{"class_id": classID, "student_id": studentID})
	if err != nil {
		return false, errors.Wrap(err, "counting enrollments")
	}
	return n > 0, nil
}

// Authorize loads a class of u's school and checks u may access it.
// Classes of other schools and missing classes are both forbidden.
func (svc *Service) Authorize(ctx context.Context, u auth.User, classID string, access Access) (Class, error) {
	var c Class
	if err := auth.FetchScoped(ctx, svc.store, u, classesTable, classID, &c); err != nil {
		return Class{}, err
	}

	check := auth.OwnerOrRole(u, c.TeacherID, auth.RoleAdmin)
	if access == View {
		check = auth.AnyOf(check, auth.Enrolled(u, c.ID, svc))
	}
	if err := auth.All(ctx, auth.SameTenant(u, c.SchoolID), check); err != nil {
		return Class{}, err
	}
	return c, nil
}

func (svc *Service) teacher(ctx context.Context, u auth.User, id string) error {
	_, found, err := svc.users.Lookup(ctx, u, id, auth.RoleTeacher)
	if err != nil {
		return err
	}
	if !found {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "must reference a teacher of your school"})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, u auth.User, data NewClass) (Class, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return Class{}, err
	}
	if err := svc.teacher(ctx, u, data.TeacherID); err != nil {
		return Class{}, err
	}

	now := nowFunc().UTC()
	c := Class{
		ID:          uuid.NewString(),
		Name:        data.Name,
		Description: data.Description,
		TeacherID:   data.TeacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec := auth.Stamp(u, c.record())
	c.SchoolID = u.SchoolID.String
	if _, err := svc.store.Insert(ctx, classesTable, rec); err != nil {
		return Class{}, errors.Wrap(err, "inserting class")
	}
	return c, nil
}

// IDsFor returns the ids of the classes u may see: the whole school for an admin,
// the classes they teach for a teacher, the classes they attend for a student.
func (svc *Service) IDsFor(ctx context.Context, u auth.User) ([]string, error) {
	classes, err := svc.List(ctx, u)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (svc *Service) List(ctx context.Context, u auth.User) ([]Class, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent), auth.Tenant(u)); err != nil {
		return nil, err
	}

	filter := core.Filter{}
	switch u.Role {
	case auth.RoleTeacher:
		filter["teacher_id"] = u.ID
	case auth.RoleStudent:
		recs, err := svc.store.Select(ctx, rostersTable, auth.Scoped(u, core.Filter{"student_id": u.ID}))
		if err != nil {
			return nil, errors.Wrap(err, "selecting enrollments")
		}
		ids := make(core.In, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r["class_id"])
		}
		filter["id"] = ids
	}

	recs, err := svc.store.Select(ctx, classesTable, auth.Scoped(u, filter), core.OrderBy(core.DBOrdering{Field: "name", Ascending: true}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]Class, 0, len(recs))
	if err = core.DecodeRecords(recs, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (svc *Service) Get(ctx context.Context, u auth.User, id string) (Class, error) {
	return svc.Authorize(ctx, u, id, View)
}

func (svc *Service) Update(ctx context.Context, u auth.User, id string, data UpdateClass) (Class, error) {
	if err := auth.RequireRole(u, auth.RoleAdmin); err != nil {
		return Class{}, err
	}
	c, err := svc.Authorize(ctx, u, id, Manage)
	if err != nil {
		return Class{}, err
	}

	changes := core.Record{"updated_at": nowFunc().UTC()}
	if data.Name != "" {
		changes["name"] = data.Name
	}
	if data.Description.Valid {
		changes["description"] = data.Description
	}
	if data.TeacherID != "" {
		if err = svc.teacher(ctx, u, data.TeacherID); err != nil {
			return Class{}, err
		}
		changes["teacher_id"] = data.TeacherID
	}

	recs, err := svc.store.Update(ctx, classesTable, auth.Scoped(u, core.Filter{"id": c.ID}), changes)
	if err != nil {
		return Class{}, errors.Wrap(err, "updating class")
	}
	if len(recs) == 0 {
		return Class{}, core.NewNotFoundError("class")
	}
	if err = core.DecodeRecord(recs[0], &c); err != nil {
		return Class{}, err
	}
	return c, nil
}

// Delete removes the class and its roster.
func (svc *Service) Delete(ctx context.Context, u auth.User, id string) error {
	if err := auth.RequireRole(u, auth.RoleAdmin); err != nil {
		return err
	}
	c, err := svc.Authorize(ctx, u, id, Manage)
	if err != nil {
		return err
	}

	if _, err = svc.store.Delete(ctx, rostersTable, auth.Scoped(u, core.Filter{"class_id": c.ID})); err != nil {
		return errors.Wrap(err, "deleting enrollments")
	}
	recs, err := svc.store.Delete(ctx, classesTable, auth.Scoped(u, core.Filter{"id": c.ID}))
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("class")
	}
	return nil
}

func (svc *Service) AddStudent(ctx context.Context, u auth.User, classID string, data NewEnrollment) (Enrollment, error) {
	c, err := svc.Authorize(ctx, u, classID, Manage)
	if err != nil {
		return Enrollment{}, err
	}

	_, found, err := svc.users.Lookup(ctx, u, data.StudentID, auth.RoleStudent)
	if err != nil {
		return Enrollment{}, err
	}
	if !found {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "must reference a student of your school"})
	}

	if ok, err := svc.IsEnrolled(ctx, c.ID, data.StudentID); err != nil {
		return Enrollment{}, err
	} else if ok {
		return Enrollment{}, errAlreadyEnrolled
	}

	e := Enrollment{
		ClassID:    c.ID,
		StudentID:  data.StudentID,
		SchoolID:   c.SchoolID,
		EnrolledAt: nowFunc().UTC(),
	}
	_, err = svc.store.Insert(ctx, rostersTable, auth.Stamp(u, core.Record{
		"class_id":    e.ClassID,
		"student_id":  e.StudentID,
		"enrolled_at": e.EnrolledAt,
	}))
	if core.IsConflict(err) {
		return Enrollment{}, errAlreadyEnrolled
	}
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

// StudentIDs returns the roster of a class. No authorization is done here.
func (svc *Service) StudentIDs(ctx context.Context, u auth.User, classID string) ([]string, error) {
	recs, err := svc.store.Select(ctx, rostersTable, auth.Scoped(u, core.Filter{"class_id": classID}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		var e Enrollment
		if err = core.DecodeRecord(r, &e); err != nil {
			return nil, err
		}
		ids = append(ids, e.StudentID)
	}
	return ids, nil
}

func (svc *Service) ListStudents(ctx context.Context, u auth.User, classID string) ([]user.Profile, error) {
	c, err := svc.Authorize(ctx, u, classID, Manage)
	if err != nil {
		return nil, err
	}
	ids, err := svc.StudentIDs(ctx, u, c.ID)
	if err != nil {
		return nil, err
	}

	students, err := svc.users.Profiles(ctx, auth.Scoped(u, core.Filter{"id": core.InStrings(ids)}))
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (svc *Service) RemoveStudent(ctx context.Context, u auth.User, classID, studentID string) error {
	c, err := svc.Authorize(ctx, u, classID, Manage)
	if err != nil {
		return err
	}
	if _, err = uuid.Parse(studentID); err != nil {
		return core.NewNotFoundError("enrollment")
	}
	recs, err := svc.store.Delete(ctx, rostersTable, auth.Scoped(u, core.Filter{"class_id": c.ID, "student_id": studentID}))
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("enrollment")
	}
	return nil
}
