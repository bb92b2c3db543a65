package attendance

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
)

var (
	nowFunc = time.Now // mockable

	errAlreadyMarked = core.NewConflictError("attendance already marked for this date")
	errNotEnrolled   = core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student is not enrolled in this class"})
)

type Service struct {
	store   core.TableStore
	classes *class.Service
}

func NewService(store core.TableStore, classes *class.Service) *Service {
	return &Service{store: store, classes: classes}
}

func (svc *Service) mark(ctx context.Context, u auth.User, c class.Class, data NewAttendance) (Attendance, error) {
	if ok, err := svc.classes.IsEnrolled(ctx, c.ID, data.StudentID); err != nil {
		return Attendance{}, err
	} else if !ok {
		return Attendance{}, errNotEnrolled
	}

	filter := auth.Scoped(u, core.Filter{"class_id": c.ID, "student_id": data.StudentID, "date": data.Date})
	if n, err := svc.store.Count(ctx, attendanceTable, filter); err != nil {
		return Attendance{}, errors.Wrap(err, "counting attendance")
	} else if n > 0 {
		return Attendance{}, errAlreadyMarked
	}

	a := Attendance{
		ID:        uuid.NewString(),
		SchoolID:  c.SchoolID,
		ClassID:   c.ID,
		StudentID: data.StudentID,
		Date:      data.Date,
		Status:    data.Status,
		MarkedBy:  u.ID,
		CreatedAt: nowFunc().UTC(),
	}
	_, err := svc.store.Insert(ctx, attendanceTable, auth.Stamp(u, core.Record{
		"id":         a.ID,
		"class_id":   a.ClassID,
		"student_id": a.StudentID,
		"date":       a.Date,
		"status":     a.Status,
		"marked_by":  a.MarkedBy,
		"created_at": a.CreatedAt,
	}))
	if core.IsConflict(err) {
		return Attendance{}, errAlreadyMarked
	}
	if err != nil {
		return Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

// Mark records the attendance of an enrolled student, once per class and date.
func (svc *Service) Mark(ctx context.Context, u auth.User, data NewAttendance) (Attendance, error) {
	c, err := svc.classes.Authorize(ctx, u, data.ClassID, class.Manage)
	if err != nil {
		return Attendance{}, err
	}
	return svc.mark(ctx, u, c, data)
}

// Bulk marks every valid record and reports the others as skipped.
// Store failures abort the whole batch.
func (svc *Service) Bulk(ctx context.Context, u auth.User, validate *validator.Validate, data BulkAttendance) (BulkResult, error) {
	res := BulkResult{Created: make([]Attendance, 0, len(data.Records)), Skipped: make([]Skipped, 0)}
	classes := make(map[string]class.Class)

	for i, rec := range data.Records {
		skip := func(err error) { res.Skipped = append(res.Skipped, Skipped{Index: i, Reason: reason(err)}) }

		if err := rec.Validate(validate); err != nil {
			skip(err)
			continue
		}

		c, ok := classes[rec.ClassID]
		if !ok {
			var err error
			c, err = svc.classes.Authorize(ctx, u, rec.ClassID, class.Manage)
			if err != nil {
				if !isSkippable(err) {
					return BulkResult{}, err
				}
				skip(err)
				continue
			}
			classes[rec.ClassID] = c
		}

		a, err := svc.mark(ctx, u, c, rec)
		if err != nil {
			if !isSkippable(err) {
				return BulkResult{}, err
			}
			skip(err)
			continue
		}
		res.Created = append(res.Created, a)
	}
	return res, nil
}

func isSkippable(err error) bool {
	switch errors.Cause(err).(type) {
	case *core.ConflictError, *core.ValidationError, validator.ValidationErrors:
		return true
	}
	return errors.Cause(err) == core.ErrForbidden
}

func reason(err error) string {
	if vErrs, ok := errors.Cause(err).(validator.ValidationErrors); ok && len(vErrs) > 0 {
		return vErrs[0].Field() + ": failed on " + vErrs[0].Tag()
	}
	return errors.Cause(err).Error()
}

func (svc *Service) list(ctx context.Context, u auth.User, filter core.Filter) ([]Attendance, error) {
	recs, err := svc.store.Select(ctx, attendanceTable, auth.Scoped(u, filter),
		core.OrderBy(core.DBOrdering{Field: "date"}, core.DBOrdering{Field: "created_at"}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	res := make([]Attendance, 0, len(recs))
	if err = core.DecodeRecords(recs, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (svc *Service) ByClass(ctx context.Context, u auth.User, classID string, filter QueryFilter) ([]Attendance, error) {
	c, err := svc.classes.Authorize(ctx, u, classID, class.Manage)
	if err != nil {
		return nil, err
	}
	f := core.Filter{"class_id": c.ID}
	if filter.Date != "" {
		f["date"] = filter.Date
	}
	return svc.list(ctx, u, f)
}

// ByStudent lists the records of a student: the whole school for an admin,
// the classes they teach for a teacher, and only their own for a student.
func (svc *Service) ByStudent(ctx context.Context, u auth.User, studentID string) ([]Attendance, error) {
	if err := auth.All(ctx,
		auth.Tenant(u),
		auth.AnyOf(auth.HasRole(u, auth.RoleAdmin, auth.RoleTeacher), auth.OwnerOrRole(u, studentID)),
	); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(studentID); err != nil {
		return nil, core.ErrForbidden
	}

	f := core.Filter{"student_id": studentID}
	if u.Role == auth.RoleTeacher {
		ids, err := svc.classes.IDsFor(ctx, u)
		if err != nil {
			return nil, err
		}
		f["class_id"] = core.InStrings(ids)
	}
	return svc.list(ctx, u, f)
}

func (svc *Service) fetch(ctx context.Context, u auth.User, id string) (Attendance, error) {
	var a Attendance
	if err := auth.FetchScoped(ctx, svc.store, u, attendanceTable, id, &a); err != nil {
		return Attendance{}, err
	}
	if _, err := svc.classes.Authorize(ctx, u, a.ClassID, class.Manage); err != nil {
		return Attendance{}, err
	}
	return a, nil
}

func (svc *Service) Update(ctx context.Context, u auth.User, id string, data UpdateAttendance) (Attendance, error) {
	a, err := svc.fetch(ctx, u, id)
	if err != nil {
		return Attendance{}, err
	}
	recs, err := svc.store.Update(ctx, attendanceTable, auth.Scoped(u, core.Filter{"id": a.ID}), core.Record{
		"status":    data.Status,
		"marked_by": u.ID,
	})
	if err != nil {
		return Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if len(recs) == 0 {
		return Attendance{}, core.NewNotFoundError("attendance")
	}
	if err = core.DecodeRecord(recs[0], &a); err != nil {
		return Attendance{}, err
	}
	return a, nil
}

func (svc *Service) Delete(ctx context.Context, u auth.User, id string) error {
	a, err := svc.fetch(ctx, u, id)
	if err != nil {
		return err
	}
	recs, err := svc.store.Delete(ctx, attendanceTable, auth.Scoped(u, core.Filter{"id": a.ID}))
	if err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("attendance")
	}
	return nil
}

// Summary counts a class attendance on a date (today, UTC, by default). Late and unmarked students count as absent.
func (svc *Service) Summary(ctx context.Context, u auth.User, classID string, filter QueryFilter) (Summary, error) {
	c, err := svc.classes.Authorize(ctx, u, classID, class.Manage)
	if err != nil {
		return Summary{}, err
	}
	date := filter.Date
	if date == "" {
		date = nowFunc().UTC().Format(core.DateLayout)
	}

	students, err := svc.classes.StudentIDs(ctx, u, c.ID)
	if err != nil {
		return Summary{}, err
	}
	records, err := svc.list(ctx, u, core.Filter{"class_id": c.ID, "date": date})
	if err != nil {
		return Summary{}, err
	}

	s := Summary{ClassID: c.ID, Date: date, TotalStudents: len(students)}
	for _, a := range records {
		if a.Status == StatusPresent {
			s.PresentCount++
		}
	}
	s.AbsentCount = s.TotalStudents - s.PresentCount
	s.AttendancePercentage = core.Percent(s.PresentCount, s.TotalStudents)
	return s, nil
}

// All lists the attendance records matching filter. It is not tenant-scoped: callers authorize first.
func (svc *Service) All(ctx context.Context, filter core.Filter) ([]Attendance, error) {
	recs, err := svc.store.Select(ctx, attendanceTable, filter)
	if err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	res := make([]Attendance, 0, len(recs))
	if err = core.DecodeRecords(recs, &res); err != nil {
		return nil, err
	}
	return res, nil
}
