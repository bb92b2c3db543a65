package submission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/assignment"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
)

var (
	nowFunc = time.Now // mockable

	errAlreadySubmitted = core.NewConflictError("submission already exists for this assignment")
	errNotEnrolled      = core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student is not enrolled in this class"})
)

type Service struct {
	store       core.TableStore
	classes     *class.Service
	assignments *assignment.Service
}

func NewService(store core.TableStore, classes *class.Service, assignments *assignment.Service) *Service {
	return &Service{store: store, classes: classes, assignments: assignments}
}

func (svc *Service) Submit(ctx context.Context, u auth.User, data NewSubmission) (Submission, error) {
	var a assignment.Assignment
	var err error
	studentID := data.StudentID

	if u.Role == auth.RoleStudent {
		if studentID != "" && studentID != u.ID {
			return Submission{}, core.ErrForbidden
		}
		studentID = u.ID
		// View on a class is granted to a student by enrollment only.
		if a, _, err = svc.assignments.Authorize(ctx, u, data.AssignmentID, class.View); err != nil {
			return Submission{}, err
		}
	} else {
		if a, _, err = svc.assignments.Authorize(ctx, u, data.AssignmentID, class.Manage); err != nil {
			return Submission{}, err
		}
		if studentID == "" {
			return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "this field is required"})
		}
		if ok, err := svc.classes.IsEnrolled(ctx, a.ClassID, studentID); err != nil {
			return Submission{}, err
		} else if !ok {
			return Submission{}, errNotEnrolled
		}
	}

	filter := auth.Scoped(u, core.Filter{"assignment_id": a.ID, "student_id": studentID})
	if n, err := svc.store.Count(ctx, submissionsTable, filter); err != nil {
		return Submission{}, errors.Wrap(err, "counting submissions")
	} else if n > 0 {
		return Submission{}, errAlreadySubmitted
	}

	s := Submission{
		ID:           uuid.NewString(),
		SchoolID:     a.SchoolID,
		AssignmentID: a.ID,
		ClassID:      a.ClassID,
		StudentID:    studentID,
		FileURL:      data.FileURL,
		Notes:        data.Notes,
		SubmittedAt:  nowFunc().UTC(),
	}
	_, err = svc.store.Insert(ctx, submissionsTable, auth.Stamp(u, core.Record{
		"id":            s.ID,
		"assignment_id": s.AssignmentID,
		"class_id":      s.ClassID,
		"student_id":    s.StudentID,
		"file_url":      s.FileURL,
		"notes":         s.Notes,
		"submitted_at":  s.SubmittedAt,
	}))
	if core.IsConflict(err) {
		return Submission{}, errAlreadySubmitted
	}
	if err != nil {
		return Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (svc *Service) list(ctx context.Context, u auth.User, filter core.Filter) ([]Submission, error) {
	recs, err := svc.store.Select(ctx, submissionsTable, auth.Scoped(u, filter),
		core.OrderBy(core.DBOrdering{Field: "submitted_at"}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	res := make([]Submission, 0, len(recs))
	if err = core.DecodeRecords(recs, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (svc *Service) My(ctx context.Context, u auth.User) ([]Submission, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleStudent), auth.Tenant(u)); err != nil {
		return nil, err
	}
	return svc.list(ctx, u, core.Filter{"student_id": u.ID})
}

// ByAssignment lists every submission to staff and only their own to a student.
func (svc *Service) ByAssignment(ctx context.Context, u auth.User, assignmentID string) ([]Submission, error) {
	a, _, err := svc.assignments.Authorize(ctx, u, assignmentID, class.View)
	if err != nil {
		return nil, err
	}
	filter := core.Filter{"assignment_id": a.ID}
	if u.Role == auth.RoleStudent {
		filter["student_id"] = u.ID
	}
	return svc.list(ctx, u, filter)
}

// Authorize loads a submission of u's school. The submitting student may always read it,
// otherwise access is decided on its class.
func (svc *Service) Authorize(ctx context.Context, u auth.User, id string, access class.Access) (Submission, error) {
	var s Submission
	if err := auth.FetchScoped(ctx, svc.store, u, submissionsTable, id, &s); err != nil {
		return Submission{}, err
	}

	var check auth.Check = func(ctx context.Context) error {
		_, err := svc.classes.Authorize(ctx, u, s.ClassID, class.Manage)
		return err
	}
	if access == class.View {
		check = auth.AnyOf(auth.OwnerOrRole(u, s.StudentID), check)
	}
	if err := auth.All(ctx, auth.SameTenant(u, s.SchoolID), check); err != nil {
		return Submission{}, err
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, u auth.User, id string) (Submission, error) {
	return svc.Authorize(ctx, u, id, class.View)
}

// Update is open to the submitting student and to the class staff.
func (svc *Service) Update(ctx context.Context, u auth.User, id string, data UpdateSubmission) (Submission, error) {
	s, err := svc.Authorize(ctx, u, id, class.View)
	if err != nil {
		return Submission{}, err
	}

	changes := core.Record{}
	if data.FileURL.Valid {
		changes["file_url"] = data.FileURL
	}
	if data.Notes.Valid {
		changes["notes"] = data.Notes
	}
	if len(changes) == 0 {
		return s, nil
	}

	recs, err := svc.store.Update(ctx, submissionsTable, auth.Scoped(u, core.Filter{"id": s.ID}), changes)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	if len(recs) == 0 {
		return Submission{}, core.NewNotFoundError("submission")
	}
	if err = core.DecodeRecord(recs[0], &s); err != nil {
		return Submission{}, err
	}
	return s, nil
}

func (svc *Service) Delete(ctx context.Context, u auth.User, id string) error {
	s, err := svc.Authorize(ctx, u, id, class.Manage)
	if err != nil {
		return err
	}
	recs, err := svc.store.Delete(ctx, submissionsTable, auth.Scoped(u, core.Filter{"id": s.ID}))
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("submission")
	}
	return nil
}

// IDsByAssignment returns the ids of the submissions to an assignment. No authorization is done here.
func (svc *Service) IDsByAssignment(ctx context.Context, u auth.User, assignmentID string) ([]string, error) {
	subs, err := svc.list(ctx, u, core.Filter{"assignment_id": assignmentID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
