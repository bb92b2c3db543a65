package grade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/assignment"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
	"github.com/learnmate/learnmate/core/submission"
)

var (
	nowFunc = time.Now // mockable

	errAlreadyGraded = core.NewConflictError("grade already exists for this submission")
)

type Service struct {
	store       core.TableStore
	assignments *assignment.Service
	submissions *submission.Service
}

func NewService(store core.TableStore, assignments *assignment.Service, submissions *submission.Service) *Service {
	return &Service{store: store, assignments: assignments, submissions: submissions}
}

// Create grades a submission, once. Only the class staff may grade.
func (svc *Service) Create(ctx context.Context, u auth.User, data NewGrade) (Grade, error) {
	s, err := svc.submissions.Authorize(ctx, u, data.SubmissionID, class.Manage)
	if err != nil {
		return Grade{}, err
	}

	if n, err := svc.store.Count(ctx, gradesTable, auth.Scoped(u, core.Filter{"submission_id": s.ID})); err != nil {
		return Grade{}, errors.Wrap(err, "counting grades")
	} else if n > 0 {
		return Grade{}, errAlreadyGraded
	}

	g := Grade{
		ID:           uuid.NewString(),
		SchoolID:     s.SchoolID,
		SubmissionID: s.ID,
		StudentID:    s.StudentID,
		ClassID:      s.ClassID,
		Grade:        data.Grade,
		Feedback:     data.Feedback,
		GradedBy:     u.ID,
		GradedAt:     nowFunc().UTC(),
	}
	_, err = svc.store.Insert(ctx, gradesTable, auth.Stamp(u, core.Record{
		"id":            g.ID,
		"submission_id": g.SubmissionID,
		"student_id":    g.StudentID,
		"class_id":      g.ClassID,
		"grade":         g.Grade,
		"feedback":      g.Feedback,
		"graded_by":     g.GradedBy,
		"graded_at":     g.GradedAt,
	}))
	if core.IsConflict(err) {
		return Grade{}, errAlreadyGraded
	}
	if err != nil {
		return Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (svc *Service) list(ctx context.Context, u auth.User, filter core.Filter) ([]Grade, error) {
	recs, err := svc.store.Select(ctx, gradesTable, auth.Scoped(u, filter), core.OrderBy(core.DBOrdering{Field: "graded_at"}))
	if err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	res := make([]Grade, 0, len(recs))
	if err = core.DecodeRecords(recs, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// BySubmission is open to the submitting student and the class staff. An ungraded submission is not found.
func (svc *Service) BySubmission(ctx context.Context, u auth.User, submissionID string) (Grade, error) {
	s, err := svc.submissions.Authorize(ctx, u, submissionID, class.View)
	if err != nil {
		return Grade{}, err
	}
	grades, err := svc.list(ctx, u, core.Filter{"submission_id": s.ID})
	if err != nil {
		return Grade{}, err
	}
	if len(grades) == 0 {
		return Grade{}, core.NewNotFoundError("grade")
	}
	return grades[0], nil
}

func (svc *Service) My(ctx context.Context, u auth.User) ([]Grade, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleStudent), auth.Tenant(u)); err != nil {
		return nil, err
	}
	return svc.list(ctx, u, core.Filter{"student_id": u.ID})
}

func (svc *Service) ByAssignment(ctx context.Context, u auth.User, assignmentID string) ([]Grade, error) {
	a, _, err := svc.assignments.Authorize(ctx, u, assignmentID, class.Manage)
	if err != nil {
		return nil, err
	}
	ids, err := svc.submissions.IDsByAssignment(ctx, u, a.ID)
	if err != nil {
		return nil, err
	}
	return svc.list(ctx, u, core.Filter{"submission_id": core.InStrings(ids)})
}

// fetch loads a grade of u's school that u may change: admins, and the teacher who graded it
// as long as they still own its class.
func (svc *Service) fetch(ctx context.Context, u auth.User, id string) (Grade, error) {
	var g Grade
	if err := auth.FetchScoped(ctx, svc.store, u, gradesTable, id, &g); err != nil {
		return Grade{}, err
	}

	var manage auth.Check = func(ctx context.Context) error {
		_, err := svc.submissions.Authorize(ctx, u, g.SubmissionID, class.Manage)
		return err
	}
	if err := auth.All(ctx,
		auth.SameTenant(u, g.SchoolID),
		manage,
		auth.OwnerOrRole(u, g.GradedBy, auth.RoleAdmin),
	); err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (svc *Service) Update(ctx context.Context, u auth.User, id string, data UpdateGrade) (Grade, error) {
	g, err := svc.fetch(ctx, u, id)
	if err != nil {
		return Grade{}, err
	}

	changes := core.Record{"graded_at": nowFunc().UTC()}
	if data.Grade != "" {
		changes["grade"] = data.Grade
	}
	if data.Feedback.Valid {
		changes["feedback"] = data.Feedback
	}
	recs, err := svc.store.Update(ctx, gradesTable, auth.Scoped(u, core.Filter{"id": g.ID}), changes)
	if err != nil {
		return Grade{}, errors.Wrap(err, "updating grade")
	}
	if len(recs) == 0 {
		return Grade{}, core.NewNotFoundError("grade")
	}
	if err = core.DecodeRecord(recs[0], &g); err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (svc *Service) Delete(ctx context.Context, u auth.User, id string) error {
	g, err := svc.fetch(ctx, u, id)
	if err != nil {
		return err
	}
	recs, err := svc.store.Delete(ctx, gradesTable, auth.Scoped(u, core.Filter{"id": g.ID}))
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("grade")
	}
	return nil
}
