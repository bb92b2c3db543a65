package grade_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/assignment"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
	"github.com/learnmate/learnmate/core/grade"
	"github.com/learnmate/learnmate/core/submission"
	"github.com/learnmate/learnmate/core/user"
	emailsvc "github.com/learnmate/learnmate/services/email"
	inmemdb "github.com/learnmate/learnmate/storage/database/inmem"
	"github.com/learnmate/learnmate/testutil"
)

type fixture struct {
	svc          *grade.Service
	store        *inmemdb.Store
	alpha        testutil.Tenant
	beta         testutil.Tenant
	otherTeacher auth.User
	submissionID string
	assignmentID string
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	store := inmemdb.NewStore()
	users := user.NewService(store, nil, auth.NewMemorySessionStore(0), emailsvc.NewConsoleServiceMock(conf), conf)
	classes := class.NewService(store, users)
	assignments := assignment.NewService(store, classes)
	submissions := submission.NewService(store, classes, assignments)

	f := fixture{
		svc:   grade.NewService(store, assignments, submissions),
		store: store,
		alpha: testutil.CreateTenant(t, store, "alpha"),
		beta:  testutil.CreateTenant(t, store, "beta"),
	}
	f.otherTeacher = testutil.CreateProfile(t, store, "t2@test.cd", "T2", auth.RoleTeacher, f.alpha.SchoolID)
	f.assignmentID = testutil.CreateAssignment(t, store, f.alpha.SchoolID, f.alpha.ClassID, f.alpha.Teacher.ID, "Essay")
	f.submissionID = testutil.CreateSubmission(t, store, f.alpha.SchoolID, f.assignmentID, f.alpha.ClassID, f.alpha.Student.ID)
	return f
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	data := grade.NewGrade{SubmissionID: f.submissionID, Grade: "B", Feedback: null.StringFrom("good")}

	tests := []struct {
		name string
		usr  auth.User
	}{
		{name: "student", usr: f.alpha.Student},
		{name: "teacher of another class", usr: f.otherTeacher},
		{name: "other school admin", usr: f.beta.Admin},
		{name: "other school teacher", usr: f.beta.Teacher},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.usr, data)
			assert.Equal(t, core.ErrForbidden, errors.Cause(err))
		})
	}

	g, err := f.svc.Create(ctx, f.alpha.Teacher, data)
	require.NoError(t, err)
	assert.Equal(t, f.alpha.SchoolID, g.SchoolID)
	assert.Equal(t, f.alpha.Student.ID, g.StudentID)
	assert.Equal(t, f.alpha.Teacher.ID, g.GradedBy)

	_, err = f.svc.Create(ctx, f.alpha.Admin, data)
	assert.True(t, core.IsConflict(err), "got %v", err)
}

func TestService_UpdateDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g, err := f.svc.Create(ctx, f.alpha.Teacher, grade.NewGrade{SubmissionID: f.submissionID, Grade: "B"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		usr     auth.User
		wantErr error
	}{
		{name: "student", usr: f.alpha.Student, wantErr: core.ErrForbidden},
		{name: "teacher of another class", usr: f.otherTeacher, wantErr: core.ErrForbidden},
		{name: "other school admin", usr: f.beta.Admin, wantErr: core.ErrForbidden},
		{name: "grader", usr: f.alpha.Teacher},
		{name: "admin", usr: f.alpha.Admin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.usr, g.ID, grade.UpdateGrade{Grade: "A"})
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	// once the class moves to another teacher, the former owner loses write access,
	// and the new owner only gets it for grades they entered
	_, err = f.store.Update(ctx, "classes", core.Filter{"id": f.alpha.ClassID}, core.Record{"teacher_id": f.otherTeacher.ID})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.alpha.Teacher, g.ID, grade.UpdateGrade{Grade: "C"})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	assert.Equal(t, core.ErrForbidden, errors.Cause(f.svc.Delete(ctx, f.alpha.Teacher, g.ID)))
	_, err = f.svc.Update(ctx, f.otherTeacher, g.ID, grade.UpdateGrade{Grade: "C"})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	assert.Equal(t, core.ErrForbidden, errors.Cause(f.svc.Delete(ctx, f.otherTeacher, g.ID)))

	updated, err := f.svc.Update(ctx, f.alpha.Admin, g.ID, grade.UpdateGrade{Feedback: null.StringFrom("revised")})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Grade)
	assert.Equal(t, null.StringFrom("revised"), updated.Feedback)

	require.NoError(t, f.svc.Delete(ctx, f.alpha.Admin, g.ID))
	_, err = f.svc.BySubmission(ctx, f.alpha.Admin, f.submissionID)
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_reads(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	classmate := testutil.CreateProfile(t, f.store, "s2@test.cd", "S2", auth.RoleStudent, f.alpha.SchoolID)
	testutil.Enroll(t, f.store, f.alpha.SchoolID, f.alpha.ClassID, classmate.ID)

	_, err := f.svc.BySubmission(ctx, f.alpha.Student, f.submissionID)
	assert.True(t, core.IsNotFound(err), "ungraded: got %v", err)

	g, err := f.svc.Create(ctx, f.alpha.Teacher, grade.NewGrade{SubmissionID: f.submissionID, Grade: "B"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		usr     auth.User
		wantErr error
	}{
		{name: "submitter", usr: f.alpha.Student},
		{name: "owner", usr: f.alpha.Teacher},
		{name: "admin", usr: f.alpha.Admin},
		{name: "classmate", usr: classmate, wantErr: core.ErrForbidden},
		{name: "teacher of another class", usr: f.otherTeacher, wantErr: core.ErrForbidden},
		{name: "other school", usr: f.beta.Admin, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.BySubmission(ctx, tt.usr, f.submissionID)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			if tt.wantErr == nil {
				assert.Equal(t, g.ID, got.ID)
			}
		})
	}

	mine, err := f.svc.My(ctx, f.alpha.Student)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	mine, err = f.svc.My(ctx, classmate)
	require.NoError(t, err)
	assert.Empty(t, mine)
	_, err = f.svc.My(ctx, f.alpha.Teacher)
	assert.Equal(t, core.ErrForbidden, err)

	byAssignment, err := f.svc.ByAssignment(ctx, f.alpha.Teacher, f.assignmentID)
	require.NoError(t, err)
	assert.Len(t, byAssignment, 1)
	_, err = f.svc.ByAssignment(ctx, f.alpha.Student, f.assignmentID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
	_, err = f.svc.ByAssignment(ctx, f.otherTeacher, f.assignmentID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))
}
