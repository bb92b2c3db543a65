package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	. "github.com/learnmate/learnmate/apps/api/echo"
	"github.com/learnmate/learnmate/core/assignment"
	"github.com/learnmate/learnmate/core/grade"
	"github.com/learnmate/learnmate/core/submission"
	"github.com/learnmate/learnmate/testutil"
)

func Test_courseworkFlow(t *testing.T) {
	app := setup(t)
	alpha := testutil.CreateTenant(t, app.store, "alpha")
	beta := testutil.CreateTenant(t, app.store, "beta")
	teacherToken := testutil.Login(t, app.sessions, alpha.Teacher)
	studentToken := testutil.Login(t, app.sessions, alpha.Student)
	betaTeacherToken := testutil.Login(t, app.sessions, beta.Teacher)

	newAssignment := assignment.NewAssignment{ClassID: alpha.ClassID, Title: "Essay", DueDate: "2024-04-01"}
	tests := []httpTest{
		{
			name: "student cannot create", method: http.MethodPost, path: "/v1/assignments", token: studentToken,
			body: marchallObj(t, newAssignment), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "other tenant cannot create", method: http.MethodPost, path: "/v1/assignments", token: betaTeacherToken,
			body: marchallObj(t, newAssignment), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "bad due date", method: http.MethodPost, path: "/v1/assignments", token: teacherToken,
			body:     marchallObj(t, assignment.NewAssignment{ClassID: alpha.ClassID, Title: "Essay", DueDate: "tomorrow"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"due_date": "due_date must be a date formatted as YYYY-MM-DD"}),
		},
	}
	runTests(t, app, tests)

	// assignment
	req, rec := newAuthRequest(http.MethodPost, "/v1/assignments", teacherToken, marchallObj(t, newAssignment))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a assignment.Assignment
	unmarshal(t, rec, &a)
	assert.Equal(t, alpha.SchoolID, a.SchoolID)
	assert.Equal(t, alpha.Teacher.ID, a.CreatedBy)
	assert.Equal(t, null.StringFrom("2024-04-01"), a.DueDate)

	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments/class/"+alpha.ClassID, studentToken)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, a)}, rec)

	// submission
	newSubmission := submission.NewSubmission{AssignmentID: a.ID, Notes: null.StringFrom("done")}
	req, rec = newAuthRequest(http.MethodPost, "/v1/submissions", studentToken, marchallObj(t, newSubmission))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s submission.Submission
	unmarshal(t, rec, &s)
	assert.Equal(t, alpha.Student.ID, s.StudentID)
	assert.Equal(t, alpha.ClassID, s.ClassID)

	tests = []httpTest{
		{
			name: "duplicate submission", method: http.MethodPost, path: "/v1/submissions", token: studentToken,
			body:     marchallObj(t, newSubmission),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "submission already exists for this assignment"}),
		},
		{
			name: "submitting for someone else", method: http.MethodPost, path: "/v1/submissions", token: studentToken,
			body:     marchallObj(t, submission.NewSubmission{AssignmentID: a.ID, StudentID: alpha.Teacher.ID}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "my submissions", path: "/v1/submissions/my", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t, s)},
		{name: "teacher has no own submissions", path: "/v1/submissions/my", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "by assignment", path: "/v1/submissions/assignment/" + a.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, s)},
		{name: "other tenant reads", path: "/v1/submissions/" + s.ID, token: betaTeacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "not graded yet", path: "/v1/grades/submission/" + s.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "grade not found"}),
		},
		{
			name: "student cannot grade", method: http.MethodPost, path: "/v1/grades", token: studentToken,
			body:     marchallObj(t, grade.NewGrade{SubmissionID: s.ID, Grade: "A"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	runTests(t, app, tests)

	// grade
	newGrade := grade.NewGrade{SubmissionID: s.ID, Grade: "A", Feedback: null.StringFrom("well done")}
	req, rec = newAuthRequest(http.MethodPost, "/v1/grades", teacherToken, marchallObj(t, newGrade))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var g grade.Grade
	unmarshal(t, rec, &g)
	assert.Equal(t, alpha.Teacher.ID, g.GradedBy)
	assert.Equal(t, alpha.Student.ID, g.StudentID)

	tests = []httpTest{
		{
			name: "duplicate grade", method: http.MethodPost, path: "/v1/grades", token: teacherToken,
			body:     marchallObj(t, newGrade),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "grade already exists for this submission"}),
		},
		{name: "student reads grade", path: "/v1/grades/submission/" + s.ID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, g)},
		{name: "my grades", path: "/v1/grades/my", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t, g)},
		{name: "grades by assignment", path: "/v1/grades/assignment/" + a.ID, token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, g)},
		{name: "student cannot list by assignment", path: "/v1/grades/assignment/" + a.ID, token: studentToken, wantCode: http.StatusForbidden},
		{
			name: "other tenant cannot change grade", method: http.MethodPut, path: "/v1/grades/" + g.ID, token: betaTeacherToken,
			body: marchallObj(t, grade.UpdateGrade{Grade: "F"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	runTests(t, app, tests)

	req, rec = newAuthRequest(http.MethodPut, "/v1/grades/"+g.ID, teacherToken, marchallObj(t, grade.UpdateGrade{Grade: "A+"}))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated grade.Grade
	unmarshal(t, rec, &updated)
	assert.Equal(t, "A+", updated.Grade)
	assert.Equal(t, null.StringFrom("well done"), updated.Feedback)

	tests = []httpTest{
		{
			name: "delete grade", method: http.MethodDelete, path: "/v1/grades/" + g.ID, token: testutil.Login(t, app.sessions, alpha.Admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, MessageResponse{Message: "Grade deleted successfully"}),
		},
		{name: "grade gone", path: "/v1/grades/submission/" + s.ID, token: studentToken, wantCode: http.StatusNotFound},
		{
			name: "delete assignment", method: http.MethodDelete, path: "/v1/assignments/" + a.ID, token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, MessageResponse{Message: "Assignment deleted successfully"}),
		},
	}
	runTests(t, app, tests)
}
