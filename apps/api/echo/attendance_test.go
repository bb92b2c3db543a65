package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnmate/learnmate/core/attendance"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/testutil"
)

func Test_attendanceApi_mark(t *testing.T) {
	app := setup(t)
	alpha := testutil.CreateTenant(t, app.store, "alpha")
	beta := testutil.CreateTenant(t, app.store, "beta")
	outsider := testutil.CreateProfile(t, app.store, "outsider@test.cd", "Outsider", auth.RoleStudent, alpha.SchoolID)

	teacherToken := testutil.Login(t, app.sessions, alpha.Teacher)
	betaTeacherToken := testutil.Login(t, app.sessions, beta.Teacher)
	studentToken := testutil.Login(t, app.sessions, alpha.Student)

	body := func(classID, studentID, date, status string) []byte {
		return marchallObj(t, attendance.NewAttendance{ClassID: classID, StudentID: studentID, Date: date, Status: status})
	}
	valid := body(alpha.ClassID, alpha.Student.ID, "2024-03-01", "present")

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/attendance", body: valid, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{name: "owner teacher", method: http.MethodPost, path: "/v1/attendance", body: valid, token: teacherToken, wantCode: http.StatusCreated},
		{
			name: "duplicate", method: http.MethodPost, path: "/v1/attendance", body: valid, token: teacherToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "attendance already marked for this date"}),
		},
		{
			name: "cross tenant", method: http.MethodPost, path: "/v1/attendance", body: valid, token: betaTeacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student cannot mark", method: http.MethodPost, path: "/v1/attendance",
			body: body(alpha.ClassID, alpha.Student.ID, "2024-03-02", "present"), token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "not enrolled", method: http.MethodPost, path: "/v1/attendance",
			body: body(alpha.ClassID, outsider.ID, "2024-03-01", "present"), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "student is not enrolled in this class"}),
		},
		{
			name: "bad status and date", method: http.MethodPost, path: "/v1/attendance",
			body: body(alpha.ClassID, alpha.Student.ID, "01/03/2024", "sick"), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{
				"date":   "date must be a date formatted as YYYY-MM-DD",
				"status": "status must be one of: present, absent, late",
			}),
		},
	}
	runTests(t, app, tests)

	// a beta teacher cannot even read alpha's records
	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/class/"+alpha.ClassID, betaTeacherToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, app.do(req, rec))

	req, rec = newAuthRequest(http.MethodGet, "/v1/attendance/class/"+alpha.ClassID+"?date=2024-03-01", teacherToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Attendance
	unmarshal(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, alpha.SchoolID, records[0].SchoolID)
	assert.Equal(t, alpha.Teacher.ID, records[0].MarkedBy)
}

func Test_attendanceApi_bulkAndSummary(t *testing.T) {
	app := setup(t)
	alpha := testutil.CreateTenant(t, app.store, "alpha")
	beta := testutil.CreateTenant(t, app.store, "beta")
	second := testutil.CreateProfile(t, app.store, "second@test.cd", "Second", auth.RoleStudent, alpha.SchoolID)
	testutil.Enroll(t, app.store, alpha.SchoolID, alpha.ClassID, second.ID)

	adminToken := testutil.Login(t, app.sessions, alpha.Admin)

	bulk := attendance.BulkAttendance{Records: []attendance.NewAttendance{
		{ClassID: alpha.ClassID, StudentID: alpha.Student.ID, Date: "2024-03-01", Status: "present"},
		{ClassID: alpha.ClassID, StudentID: second.ID, Date: "2024-03-01", Status: "absent"},
		{ClassID: alpha.ClassID, StudentID: alpha.Student.ID, Date: "2024-03-01", Status: "late"},
		{ClassID: beta.ClassID, StudentID: beta.Student.ID, Date: "2024-03-01", Status: "present"},
	}}
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/bulk", adminToken, marchallObj(t, bulk))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res attendance.BulkResult
	unmarshal(t, rec, &res)
	assert.Len(t, res.Created, 2)
	assert.Equal(t, []attendance.Skipped{
		{Index: 2, Reason: "attendance already marked for this date"},
		{Index: 3, Reason: "permission denied"},
	}, res.Skipped)

	tests := []httpTest{
		{
			name: "empty bulk", method: http.MethodPost, path: "/v1/attendance/bulk", token: adminToken,
			body: marchallObj(t, attendance.BulkAttendance{}), wantCode: http.StatusBadRequest,
		},
		{
			name: "summary", path: "/v1/attendance/class/" + alpha.ClassID + "/summary?date=2024-03-01", token: adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Summary{
				ClassID:              alpha.ClassID,
				Date:                 "2024-03-01",
				TotalStudents:        2,
				PresentCount:         1,
				AbsentCount:          1,
				AttendancePercentage: 50,
			}),
		},
		{
			name: "summary without records", path: "/v1/attendance/class/" + alpha.ClassID + "/summary?date=2024-03-02", token: adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Summary{ClassID: alpha.ClassID, Date: "2024-03-02", TotalStudents: 2, AbsentCount: 2}),
		},
		{
			name: "summary bad date", path: "/v1/attendance/class/" + alpha.ClassID + "/summary?date=yesterday", token: adminToken,
			wantCode: http.StatusBadRequest,
		},
	}
	runTests(t, app, tests)
}

func Test_attendanceApi_byStudent(t *testing.T) {
	app := setup(t)
	alpha := testutil.CreateTenant(t, app.store, "alpha")
	otherTeacher := testutil.CreateProfile(t, app.store, "other@test.cd", "Other", auth.RoleTeacher, alpha.SchoolID)
	otherStudent := testutil.CreateProfile(t, app.store, "other-student@test.cd", "Other Student", auth.RoleStudent, alpha.SchoolID)

	teacherToken := testutil.Login(t, app.sessions, alpha.Teacher)
	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", teacherToken, marchallObj(t, attendance.NewAttendance{
		ClassID: alpha.ClassID, StudentID: alpha.Student.ID, Date: "2024-03-01", Status: "present",
	}))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var marked attendance.Attendance
	unmarshal(t, rec, &marked)

	path := "/v1/attendance/student/" + alpha.Student.ID
	tests := []httpTest{
		{name: "admin", path: path, token: testutil.Login(t, app.sessions, alpha.Admin), wantCode: http.StatusOK, wantData: marchallList(t, marked)},
		{name: "owner teacher", path: path, token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, marked)},
		{name: "other teacher", path: path, token: testutil.Login(t, app.sessions, otherTeacher), wantCode: http.StatusOK, wantData: marchallList(t)},
		{name: "the student", path: path, token: testutil.Login(t, app.sessions, alpha.Student), wantCode: http.StatusOK, wantData: marchallList(t, marked)},
		{
			name: "another student", path: path, token: testutil.Login(t, app.sessions, otherStudent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	runTests(t, app, tests)
}
