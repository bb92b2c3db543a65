package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/school"
	"github.com/learnmate/learnmate/core/user"
	emailsvc "github.com/learnmate/learnmate/services/email"
	inmemdb "github.com/learnmate/learnmate/storage/database/inmem"
	"github.com/learnmate/learnmate/testutil"
)

func setup(t *testing.T) (*Service, *inmemdb.Store) {
	t.Helper()
	conf := core.NewTestConfig()
	store := inmemdb.NewStore()
	users := user.NewService(store, nil, auth.NewMemorySessionStore(0), emailsvc.NewConsoleServiceMock(conf), conf)
	return NewService(store, school.NewService(store, users)), store
}

func insertAttendance(t *testing.T, store core.TableStore, tn testutil.Tenant, status string, createdAt time.Time) {
	t.Helper()
	_, err := store.Insert(context.Background(), "attendance", core.Record{
		"id":         uuid.NewString(),
		"school_id":  tn.SchoolID,
		"class_id":   tn.ClassID,
		"student_id": tn.Student.ID,
		"date":       createdAt.Format(core.DateLayout),
		"status":     status,
		"marked_by":  tn.Teacher.ID,
		"created_at": createdAt,
	})
	require.NoError(t, err)
}

func TestDataset_usage(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	ds := dataset{
		profiles: []profileRow{
			{Role: "admin", LastLogin: null.TimeFrom(now.Add(-24 * time.Hour))},
			{Role: "student", LastLogin: null.TimeFrom(now.Add(-31 * 24 * time.Hour))},
			{Role: "student"},
		},
		classes: []classRow{
			{UpdatedAt: now.Add(-29 * 24 * time.Hour)},
			{UpdatedAt: now.Add(-90 * 24 * time.Hour)},
		},
		attendance: []attendanceRow{
			{Status: "present", CreatedAt: now.Add(-time.Hour)},
			{Status: "late", CreatedAt: now.Add(-6 * 24 * time.Hour)},
			{Status: "absent", CreatedAt: now.Add(-8 * 24 * time.Hour)},
		},
	}

	u := ds.usage(now)
	assert.Equal(t, UserStats{Total: 3, Active: 1, ByRole: map[string]int{"admin": 1, "student": 2}}, u.Users)
	assert.Equal(t, ClassStats{Total: 2, Active: 1}, u.Classes)
	assert.Equal(t, 3, u.Attendance.TotalRecords)
	assert.Equal(t, 1, u.Attendance.PresentCount) // late is not present
	assert.Equal(t, 2, u.Attendance.LastWeek)
	assert.Equal(t, null.Float64From(33.33), u.Attendance.AttendanceRate)

	empty := dataset{}.usage(now)
	assert.False(t, empty.Attendance.AttendanceRate.Valid)
	assert.NotNil(t, empty.Users.ByRole)
}

func TestTop(t *testing.T) {
	ranked := make([]RankedSchool, 0)
	for i := 0; i < 12; i++ {
		ranked = append(ranked, RankedSchool{SchoolName: fmt.Sprintf("School %02d", i), Value: float64(i % 4)})
	}
	got := top(ranked)
	require.Len(t, got, topSchools)
	assert.Equal(t, "School 03", got[0].SchoolName)
	assert.Equal(t, "School 07", got[1].SchoolName)
	assert.Equal(t, "School 11", got[2].SchoolName)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Value, got[i].Value)
	}
}

func TestService_AdminMetrics(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()
	alpha := testutil.CreateTenant(t, store, "alpha")
	beta := testutil.CreateTenant(t, store, "beta")

	// a second class with the same student is still one enrolled student
	other := testutil.CreateClass(t, store, alpha.SchoolID, alpha.Teacher.ID, "Other")
	testutil.Enroll(t, store, alpha.SchoolID, other, alpha.Student.ID)
	insertAttendance(t, store, alpha, "present", now)
	insertAttendance(t, store, beta, "present", now)
	testutil.CreateAssignment(t, store, alpha.SchoolID, alpha.ClassID, alpha.Teacher.ID, "Essay")

	m, err := svc.AdminMetrics(ctx, alpha.Admin)
	require.NoError(t, err)
	assert.Equal(t, AdminMetrics{
		TotalUsers:         3,
		TotalClasses:       2,
		StudentsEnrolled:   1,
		AttendanceRecords:  1,
		AssignmentsCreated: 1,
	}, m)

	_, err = svc.AdminMetrics(ctx, alpha.Teacher)
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_PlatformAnalytics(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()
	root := testutil.CreateProfile(t, store, "root@test.cd", "Root", auth.RoleSuperuser, "")

	tenants := make([]testutil.Tenant, 0, 12)
	for i := 0; i < 12; i++ {
		tn := testutil.CreateTenant(t, store, fmt.Sprintf("s%02d", i))
		for j := 0; j < i; j++ {
			testutil.CreateProfile(t, store, fmt.Sprintf("s%02d-extra%d@test.cd", i, j), "Extra", auth.RoleStudent, tn.SchoolID)
		}
		tenants = append(tenants, tn)
	}
	insertAttendance(t, store, tenants[0], "absent", now)
	insertAttendance(t, store, tenants[1], "present", now)
	insertAttendance(t, store, tenants[3], "late", now)
	_, err := store.Update(ctx, "schools", core.Filter{"id": tenants[2].SchoolID}, core.Record{"status": "suspended"})
	require.NoError(t, err)

	res, err := svc.PlatformAnalytics(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 12, res.TotalSchools)
	assert.Equal(t, 11, res.ActiveSchools)
	assert.Equal(t, 12*3+66+1, res.Users.Total)
	assert.Equal(t, 3, res.Attendance.TotalRecords)
	assert.Equal(t, 1, res.Attendance.PresentCount)

	require.Len(t, res.TopSchoolsByUsers, topSchools)
	assert.Equal(t, tenants[11].SchoolID, res.TopSchoolsByUsers[0].SchoolID)
	assert.Equal(t, 14.0, res.TopSchoolsByUsers[0].Value)

	require.Len(t, res.TopSchoolsByAttendanceRate, 3)
	assert.Equal(t, tenants[1].SchoolID, res.TopSchoolsByAttendanceRate[0].SchoolID)
	assert.Equal(t, 100.0, res.TopSchoolsByAttendanceRate[0].Value)
	assert.Equal(t, 0.0, res.TopSchoolsByAttendanceRate[1].Value)
	assert.Equal(t, 0.0, res.TopSchoolsByAttendanceRate[2].Value)

	sa, err := svc.SchoolAnalytics(ctx, root, tenants[1].SchoolID)
	require.NoError(t, err)
	assert.Equal(t, tenants[1].SchoolID, sa.School.ID)
	assert.Equal(t, 4, sa.Users.Total)

	_, err = svc.PlatformAnalytics(ctx, tenants[0].Admin)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = svc.SchoolAnalytics(ctx, root, uuid.NewString())
	assert.True(t, core.IsNotFound(err), "got %v", err)
}
