package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/school"
)

var nowFunc = time.Now // mockable

type Service struct {
	store   core.TableStore
	schools *school.Service
}

func NewService(store core.TableStore, schools *school.Service) *Service {
	return &Service{store: store, schools: schools}
}

func (svc *Service) count(ctx context.Context, table string, filter core.Filter) (int, error) {
	n, err := svc.store.Count(ctx, table, filter)
	return n, errors.Wrapf(err, "counting %s", table)
}

func (svc *Service) AdminMetrics(ctx context.Context, u auth.User) (AdminMetrics, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return AdminMetrics{}, err
	}
	scope := auth.Scoped(u, nil)
	now := nowFunc().UTC()

	var profiles []profileRow
	if err := svc.load(ctx, "profiles", scope, &profiles); err != nil {
		return AdminMetrics{}, err
	}
	var m AdminMetrics
	m.TotalUsers = len(profiles)
	for _, p := range profiles {
		if isRecent(p.LastLogin, now, activeWindow) {
			m.ActiveUsers++
		}
	}

	recs, err := svc.store.Select(ctx, "class_students", scope)
	if err != nil {
		return AdminMetrics{}, errors.Wrap(err, "selecting enrollments")
	}
	students := make(map[interface{}]struct{}, len(recs))
	for _, r := range recs {
		students[r["student_id"]] = struct{}{}
	}
	m.StudentsEnrolled = len(students)

	for table, dst := range map[string]*int{
		"classes":     &m.TotalClasses,
		"attendance":  &m.AttendanceRecords,
		"assignments": &m.AssignmentsCreated,
		"grades":      &m.GradesEntered,
	} {
		if *dst, err = svc.count(ctx, table, scope); err != nil {
			return AdminMetrics{}, err
		}
	}
	return m, nil
}

func (svc *Service) load(ctx context.Context, table string, filter core.Filter, out interface{}) error {
	recs, err := svc.store.Select(ctx, table, filter)
	if err != nil {
		return errors.Wrapf(err, "selecting %s", table)
	}
	return core.DecodeRecords(recs, out)
}

type dataset struct {
	profiles   []profileRow
	classes    []classRow
	attendance []attendanceRow
}

func (svc *Service) dataset(ctx context.Context, filter core.Filter) (dataset, error) {
	var ds dataset
	if err := svc.load(ctx, "profiles", filter, &ds.profiles); err != nil {
		return dataset{}, err
	}
	if err := svc.load(ctx, "classes", filter, &ds.classes); err != nil {
		return dataset{}, err
	}
	if err := svc.load(ctx, "attendance", filter, &ds.attendance); err != nil {
		return dataset{}, err
	}
	return ds, nil
}

// bySchool splits a platform dataset per school.
func (ds dataset) bySchool() map[string]*dataset {
	res := make(map[string]*dataset)
	get := func(id string) *dataset {
		if _, ok := res[id]; !ok {
			res[id] = new(dataset)
		}
		return res[id]
	}
	for _, p := range ds.profiles {
		if p.SchoolID.Valid {
			d := get(p.SchoolID.String)
			d.profiles = append(d.profiles, p)
		}
	}
	for _, c := range ds.classes {
		d := get(c.SchoolID)
		d.classes = append(d.classes, c)
	}
	for _, a := range ds.attendance {
		d := get(a.SchoolID)
		d.attendance = append(d.attendance, a)
	}
	return res
}

func (ds dataset) usage(now time.Time) Usage {
	u := Usage{Users: UserStats{ByRole: make(map[string]int)}}

	for _, p := range ds.profiles {
		u.Users.Total++
		u.Users.ByRole[p.Role]++
		if isRecent(p.LastLogin, now, activeWindow) {
			u.Users.Active++
		}
	}
	for _, c := range ds.classes {
		u.Classes.Total++
		if now.Sub(c.UpdatedAt) <= activeWindow {
			u.Classes.Active++
		}
	}
	for _, a := range ds.attendance {
		u.Attendance.TotalRecords++
		if a.Status == "present" {
			u.Attendance.PresentCount++
		}
		if now.Sub(a.CreatedAt) <= activityWindow {
			u.Attendance.LastWeek++
		}
	}
	if u.Attendance.TotalRecords > 0 {
		u.Attendance.AttendanceRate = null.Float64From(core.Percent(u.Attendance.PresentCount, u.Attendance.TotalRecords))
	}
	return u
}

func isRecent(t null.Time, now time.Time, window time.Duration) bool {
	return t.Valid && now.Sub(t.Time) <= window
}

func (svc *Service) SchoolAnalytics(ctx context.Context, u auth.User, schoolID string) (SchoolAnalytics, error) {
	if err := auth.RequireRole(u, auth.RoleSuperuser); err != nil {
		return SchoolAnalytics{}, err
	}
	s, err := svc.schools.Get(ctx, u, schoolID)
	if err != nil {
		return SchoolAnalytics{}, err
	}

	ds, err := svc.dataset(ctx, core.Filter{"school_id": s.ID})
	if err != nil {
		return SchoolAnalytics{}, err
	}
	return SchoolAnalytics{School: s, Usage: ds.usage(nowFunc().UTC())}, nil
}

// PlatformAnalytics aggregates every school. Schools without a status count as active.
func (svc *Service) PlatformAnalytics(ctx context.Context, u auth.User) (PlatformAnalytics, error) {
	if err := auth.RequireRole(u, auth.RoleSuperuser); err != nil {
		return PlatformAnalytics{}, err
	}
	now := nowFunc().UTC()

	schools, err := svc.schools.All(ctx)
	if err != nil {
		return PlatformAnalytics{}, err
	}
	ds, err := svc.dataset(ctx, nil)
	if err != nil {
		return PlatformAnalytics{}, err
	}

	res := PlatformAnalytics{
		TotalSchools:               len(schools),
		Usage:                      ds.usage(now),
		TopSchoolsByUsers:          make([]RankedSchool, 0),
		TopSchoolsByAttendanceRate: make([]RankedSchool, 0),
	}

	perSchool := ds.bySchool()
	for _, s := range schools {
		if s.IsActive() {
			res.ActiveSchools++
		}
		usage := new(dataset).usage(now)
		if d, ok := perSchool[s.ID]; ok {
			usage = d.usage(now)
		}
		res.TopSchoolsByUsers = append(res.TopSchoolsByUsers,
			RankedSchool{SchoolID: s.ID, SchoolName: s.SchoolName, Value: float64(usage.Users.Total)})
		if usage.Attendance.AttendanceRate.Valid {
			res.TopSchoolsByAttendanceRate = append(res.TopSchoolsByAttendanceRate,
				RankedSchool{SchoolID: s.ID, SchoolName: s.SchoolName, Value: usage.Attendance.AttendanceRate.Float64})
		}
	}
	res.TopSchoolsByUsers = top(res.TopSchoolsByUsers)
	res.TopSchoolsByAttendanceRate = top(res.TopSchoolsByAttendanceRate)
	return res, nil
}

// top sorts by descending value, then name, and keeps the first ten.
func top(ranked []RankedSchool) []RankedSchool {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].SchoolName < ranked[j].SchoolName
	})
	if len(ranked) > topSchools {
		ranked = ranked[:topSchools]
	}
	return ranked
}
