// Package testutil seeds table stores with fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

// Tenant is a school with one account of each school role and a class
// owned by Teacher in which Student is enrolled.
type Tenant struct {
	SchoolID string
	ClassID  string
	Admin    auth.User
	Teacher  auth.User
	Student  auth.User
}

func insert(t *testing.T, store core.TableStore, table string, rec core.Record) {
	t.Helper()
	if _, err := store.Insert(context.Background(), table, rec); err != nil {
		t.Fatalf("inserting into %s failed: %v", table, err)
	}
}

func optional(id string) null.String {
	if id == "" {
		return null.String{}
	}
	return null.StringFrom(id)
}

func CreateProfile(
	t *testing.T,
	store core.TableStore,
	email, fullName string,
	role auth.Role,
	schoolID string,
	createdAt ...time.Time,
) auth.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := auth.User{
		ID:       uuid.NewString(),
		Email:    email,
		Role:     role,
		FullName: fullName,
		SchoolID: optional(schoolID),
	}
	insert(t, store, "profiles", core.Record{
		"id":         usr.ID,
		"email":      usr.Email,
		"full_name":  usr.FullName,
		"role":       string(usr.Role),
		"school_id":  usr.SchoolID,
		"last_login": null.Time{},
		"created_at": tstamp,
		"updated_at": tstamp,
	})
	return usr
}

func CreateSchool(t *testing.T, store core.TableStore, name, adminID string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	insert(t, store, "schools", core.Record{
		"id":          id,
		"school_name": name,
		"admin_id":    adminID,
		"status":      null.String{},
		"created_at":  now,
		"updated_at":  now,
	})
	return id
}

func CreateClass(t *testing.T, store core.TableStore, schoolID, teacherID, name string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	insert(t, store, "classes", core.Record{
		"id":          id,
		"school_id":   schoolID,
		"name":        name,
		"description": null.String{},
		"teacher_id":  teacherID,
		"created_at":  now,
		"updated_at":  now,
	})
	return id
}

func Enroll(t *testing.T, store core.TableStore, schoolID, classID, studentID string) {
	t.Helper()
	insert(t, store, "class_students", core.Record{
		"class_id":    classID,
		"student_id":  studentID,
		"school_id":   schoolID,
		"enrolled_at": time.Now().UTC(),
	})
}

func CreateAssignment(t *testing.T, store core.TableStore, schoolID, classID, createdBy, title string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now().UTC()
	insert(t, store, "assignments", core.Record{
		"id":          id,
		"school_id":   schoolID,
		"class_id":    classID,
		"title":       title,
		"description": null.String{},
		"due_date":    null.String{},
		"file_url":    null.String{},
		"created_by":  createdBy,
		"created_at":  now,
		"updated_at":  now,
	})
	return id
}

func CreateSubmission(t *testing.T, store core.TableStore, schoolID, assignmentID, classID, studentID string) string {
	t.Helper()
	id := uuid.NewString()
	insert(t, store, "submissions", core.Record{
		"id":            id,
		"school_id":     schoolID,
		"assignment_id": assignmentID,
		"class_id":      classID,
		"student_id":    studentID,
		"file_url":      null.String{},
		"notes":         null.String{},
		"submitted_at":  time.Now().UTC(),
	})
	return id
}

// CreateTenant seeds a full school. prefix keeps emails and names unique across tenants.
func CreateTenant(t *testing.T, store core.TableStore, prefix string) Tenant {
	t.Helper()
	var tn Tenant
	tn.Admin = CreateProfile(t, store, prefix+"-admin@test.cd", prefix+" Admin", auth.RoleAdmin, "")
	tn.SchoolID = CreateSchool(t, store, prefix+" School", tn.Admin.ID)
	if _, err := store.Update(context.Background(), "profiles", core.Filter{"id": tn.Admin.ID},
		core.Record{"school_id": tn.SchoolID}); err != nil {
		t.Fatalf("assigning school failed: %v", err)
	}
	tn.Admin.SchoolID = null.StringFrom(tn.SchoolID)

	tn.Teacher = CreateProfile(t, store, prefix+"-teacher@test.cd", prefix+" Teacher", auth.RoleTeacher, tn.SchoolID)
	tn.Student = CreateProfile(t, store, prefix+"-student@test.cd", prefix+" Student", auth.RoleStudent, tn.SchoolID)
	tn.ClassID = CreateClass(t, store, tn.SchoolID, tn.Teacher.ID, prefix+" Class")
	Enroll(t, store, tn.SchoolID, tn.ClassID, tn.Student.ID)
	return tn
}

// Login opens a session for usr and returns its token.
func Login(t *testing.T, sessions auth.SessionStore, usr auth.User) string {
	t.Helper()
	token, err := sessions.Create(context.Background(), usr.ID, 0)
	if err != nil {
		t.Fatalf("opening session failed: %v", err)
	}
	return token
}
