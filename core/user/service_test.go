package user_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/user"
	emailsvc "github.com/learnmate/learnmate/services/email"
	inmemdb "github.com/learnmate/learnmate/storage/database/inmem"
	"github.com/learnmate/learnmate/testutil"
)

// fakeIdentity keeps plain-text credentials in memory.
type fakeIdentity struct {
	mu    sync.Mutex
	ids   map[string]string
	pwds  map[string]string
	calls int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{ids: make(map[string]string), pwds: make(map[string]string)}
}

func (f *fakeIdentity) Authenticate(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if pwd, ok := f.pwds[email]; !ok || pwd != password {
		return "", core.ErrAuthenticationFailed
	}
	return f.ids[email], nil
}

func (f *fakeIdentity) Register(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[email]; ok {
		return "", core.NewConflictError("a user with this email already exists")
	}
	f.ids[email] = uuid.NewString()
	f.pwds[email] = password
	return f.ids[email], nil
}

func (f *fakeIdentity) SetPassword(_ context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[email]; !ok {
		return core.NewNotFoundError("user")
	}
	f.pwds[email] = password
	return nil
}

func (f *fakeIdentity) Unregister(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, id := range f.ids {
		if id == userID {
			delete(f.ids, email)
			delete(f.pwds, email)
		}
	}
	return nil
}

// profilesDown fails every profile insert.
type profilesDown struct {
	core.TableStore
}

func (s profilesDown) Insert(ctx context.Context, table string, rec core.Record) (core.Record, error) {
	if table == "profiles" {
		return nil, core.NewUpstreamError("insert profiles", context.DeadlineExceeded)
	}
	return s.TableStore.Insert(ctx, table, rec)
}

type fixture struct {
	svc      *user.Service
	store    *inmemdb.Store
	idp      *fakeIdentity
	sessions *auth.MemorySessionStore
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	store := inmemdb.NewStore()
	idp := newFakeIdentity()
	sessions := auth.NewMemorySessionStore(conf.Auth.SessionTTL)
	emailsvc.ResetSentMessages()
	return fixture{
		svc:      user.NewService(store, idp, sessions, emailsvc.NewConsoleServiceMock(conf), conf),
		store:    store,
		idp:      idp,
		sessions: sessions,
	}
}

func TestService_SignupLoginLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sess, err := f.svc.Signup(ctx, user.Signup{Email: "jane@test.cd", Password: "s3cret!", FullName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, user.TokenType, sess.TokenType)
	assert.Equal(t, "student", sess.User.Role)
	assert.False(t, sess.User.SchoolID.Valid)

	userID, ok, err := f.sessions.Resolve(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sess.User.ID, userID)

	_, err = f.svc.Signup(ctx, user.Signup{Email: "jane@test.cd", Password: "other1", FullName: "Jane"})
	assert.True(t, core.IsConflict(err), "got %v", err)

	_, err = f.svc.Login(ctx, user.Login{Email: "jane@test.cd", Password: "wrong"})
	assert.Equal(t, core.ErrAuthenticationFailed, errors.Cause(err))

	login, err := f.svc.Login(ctx, user.Login{Email: "jane@test.cd", Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEqual(t, sess.AccessToken, login.AccessToken)
	assert.True(t, login.User.LastLogin.Valid)

	p, found, err := f.svc.GetByID(ctx, sess.User.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, time.Now(), p.LastLogin.Time, time.Minute)

	require.NoError(t, f.svc.Logout(ctx, login.AccessToken))
	_, ok, err = f.sessions.Resolve(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, f.svc.Logout(ctx, login.AccessToken))
}

func TestService_profileInsertFailure(t *testing.T) {
	conf := core.NewTestConfig()
	store := inmemdb.NewStore()
	idp := newFakeIdentity()
	sessions := auth.NewMemorySessionStore(conf.Auth.SessionTTL)
	ctx := context.Background()

	down := user.NewService(profilesDown{store}, idp, sessions, emailsvc.NewConsoleServiceMock(conf), conf)
	_, err := down.Signup(ctx, user.Signup{Email: "jane@test.cd", Password: "s3cret!", FullName: "Jane"})
	assert.True(t, core.IsUpstream(err), "got %v", err)
	_, err = down.AddAccount(ctx, user.NewAccount{Email: "john@test.cd", FullName: "John", Role: "teacher", Password: "s3cret!"})
	assert.True(t, core.IsUpstream(err), "got %v", err)

	// no credentials are left behind, so retrying works once the store is back
	idp.mu.Lock()
	assert.Empty(t, idp.ids)
	idp.mu.Unlock()

	up := user.NewService(store, idp, sessions, emailsvc.NewConsoleServiceMock(conf), conf)
	sess, err := up.Signup(ctx, user.Signup{Email: "jane@test.cd", Password: "s3cret!", FullName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "jane@test.cd", sess.User.Email)
}

func TestService_loginWithoutProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.idp.Register(ctx, "ghost@test.cd", "s3cret!")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, user.Login{Email: "ghost@test.cd", Password: "s3cret!"})
	assert.Equal(t, core.ErrNotAuthenticated, errors.Cause(err))
}

func TestService_UpdateMe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alpha := testutil.CreateTenant(t, f.store, "alpha")

	teacher := "teacher"
	p, err := f.svc.UpdateMe(ctx, alpha.Teacher, user.UpdateMe{FullName: "Renamed", Role: &teacher})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.FullName)

	admin := "admin"
	_, err = f.svc.UpdateMe(ctx, alpha.Teacher, user.UpdateMe{FullName: "Boss", Role: &admin})
	assert.Equal(t, core.ErrForbidden, err)

	p, err = f.svc.Me(ctx, alpha.Teacher)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.FullName)
	assert.Equal(t, "teacher", p.Role)
}

func TestService_adminOps(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alpha := testutil.CreateTenant(t, f.store, "alpha")
	beta := testutil.CreateTenant(t, f.store, "beta")

	profiles, err := f.svc.List(ctx, alpha.Admin, user.QueryFilter{Role: " Student "}, nil)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, alpha.Student.ID, profiles[0].ID)

	profiles, err = f.svc.List(ctx, alpha.Admin, user.QueryFilter{}, []core.DBOrdering{{Field: "email", Ascending: true}, {Field: "password"}})
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, "alpha-admin@test.cd", profiles[0].Email)

	_, err = f.svc.List(ctx, alpha.Teacher, user.QueryFilter{}, nil)
	assert.Equal(t, core.ErrForbidden, err)

	_, err = f.svc.Get(ctx, alpha.Admin, beta.Teacher.ID)
	assert.Equal(t, core.ErrForbidden, err)

	p, err := f.svc.AdminUpdate(ctx, alpha.Admin, alpha.Teacher.ID, user.UpdateProfile{Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Role)
	assert.Equal(t, alpha.Teacher.FullName, p.FullName)

	_, err = f.svc.AdminUpdate(ctx, alpha.Admin, alpha.Admin.ID, user.UpdateProfile{Role: "student"})
	assert.Equal(t, core.ErrForbidden, err)

	// renaming oneself is fine
	_, err = f.svc.AdminUpdate(ctx, alpha.Admin, alpha.Admin.ID, user.UpdateProfile{FullName: "Head"})
	assert.NoError(t, err)
}

func TestService_CreateUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alpha := testutil.CreateTenant(t, f.store, "alpha")

	created, err := f.svc.CreateUser(ctx, alpha.Admin, user.NewUser{FirstName: "Ada", LastName: "Lovelace", Email: "ada@test.cd", Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", created.FullName)
	assert.Equal(t, alpha.SchoolID, created.SchoolID.String)
	assert.Len(t, created.GeneratedPassword, 12)
	assert.Equal(t, created.GeneratedPassword, f.idp.pwds["ada@test.cd"])

	require.Len(t, emailsvc.SentMessages, 1)
	assert.Contains(t, emailsvc.SentMessages[0].TextContent, created.GeneratedPassword)

	created, err = f.svc.CreateUser(ctx, alpha.Admin, user.NewUser{FirstName: "Alan", LastName: "Turing", Email: "alan@test.cd", Role: "student", Password: "given1"})
	require.NoError(t, err)
	assert.Empty(t, created.GeneratedPassword)
	require.Len(t, emailsvc.SentMessages, 2)
	assert.NotContains(t, emailsvc.SentMessages[1].TextContent, "Password:")

	_, err = f.svc.CreateUser(ctx, alpha.Teacher, user.NewUser{FirstName: "X", LastName: "Y", Email: "x@test.cd", Role: "student"})
	assert.Equal(t, core.ErrForbidden, err)

	orphan := testutil.CreateProfile(t, f.store, "orphan@test.cd", "Orphan", auth.RoleAdmin, "")
	_, err = f.svc.CreateUser(ctx, orphan, user.NewUser{FirstName: "X", LastName: "Y", Email: "x@test.cd", Role: "student"})
	assert.Equal(t, core.ErrForbidden, err)
}

func TestService_Lookup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alpha := testutil.CreateTenant(t, f.store, "alpha")
	beta := testutil.CreateTenant(t, f.store, "beta")

	p, found, err := f.svc.Lookup(ctx, alpha.Admin, alpha.Student.ID, auth.RoleStudent)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, alpha.Student.ID, p.ID)

	_, found, err = f.svc.Lookup(ctx, alpha.Admin, alpha.Student.ID, auth.RoleTeacher)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = f.svc.Lookup(ctx, alpha.Admin, beta.Student.ID, auth.RoleStudent)
	require.NoError(t, err)
	assert.False(t, found)
}
