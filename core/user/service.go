package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

const welcomeEmail = "welcome"

var nowFunc = time.Now // mockable

func init() {
	err := core.RegisterEmailTemplate(welcomeEmail,
		`Hi {{.Name}},

An account has been created for you on {{.AppName}}.

Email: {{.Email}}
{{if .Password}}Password: {{.Password}}
{{end}}
Sign in at {{.LoginURL}}
`,
		`<p>Hi {{.Name}},</p>
<p>An account has been created for you on {{.AppName}}.</p>
<p>Email: {{.Email}}{{if .Password}}<br>Password: <code>{{.Password}}</code>{{end}}</p>
<p><a href="{{.LoginURL}}">Sign in</a></p>
`)
	if err != nil {
		panic(err)
	}
}

type (
	// IdentityProvider verifies and registers credentials. It is the only component that ever sees a password.
	IdentityProvider interface {
		Authenticate(ctx context.Context, email, password string) (userID string, err error)
		Register(ctx context.Context, email, password string) (userID string, err error)
		Unregister(ctx context.Context, userID string) error
		SetPassword(ctx context.Context, email, password string) error
	}

	Service struct {
		store    core.TableStore
		idp      IdentityProvider
		sessions auth.SessionStore
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

func NewService(
	store core.TableStore,
	idp IdentityProvider,
	sessions auth.SessionStore,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		store:    store,
		idp:      idp,
		sessions: sessions,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func (p Profile) record() core.Record {
	return core.Record{
		"id":         p.ID,
		"email":      p.Email,
		"full_name":  p.FullName,
		"role":       p.Role,
		"school_id":  p.SchoolID,
		"last_login": p.LastLogin,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}

func (svc *Service) openSession(ctx context.Context, p Profile) (Session, error) {
	token, err := svc.sessions.Create(ctx, p.ID, svc.conf.Auth.SessionTTL)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	return Session{AccessToken: token, TokenType: TokenType, User: p}, nil
}

// Signup registers a student without a school and logs them in.
func (svc *Service) Signup(ctx context.Context, data Signup) (Session, error) {
	p, err := svc.AddAccount(ctx, NewAccount{
		Email:    data.Email,
		FullName: data.FullName,
		Role:     auth.RoleStudent.String(),
		Password: data.Password,
	})
	if err != nil {
		return Session{}, err
	}
	return svc.openSession(ctx, p)
}

func (svc *Service) Login(ctx context.Context, data Login) (Session, error) {
	id, err := svc.idp.Authenticate(ctx, data.Email, data.Password)
	if err != nil {
		return Session{}, errors.Wrap(err, "authenticating")
	}

	p, found, err := svc.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, core.ErrNotAuthenticated
	}

	p.LastLogin = null.TimeFrom(nowFunc().UTC())
	if _, err = svc.store.Update(ctx, profilesTable, core.Filter{"id": p.ID}, core.Record{"last_login": p.LastLogin}); err != nil {
		return Session{}, errors.Wrap(err, "setting last_login")
	}
	return svc.openSession(ctx, p)
}

func (svc *Service) Logout(ctx context.Context, token string) error {
	return errors.Wrap(svc.sessions.Invalidate(ctx, token), "invalidating session")
}

// GetByID is not tenant-scoped: callers authorize first.
func (svc *Service) GetByID(ctx context.Context, id string) (Profile, bool, error) {
	var p Profile
	found, err := core.SelectOne(ctx, svc.store, profilesTable, core.Filter{"id": id}, &p)
	return p, found, err
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, bool, error) {
	var p Profile
	found, err := core.SelectOne(ctx, svc.store, profilesTable, core.Filter{"email": core.CleanString(email, true)}, &p)
	return p, found, err
}

// ListByIDs is not tenant-scoped: callers authorize first.
func (svc *Service) ListByIDs(ctx context.Context, ids []string) (map[string]Profile, error) {
	recs, err := svc.store.Select(ctx, profilesTable, core.Filter{"id": core.InStrings(ids)})
	if err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	var profiles []Profile
	if err = core.DecodeRecords(recs, &profiles); err != nil {
		return nil, err
	}
	res := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		res[p.ID] = p
	}
	return res, nil
}

// Lookup finds a profile of u's school having one of roles. found is false for anything else,
// profiles of other schools included.
func (svc *Service) Lookup(ctx context.Context, u auth.User, id string, roles ...auth.Role) (Profile, bool, error) {
	var p Profile
	if err := auth.FetchScoped(ctx, svc.store, u, profilesTable, id, &p); err != nil {
		if errors.Cause(err) == core.ErrForbidden {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	for _, r := range roles {
		if p.Role == r.String() {
			return p, true, nil
		}
	}
	return Profile{}, false, nil
}

func (svc *Service) Me(ctx context.Context, u auth.User) (Profile, error) {
	p, found, err := svc.GetByID(ctx, u.ID)
	if err != nil {
		return Profile{}, err
	}
	if !found {
		return Profile{}, core.ErrNotAuthenticated
	}
	return p, nil
}

func (svc *Service) UpdateMe(ctx context.Context, u auth.User, data UpdateMe) (Profile, error) {
	if data.Role != nil && *data.Role != u.Role.String() {
		return Profile{}, core.ErrForbidden
	}
	recs, err := svc.store.Update(ctx, profilesTable, core.Filter{"id": u.ID}, core.Record{
		"full_name":  data.FullName,
		"updated_at": nowFunc().UTC(),
	})
	if err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	if len(recs) == 0 {
		return Profile{}, core.ErrNotAuthenticated
	}
	var p Profile
	if err = core.DecodeRecord(recs[0], &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (svc *Service) List(ctx context.Context, u auth.User, filter QueryFilter, orderings []core.DBOrdering) ([]Profile, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return nil, err
	}
	filter.Clean()

	f := core.Filter{}
	if filter.Role != "" {
		f["role"] = filter.Role
	}
	orderings = core.AllowedOrderings(orderings, "full_name", "email", "role", "created_at", "last_login")
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}

	recs, err := svc.store.Select(ctx, profilesTable, auth.Scoped(u, f), core.OrderBy(orderings...))
	if err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profiles := make([]Profile, 0, len(recs))
	if err = core.DecodeRecords(recs, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (svc *Service) Get(ctx context.Context, u auth.User, id string) (Profile, error) {
	if err := auth.RequireRole(u, auth.RoleAdmin); err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := auth.FetchScoped(ctx, svc.store, u, profilesTable, id, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// AdminUpdate changes the name and role of a profile of the admin's school. Admins cannot change their own role.
func (svc *Service) AdminUpdate(ctx context.Context, u auth.User, id string, data UpdateProfile) (Profile, error) {
	p, err := svc.Get(ctx, u, id)
	if err != nil {
		return Profile{}, err
	}
	if data.Role != "" && data.Role != p.Role && p.ID == u.ID {
		return Profile{}, core.ErrForbidden
	}

	changes := core.Record{"updated_at": nowFunc().UTC()}
	if data.FullName != "" {
		changes["full_name"] = data.FullName
	}
	if data.Role != "" {
		changes["role"] = data.Role
	}
	recs, err := svc.store.Update(ctx, profilesTable, auth.Scoped(u, core.Filter{"id": p.ID}), changes)
	if err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	if len(recs) == 0 {
		return Profile{}, core.NewNotFoundError("profile")
	}
	if err = core.DecodeRecord(recs[0], &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// CreateUser creates an account in the admin's school and emails its credentials.
func (svc *Service) CreateUser(ctx context.Context, u auth.User, data NewUser) (CreatedUser, error) {
	if err := auth.All(ctx, auth.HasRole(u, auth.RoleAdmin), auth.Tenant(u)); err != nil {
		return CreatedUser{}, err
	}

	var generated string
	pwd := data.Password
	if pwd == "" {
		var err error
		if generated, err = core.RandomPassword(svc.conf.Auth.GeneratedPasswordLength); err != nil {
			return CreatedUser{}, errors.Wrap(err, "generating password")
		}
		pwd = generated
	}

	p, err := svc.AddAccount(ctx, NewAccount{
		Email:    data.Email,
		FullName: data.FullName(),
		Role:     data.Role,
		SchoolID: u.SchoolID.String,
		Password: pwd,
	})
	if err != nil {
		return CreatedUser{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: p.FullName, Address: p.Email}},
		Subject:      "Your account",
		TemplateName: welcomeEmail,
		TemplateData: map[string]interface{}{
			"Name":     p.FullName,
			"AppName":  svc.conf.AppName,
			"Email":    p.Email,
			"Password": generated,
			"LoginURL": svc.conf.FrontendBaseURL + "/login",
		},
	})
	return CreatedUser{Profile: p, GeneratedPassword: generated}, nil
}

// AddAccount registers credentials and inserts the matching profile. No authorization is done here.
// The credentials are unregistered when the profile cannot be inserted.
func (svc *Service) AddAccount(ctx context.Context, data NewAccount) (Profile, error) {
	if _, err := auth.ParseRole(data.Role); err != nil {
		return Profile{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: err.Error()})
	}

	id, err := svc.idp.Register(ctx, core.CleanString(data.Email, true), data.Password)
	if err != nil {
		return Profile{}, errors.Wrap(err, "registering credentials")
	}

	now := nowFunc().UTC()
	p := Profile{
		ID:        id,
		Email:     core.CleanString(data.Email, true),
		FullName:  core.CleanString(data.FullName),
		Role:      data.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if data.SchoolID != "" {
		p.SchoolID = null.StringFrom(data.SchoolID)
	}
	if _, err = svc.store.Insert(ctx, profilesTable, p.record()); err != nil {
		if uerr := svc.idp.Unregister(ctx, id); uerr != nil {
			return Profile{}, errors.Wrapf(err, "inserting profile (unregistering credentials: %v)", uerr)
		}
		return Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}

func (svc *Service) SetPassword(ctx context.Context, email, password string) error {
	return errors.Wrap(svc.idp.SetPassword(ctx, core.CleanString(email, true), password), "setting password")
}

// AssignSchool makes profileID a member of schoolID.
func (svc *Service) AssignSchool(ctx context.Context, profileID, schoolID string) error {
	recs, err := svc.store.Update(ctx, profilesTable, core.Filter{"id": profileID}, core.Record{
		"school_id":  schoolID,
		"updated_at": nowFunc().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "assigning school")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("profile")
	}
	return nil
}

// Profiles lists the profiles matching filter. It is not tenant-scoped: callers authorize first.
func (svc *Service) Profiles(ctx context.Context, filter core.Filter) ([]Profile, error) {
	recs, err := svc.store.Select(ctx, profilesTable, filter)
	if err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profiles := make([]Profile, 0, len(recs))
	if err = core.DecodeRecords(recs, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}
