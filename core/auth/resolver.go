package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learnmate/learnmate/core"
)

const profilesTable = "profiles"

type profileRow struct {
	ID       string      `db:"id"`
	Email    string      `db:"email"`
	FullName string      `db:"full_name"`
	Role     string      `db:"role"`
	SchoolID null.String `db:"school_id"`
}

// Resolver turns a caller credential into a validated User.
// Profiles are read from the store on every call; only the token -> id mapping is cached (by the SessionStore).
type Resolver struct {
	store      core.TableStore
	sessions   SessionStore
	trustRawID bool
}

func NewResolver(store core.TableStore, sessions SessionStore, conf *core.Config) *Resolver {
	return &Resolver{
		store:      store,
		sessions:   sessions,
		trustRawID: conf.Auth.TrustUserIDHeader,
	}
}

// Resolve is the single entry point used by the transport: a session token wins over a raw user id,
// and a raw user id is only honoured when the resolver trusts it.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (User, error) {
	switch {
	case cred.Token != "":
		return r.ResolveToken(ctx, cred.Token)
	case cred.UserID != "" && r.trustRawID:
		return r.ResolveUser(ctx, cred.UserID)
	default:
		return User{}, core.ErrNotAuthenticated
	}
}

func (r *Resolver) ResolveToken(ctx context.Context, token string) (User, error) {
	userID, ok, err := r.sessions.Resolve(ctx, token)
	if err != nil {
		return User{}, errors.Wrap(err, "resolving session")
	}
	if !ok {
		return User{}, core.ErrNotAuthenticated
	}
	return r.ResolveUser(ctx, userID)
}

// ResolveUser fails with core.ErrNotAuthenticated when id is malformed, has no profile,
// or the profile has no (known) role. Store failures are returned as they are.
func (r *Resolver) ResolveUser(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, core.ErrNotAuthenticated
	}

	recs, err := r.store.Select(ctx, profilesTable, core.Filter{"id": id})
	if err != nil {
		return User{}, errors.Wrap(err, "selecting profile")
	}
	if len(recs) == 0 {
		return User{}, core.ErrNotAuthenticated
	}

	var row profileRow
	if err := core.DecodeRecord(recs[0], &row); err != nil {
		return User{}, err
	}
	role, err := ParseRole(row.Role)
	if err != nil {
		return User{}, core.ErrNotAuthenticated
	}

	return User{
		ID:       row.ID,
		Email:    row.Email,
		Role:     role,
		FullName: row.FullName,
		SchoolID: row.SchoolID,
	}, nil
}

// Sessions exposes the session boundary to the endpoints (login, logout).
func (r *Resolver) Sessions() SessionStore {
	return r.sessions
}
