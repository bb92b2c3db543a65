package identitysvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/user"
)

const credentialsTable = "credentials"

var (
	nowFunc = time.Now // mockable
	cost    = bcrypt.DefaultCost

	errEmailTaken = core.NewConflictError("a user with this email already exists")
)

type credential struct {
	UserID       string `db:"user_id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

// LocalProvider keeps bcrypt password hashes in the credentials table.
type LocalProvider struct {
	store core.TableStore
}

var _ user.IdentityProvider = (*LocalProvider)(nil)

func NewLocalProvider(store core.TableStore) *LocalProvider {
	return &LocalProvider{store: store}
}

func (p *LocalProvider) get(ctx context.Context, email string) (credential, bool, error) {
	var cred credential
	found, err := core.SelectOne(ctx, p.store, credentialsTable, core.Filter{"email": email}, &cred)
	return cred, found, err
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, found, err := p.get(ctx, email)
	if err != nil {
		return "", err
	}
	if !found {
		return "", core.ErrAuthenticationFailed
	}
	if err = bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", core.ErrAuthenticationFailed
	}
	return cred.UserID, nil
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) (string, error) {
	if _, found, err := p.get(ctx, email); err != nil {
		return "", err
	} else if found {
		return "", errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}

	id := uuid.NewString()
	now := nowFunc().UTC()
	_, err = p.store.Insert(ctx, credentialsTable, core.Record{
		"user_id":       id,
		"email":         email,
		"password_hash": string(hash),
		"created_at":    now,
		"updated_at":    now,
	})
	if core.IsConflict(err) {
		return "", errEmailTaken
	}
	if err != nil {
		return "", errors.Wrap(err, "inserting credentials")
	}
	return id, nil
}

func (p *LocalProvider) SetPassword(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	recs, err := p.store.Update(ctx, credentialsTable, core.Filter{"email": email}, core.Record{
		"password_hash": string(hash),
		"updated_at":    nowFunc().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "updating credentials")
	}
	if len(recs) == 0 {
		return core.NewNotFoundError("user")
	}
	return nil
}

// Unregister removes the credentials of userID. Unknown users are ignored.
func (p *LocalProvider) Unregister(ctx context.Context, userID string) error {
	_, err := p.store.Delete(ctx, credentialsTable, core.Filter{"user_id": userID})
	return errors.Wrap(err, "deleting credentials")
}
