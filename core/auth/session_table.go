package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core"
)

const sessionsTable = "sessions"

type sessionRow struct {
	TokenHash string    `db:"token_hash"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TableSessionStore keeps sessions in the "sessions" table so several API instances can share them.
// Only the sha256 of a token is stored.
type TableSessionStore struct {
	store      core.TableStore
	defaultTTL time.Duration
	nowFunc    func() time.Time // mockable
}

var _ SessionStore = (*TableSessionStore)(nil)

func NewTableSessionStore(store core.TableStore, defaultTTL time.Duration) *TableSessionStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &TableSessionStore{store: store, defaultTTL: defaultTTL, nowFunc: time.Now}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *TableSessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	for {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		now := s.nowFunc().UTC()
		_, err = s.store.Insert(ctx, sessionsTable, core.Record{
			"token_hash": hashToken(token),
			"user_id":    userID,
			"expires_at": now.Add(ttl),
			"created_at": now,
		})
		if core.IsConflict(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "inserting session")
		}
		return token, nil
	}
}

func (s *TableSessionStore) Resolve(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	hash := hashToken(token)
	recs, err := s.store.Select(ctx, sessionsTable, core.Filter{"token_hash": hash})
	if err != nil {
		return "", false, errors.Wrap(err, "selecting session")
	}
	if len(recs) == 0 {
		return "", false, nil
	}

	var row sessionRow
	if err := core.DecodeRecord(recs[0], &row); err != nil {
		return "", false, err
	}
	if !row.ExpiresAt.After(s.nowFunc()) {
		if _, err := s.store.Delete(ctx, sessionsTable, core.Filter{"token_hash": hash}); err != nil {
			return "", false, errors.Wrap(err, "deleting expired session")
		}
		return "", false, nil
	}
	return row.UserID, true, nil
}

func (s *TableSessionStore) Invalidate(ctx context.Context, token string) error {
	_, err := s.store.Delete(ctx, sessionsTable, core.Filter{"token_hash": hashToken(token)})
	return errors.Wrap(err, "deleting session")
}

func (s *TableSessionStore) SweepExpired(ctx context.Context) (int, error) {
	recs, err := s.store.Select(ctx, sessionsTable, core.Filter{})
	if err != nil {
		return 0, errors.Wrap(err, "selecting sessions")
	}
	var rows []sessionRow
	if err := core.DecodeRecords(recs, &rows); err != nil {
		return 0, err
	}

	now := s.nowFunc()
	expired := make(core.In, 0)
	for _, row := range rows {
		if !row.ExpiresAt.After(now) {
			expired = append(expired, row.TokenHash)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	deleted, err := s.store.Delete(ctx, sessionsTable, core.Filter{"token_hash": expired})
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired sessions")
	}
	return len(deleted), nil
}
