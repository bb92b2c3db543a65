package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultSessionTTL = time.Hour
	tokenLength       = 32 // bytes, hex encoded on the wire
)

// SessionStore maps opaque session tokens to user ids for a bounded lifetime.
// Absence is never an error: Resolve reports it with ok == false.
type SessionStore interface {
	// Create binds a fresh unguessable token to userID for ttl (the store default when ttl <= 0).
	Create(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// Resolve returns the bound user id while the session has not expired.
	// An expired session is removed as a side effect.
	Resolve(ctx context.Context, token string) (userID string, ok bool, err error)
	// Invalidate removes the session. It is idempotent.
	Invalidate(ctx context.Context, token string) error
	// SweepExpired removes every expired session and returns how many were removed.
	SweepExpired(ctx context.Context) (int, error)
}

var randRead = rand.Read // mockable

func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := randRead(b); err != nil {
		return "", errors.Wrap(err, "generating session token")
	}
	return hex.EncodeToString(b), nil
}

type session struct {
	userID    string
	expiresAt time.Time
}

// valid iff expiresAt is in the future
func (s session) valid(now time.Time) bool {
	return s.expiresAt.After(now)
}

// MemorySessionStore keeps sessions in a map guarded by a single mutex.
type MemorySessionStore struct {
	mu         sync.Mutex
	sessions   map[string]session
	defaultTTL time.Duration
	nowFunc    func() time.Time // mockable
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore(defaultTTL time.Duration) *MemorySessionStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultSessionTTL
	}
	return &MemorySessionStore{
		sessions:   make(map[string]session),
		defaultTTL: defaultTTL,
		nowFunc:    time.Now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		if _, taken := s.sessions[token]; taken {
			continue
		}
		s.sessions[token] = session{userID: userID, expiresAt: s.nowFunc().Add(ttl)}
		return token, nil
	}
}

func (s *MemorySessionStore) Resolve(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", false, nil
	}
	if !sess.valid(s.nowFunc()) {
		delete(s.sessions, token)
		return "", false, nil
	}
	return sess.userID, true, nil
}

func (s *MemorySessionStore) Invalidate(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	var removed int
	for token, sess := range s.sessions {
		if !sess.valid(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
