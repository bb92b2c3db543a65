package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inmemdb "github.com/learnmate/learnmate/storage/database/inmem"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStores(clk *clock) map[string]SessionStore {
	mem := NewMemorySessionStore(time.Hour)
	mem.nowFunc = clk.Now
	table := NewTableSessionStore(inmemdb.NewStore(), time.Hour)
	table.nowFunc = clk.Now
	return map[string]SessionStore{"memory": mem, "table": table}
}

func TestSessionStore_lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(&clock{now: time.Now()}) {
		t.Run(name, func(t *testing.T) {
			token, err := store.Create(ctx, "user-1", 0)
			require.NoError(t, err)
			assert.Len(t, token, 2*tokenLength)

			other, err := store.Create(ctx, "user-1", 0)
			require.NoError(t, err)
			assert.NotEqual(t, token, other)

			userID, ok, err := store.Resolve(ctx, token)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "user-1", userID)

			require.NoError(t, store.Invalidate(ctx, token))
			require.NoError(t, store.Invalidate(ctx, token)) // idempotent
			_, ok, err = store.Resolve(ctx, token)
			require.NoError(t, err)
			assert.False(t, ok)

			// other sessions of the user survive
			_, ok, err = store.Resolve(ctx, other)
			require.NoError(t, err)
			assert.True(t, ok)

			_, ok, err = store.Resolve(ctx, "unknown")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSessionStore_expiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	for name, store := range newStores(clk) {
		t.Run(name, func(t *testing.T) {
			short, err := store.Create(ctx, "user-1", time.Minute)
			require.NoError(t, err)
			long, err := store.Create(ctx, "user-2", 0) // default: one hour
			require.NoError(t, err)
			stale, err := store.Create(ctx, "user-3", time.Minute)
			require.NoError(t, err)

			clk.Advance(time.Minute)
			defer clk.Advance(-time.Minute)

			// expiry is exclusive: a session is dead at expires_at
			_, ok, err := store.Resolve(ctx, short)
			require.NoError(t, err)
			assert.False(t, ok)

			userID, ok, err := store.Resolve(ctx, long)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "user-2", userID)

			n, err := store.SweepExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n) // short was evicted on lookup already
			_, ok, err = store.Resolve(ctx, stale)
			require.NoError(t, err)
			assert.False(t, ok)

			n, err = store.SweepExpired(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestMemorySessionStore_lazyEviction(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	store := NewMemorySessionStore(0)
	store.nowFunc = clk.Now
	assert.Equal(t, DefaultSessionTTL, store.defaultTTL)

	token, err := store.Create(ctx, "user-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	clk.Advance(2 * time.Second)
	_, ok, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestMemorySessionStore_concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(time.Hour)

	var wg sync.WaitGroup
	tokens := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := store.Create(ctx, "user-1", 0)
			if err == nil {
				tokens <- token
			}
			_, _, _ = store.Resolve(ctx, token)
			_, _ = store.SweepExpired(ctx)
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		assert.False(t, seen[token], "duplicate token")
		seen[token] = true
	}
	assert.Len(t, seen, 50)
	assert.Equal(t, 50, store.Len())
}

func TestSessionStore_randomnessFailure(t *testing.T) {
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	defer func() { randRead = orig }()

	_, err := NewMemorySessionStore(0).Create(context.Background(), "user-1", 0)
	assert.Error(t, err)
}
