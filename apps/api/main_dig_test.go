package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnmate/learnmate/core/auth"
)

func Test_countingSessions(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemorySessionStore(time.Hour)
	_, err := store.Create(ctx, "u1", time.Nanosecond)
	require.NoError(t, err)
	_, err = store.Create(ctx, "u2", time.Hour)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	before := sweptSessions.Value()
	n, err := countingSessions{store}.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, before+1, sweptSessions.Value())
}
