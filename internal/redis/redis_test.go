package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	require.NoError(t, client.SaveSession(ctx, "abc", 7, time.Hour))

	id, ok, err := client.LookupSession(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	_, ok, err = client.LookupSession(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.RevokeSession(ctx, "abc"))
	_, ok, err = client.LookupSession(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.SaveSession(ctx, "short", 1, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err = client.LookupSession(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginLimiter(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	limiter := NewLoginLimiter(client, 3, 10*time.Minute)

	for i := 0; i < 2; i++ {
		locked, err := limiter.Fail(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, locked)
	}
	locked, err := limiter.Locked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, locked)

	locked, err = limiter.Fail(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = limiter.Locked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, locked)

	other, err := limiter.Locked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, other)

	mr.FastForward(11 * time.Minute)
	locked, err = limiter.Locked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLoginLimiterReset(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	limiter := NewLoginLimiter(client, 2, time.Minute)

	_, err := limiter.Fail(ctx, "carol")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "carol"))

	locked, err := limiter.Fail(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, locked)
}
