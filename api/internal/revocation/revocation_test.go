package revocation

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryListRevokesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryList().(*memoryList)
	t.Cleanup(func() { _ = list.Close() })

	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	list.now = func() time.Time { return now }

	require.NoError(t, list.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = list.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = list.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked, "entries lapse with the token")
}

func TestMemoryListIgnoresExpiredAndBlank(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryList().(*memoryList)
	t.Cleanup(func() { _ = list.Close() })

	require.NoError(t, list.Revoke(ctx, "", time.Now().Add(time.Hour)))
	require.NoError(t, list.Revoke(ctx, "old", time.Now().Add(-time.Minute)))
	list.cleanup()
	assert.Empty(t, list.entries)
}

func TestMemoryListCloseIsIdempotent(t *testing.T) {
	list := NewMemoryList()
	assert.NoError(t, list.Close())
	assert.NoError(t, list.Close())
}

func TestRedisListSurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	list := NewRedisList(client)

	_, err := list.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)
	assert.Error(t, list.Revoke(context.Background(), "jti", time.Now().Add(time.Minute)))
	assert.NoError(t, list.Revoke(context.Background(), "jti", time.Now().Add(-time.Minute)), "expired tokens need no entry")
}
