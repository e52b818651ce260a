package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, Ping(context.Background(), client))
}

func TestNewRedisClient_InvalidConfig(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis config")
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), Config{Addr: addr, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestHSetWithTTL(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	err := HSetWithTTL(ctx, client, "session:1", time.Hour, map[string]interface{}{"a": "1", "b": "2"})
	require.NoError(t, err)

	values, err := HGetAll(ctx, client, "session:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, values)
	assert.Equal(t, time.Hour, mr.TTL("session:1"))

	require.NoError(t, HDel(ctx, client, "session:1", "a"))
	values, _ = HGetAll(ctx, client, "session:1")
	assert.Equal(t, map[string]string{"b": "2"}, values)

	require.NoError(t, Del(ctx, client, "session:1"))
	values, err = HGetAll(ctx, client, "session:1")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestJSONHelpers(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	type entry struct {
		Active bool `json:"active"`
	}

	var got entry
	found, err := GetJSON(ctx, client, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, client, "entry", entry{Active: true}, time.Minute))
	found, err = GetJSON(ctx, client, "entry", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Active)

	require.NoError(t, Expire(ctx, client, "entry", 5*time.Second))
	assert.Equal(t, 5*time.Second, mr.TTL("entry"))
}
