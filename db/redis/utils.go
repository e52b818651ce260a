package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/octabyte/bm-session/utils"
)

// HSetWithTTL writes the hash fields and refreshes the key expiry in one
// transaction. A zero ttl leaves the key without expiry.
func HSetWithTTL(ctx context.Context, client redis.Cmdable, key string, ttl time.Duration, values map[string]interface{}) error {
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

// HGetAll retrieves every field of a hash. A missing key yields an empty map.
func HGetAll(ctx context.Context, client redis.Cmdable, key string) (map[string]string, error) {
	return client.HGetAll(ctx, key).Result()
}

// HDel deletes fields from a hash in Redis.
func HDel(ctx context.Context, client redis.Cmdable, key string, fields ...string) error {
	return client.HDel(ctx, key, fields...).Err()
}

// Del deletes a key from Redis.
func Del(ctx context.Context, client redis.Cmdable, key string) error {
	return client.Del(ctx, key).Err()
}

// Expire sets an expiration time for a key in Redis.
func Expire(ctx context.Context, client redis.Cmdable, key string, expiration time.Duration) error {
	return client.Expire(ctx, key, expiration).Err()
}

// SetJSON stores value encoded as JSON.
func SetJSON(ctx context.Context, client redis.Cmdable, key string, value interface{}, ttl time.Duration) error {
	data, err := utils.StructToBytes(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value at key into dst. found is false when the key is
// missing.
func GetJSON(ctx context.Context, client redis.Cmdable, key string, dst interface{}) (found bool, err error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, utils.BytesToStruct(data, dst)
}
