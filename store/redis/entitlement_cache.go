package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	redisdb "github.com/octabyte/bm-session/db/redis"
)

const entitlementPrefix = "bmsession:entitlement:"

type entitlementEntry struct {
	Entitled  bool      `json:"entitled"`
	CheckedAt time.Time `json:"checked_at"`
}

// EntitlementCache remembers the last successful entitlement answer per
// tenant so the resolver can honour a grace period during billing outages.
type EntitlementCache struct {
	client redis.Cmdable
}

func NewEntitlementCache(client redis.Cmdable) *EntitlementCache {
	return &EntitlementCache{client: client}
}

func (c *EntitlementCache) Put(ctx context.Context, tenantID uint64, entitled bool, ttl time.Duration) error {
	entry := entitlementEntry{Entitled: entitled, CheckedAt: time.Now().UTC()}
	if err := redisdb.SetJSON(ctx, c.client, entitlementKey(tenantID), entry, ttl); err != nil {
		return fmt.Errorf("cache entitlement for tenant %d: %w", tenantID, err)
	}
	return nil
}

// Get reports the cached answer. found is false once the entry expired.
func (c *EntitlementCache) Get(ctx context.Context, tenantID uint64) (entitled bool, found bool, err error) {
	var entry entitlementEntry
	found, err = redisdb.GetJSON(ctx, c.client, entitlementKey(tenantID), &entry)
	if err != nil {
		return false, false, fmt.Errorf("read entitlement for tenant %d: %w", tenantID, err)
	}
	return entry.Entitled, found, nil
}

func entitlementKey(tenantID uint64) string {
	return entitlementPrefix + strconv.FormatUint(tenantID, 10)
}
