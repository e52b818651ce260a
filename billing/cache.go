package billing

import (
	"context"
	"sync"
	"time"
)

var _ EntitlementCache = (*MemoryEntitlementCache)(nil)

type entitlementRecord struct {
	entitled  bool
	expiresAt time.Time
}

// MemoryEntitlementCache is an in-process EntitlementCache.
type MemoryEntitlementCache struct {
	mu      sync.Mutex
	records map[uint64]entitlementRecord
	now     func() time.Time
}

func NewMemoryEntitlementCache() *MemoryEntitlementCache {
	return &MemoryEntitlementCache{
		records: make(map[uint64]entitlementRecord),
		now:     time.Now,
	}
}

func (c *MemoryEntitlementCache) Put(_ context.Context, tenantID uint64, entitled bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[tenantID] = entitlementRecord{entitled: entitled, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryEntitlementCache) Get(_ context.Context, tenantID uint64) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.records[tenantID]
	if !ok {
		return false, false, nil
	}
	if !c.now().Before(record.expiresAt) {
		delete(c.records, tenantID)
		return false, false, nil
	}
	return record.entitled, true, nil
}
