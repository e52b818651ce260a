package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/bootstrap"
	redisdb "github.com/octabyte/bm-session/db/redis"
	"github.com/octabyte/bm-session/otel"
	"github.com/octabyte/bm-session/queue"
	"github.com/octabyte/bm-session/utils/logger"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreCookie = "cookie"
)

type Config struct {
	Environment string           `mapstructure:"environment" validate:"required"`
	Logger      logger.Config    `mapstructure:"logger"`
	API         api.Config       `mapstructure:"api"`
	Bootstrap   bootstrap.Config `mapstructure:"bootstrap"`
	Session     SessionConfig    `mapstructure:"session"`
	Billing     BillingConfig    `mapstructure:"billing"`
	Tenants     TenantsConfig    `mapstructure:"tenants"`
	Redis       redisdb.Config   `mapstructure:"redis"`
	Events      EventsConfig     `mapstructure:"events"`
	Otel        otel.OtelConfig  `mapstructure:"otel"`
}

type SessionConfig struct {
	// Store is memory, redis or cookie.
	Store string `mapstructure:"store" validate:"required,oneof=memory redis cookie"`
	// KeyPrefix prefixes the stored value names, e.g. "admin_".
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
	// IDCookie carries the session id for the redis and memory stores.
	IDCookie     string `mapstructure:"id_cookie" validate:"required"`
	CookieDomain string `mapstructure:"cookie_domain"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
	// MaxMemorySessions bounds the memory store; the least recently used
	// session is dropped past it.
	MaxMemorySessions int `mapstructure:"max_memory_sessions" validate:"gte=0"`
}

type BillingConfig struct {
	// GracePeriod keeps a positive entitlement answer usable through
	// transient billing failures. Zero keeps the check strictly fail-closed.
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`
}

type TenantsConfig struct {
	// DomainSuffix derives a tenant domain from its slug when none is given.
	DomainSuffix string `mapstructure:"domain_suffix" validate:"omitempty,fqdn"`
}

type EventsConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Queue   queue.Config `mapstructure:"queue"`
}

// UsesRedis reports whether any configured component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Session.Store == StoreRedis || (c.Billing.GracePeriod > 0 && c.Redis.Addr != "")
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.StructExcept(c, "Redis", "Events", "API", "Otel"); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if c.UsesRedis() {
		if err := v.Struct(c.Redis); err != nil {
			return fmt.Errorf("invalid redis configuration: %w", err)
		}
	}
	if c.Events.Enabled {
		if err := c.Events.Queue.Validate(); err != nil {
			return err
		}
	}
	return nil
}
