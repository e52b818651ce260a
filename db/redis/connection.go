package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/octabyte/bm-session/utils/logger"
)

// Config holds the configuration for the Redis client
type Config struct {
	Addr        string        `mapstructure:"addr" validate:"required,hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	options := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		options.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(options)

	// Ping the Redis server to ensure the connection is established
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.LogInfof("connected to redis at %s (db %d)", cfg.Addr, cfg.DB)
	return client, nil
}

func Ping(ctx context.Context, client redis.Cmdable) error {
	return client.Ping(ctx).Err()
}
