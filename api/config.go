package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultRefreshPath = "/auth/token/refresh/"
	DefaultServiceName = "bm-session"
	DefaultUserAgent   = "bm-session-client"
)

type Config struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RefreshPath string        `mapstructure:"refresh_path"`
	ServiceName string        `mapstructure:"service_name"`
	UserAgent   string        `mapstructure:"user_agent"`
	// RefreshSkew enables refreshing a JWT access token before sending once
	// it expires within this window. Zero disables it.
	RefreshSkew time.Duration `mapstructure:"refresh_skew" validate:"gte=0"`
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshPath == "" {
		c.RefreshPath = DefaultRefreshPath
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid api config: %w", err)
	}
	return nil
}
