package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/octabyte/bm-session/api"
	"github.com/octabyte/bm-session/bootstrap"
)

const (
	EnvPrefix      = "BMSESSION"
	envEnvironment = EnvPrefix + "_ENVIRONMENT"
)

// Load reads config.yaml and config.<environment>.yaml from paths (the
// working directory and ./configs by default), applies .env and
// BMSESSION_* environment overrides, and validates the result.
func Load(paths ...string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv(envEnvironment)
	if env == "" {
		env = v.GetString("environment")
	}
	v.SetConfigName("config." + env)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading %s config: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDerived(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			// Existing environment variables win over the file.
			_ = godotenv.Load(path)
			return
		}
	}
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "")
	v.SetDefault("logger.service_name", api.DefaultServiceName)
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", api.DefaultTimeout)
	v.SetDefault("api.refresh_path", api.DefaultRefreshPath)
	v.SetDefault("api.service_name", api.DefaultServiceName)
	v.SetDefault("api.user_agent", api.DefaultUserAgent)
	v.SetDefault("api.refresh_skew", 0)

	v.SetDefault("bootstrap.timeout", bootstrap.DefaultTimeout)

	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.key_prefix", "")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.id_cookie", "bm_session_id")
	v.SetDefault("session.cookie_domain", "")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.max_memory_sessions", 10000)

	v.SetDefault("billing.grace_period", 0)

	v.SetDefault("tenants.domain_suffix", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.queue.uri", "")
	v.SetDefault("events.queue.exchange", "")
	v.SetDefault("events.queue.exchange_kind", "")
	v.SetDefault("events.queue.routing_key_prefix", "")
	v.SetDefault("events.queue.durable", true)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", api.DefaultServiceName)
	v.SetDefault("otel.service_version", "")
	v.SetDefault("otel.environment", "")
	v.SetDefault("otel.sample_rate", 1.0)
}

func applyDerived(cfg *Config) {
	if cfg.Logger.Env == "" {
		cfg.Logger.Env = cfg.Environment
	}
	if cfg.Otel.Environment == "" {
		cfg.Otel.Environment = cfg.Environment
	}
}
