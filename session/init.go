package session

import (
	"context"
	"fmt"

	"github.com/octabyte/bm-session/config"
	"github.com/octabyte/bm-session/otel"
	"github.com/octabyte/bm-session/utils/logger"
)

// Init sets up the process-wide logger and OpenTelemetry providers. The
// returned function flushes both.
func Init(ctx context.Context, cfg *config.Config) (func(), error) {
	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdown, err := otel.InitOpenTelemetry(ctx, cfg.Otel)
	if err != nil {
		return nil, fmt.Errorf("init opentelemetry: %w", err)
	}

	return func() {
		shutdown()
		logger.Sync()
	}, nil
}
