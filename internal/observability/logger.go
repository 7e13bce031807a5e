package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/streamflow-sync/internal/config"
)

const appName = "streamflow-sync"

// NewLogger builds the job logger from LOG_LEVEL and LOG_FORMAT, tags it with
// the application name and installs it as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("app", appName)
	slog.SetDefault(logger)
	return logger
}
