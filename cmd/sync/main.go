// Command sync runs one streamflow synchronization: it resolves the target
// rivers, fetches their discharge from the USGS Instantaneous Values service,
// and commits the hourly observations to PostgreSQL. It is meant to be run
// on a schedule and exits when done.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/streamflow-sync/internal/adapter/directory"
	kafkaadapter "github.com/couchcryptid/streamflow-sync/internal/adapter/kafka"
	"github.com/couchcryptid/streamflow-sync/internal/adapter/postgres"
	"github.com/couchcryptid/streamflow-sync/internal/adapter/upstream"
	"github.com/couchcryptid/streamflow-sync/internal/adapter/usgs"
	"github.com/couchcryptid/streamflow-sync/internal/config"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/observability"
	"github.com/couchcryptid/streamflow-sync/internal/pipeline"
	"github.com/google/uuid"
)

const jobName = "streamflow_sync"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	runID := uuid.New().String()
	logger := observability.NewLogger(cfg).With("run_id", runID)
	metrics := observability.NewMetrics()

	code := run(cfg, runID, logger, metrics)
	pushMetrics(cfg, logger, metrics)
	os.Exit(code)
}

func run(cfg *config.Config, runID string, logger *slog.Logger, metrics *observability.Metrics) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	dirAPI := upstream.New("directory", cfg.HTTPTimeout, logger,
		upstream.WithRetries(cfg.UpstreamRetries),
		upstream.WithMetrics(metrics),
	)
	usgsAPI := upstream.New("usgs", cfg.HTTPTimeout, logger,
		upstream.WithRetries(cfg.UpstreamRetries),
		upstream.WithMetrics(metrics),
	)

	rivers := directory.NewCachedDirectory(directory.NewClient(cfg.ServiceURL, dirAPI, logger), metrics)
	source := usgs.NewClient(cfg.USGSURL, cfg.DefaultPeriod, usgsAPI, logger)
	store := postgres.NewStore(cfg.DatabaseURL, logger)

	var opts []pipeline.Option
	if cfg.PublishEnabled() {
		publisher := kafkaadapter.NewPublisher(cfg, runID, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(publisher))
		logger.Info("observation publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	selected, err := pipeline.NewSelector(rivers, logger, metrics).Resolve(ctx, cfg.ManualRivers)
	if errors.Is(err, domain.ErrNoRivers) {
		logger.Info("no rivers to sync")
		return 0
	}
	if err != nil {
		logger.Error("river selection failed", "error", err)
		return 1
	}

	syncer := pipeline.New(source, store, logger, metrics, cfg.FetchConcurrency, opts...)
	if _, err := syncer.Sync(ctx, selected); err != nil {
		logger.Error("sync failed", "error", err)
		return 1
	}
	return 0
}

// pushMetrics sends the run's metrics to the Pushgateway, if one is configured.
func pushMetrics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := metrics.Push(ctx, cfg.PushgatewayURL, jobName); err != nil {
		logger.Warn("metrics push failed", "error", err, "url", cfg.PushgatewayURL)
	}
}
