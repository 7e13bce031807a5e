package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// ObservationSource fetches one water report covering the given site codes.
type ObservationSource interface {
	GetReport(ctx context.Context, siteCodes []string) (domain.WaterReport, error)
}

// Loader commits a batch atomically and returns the number of rows written.
type Loader interface {
	Load(ctx context.Context, batch domain.BatchInsert) (int, error)
}

// Publisher forwards committed rows to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rows []domain.Row) error
}

// SyncResult summarizes one run.
type SyncResult struct {
	Rivers       int
	Regions      int
	Observations int
	RowsWritten  int
	Stats        domain.ExtractStats
	Duration     time.Duration
}

// Syncer fetches observations per region, reshapes them, and commits them in
// one transaction.
type Syncer struct {
	source      ObservationSource
	loader      Loader
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	concurrency int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithPublisher publishes committed rows after each successful load.
func WithPublisher(p Publisher) Option {
	return func(s *Syncer) { s.publisher = p }
}

// WithClock replaces the clock used for run timing.
func WithClock(c clockwork.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// New creates a Syncer that runs at most concurrency region fetches at once.
func New(source ObservationSource, loader Loader, logger *slog.Logger, metrics *observability.Metrics, concurrency int, opts ...Option) *Syncer {
	if concurrency < 1 {
		concurrency = 1
	}
	s := &Syncer{
		source:      source,
		loader:      loader,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		concurrency: concurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one synchronization for rivers. Any region fetch failure aborts
// the run before the store is touched. An empty batch is a successful no-op.
func (s *Syncer) Sync(ctx context.Context, rivers []domain.River) (SyncResult, error) {
	start := s.clock.Now()
	result := SyncResult{Rivers: len(rivers)}

	groups := domain.GroupByRegion(rivers)
	index := domain.NewSiteIndex(rivers)
	result.Regions = len(groups)

	s.logger.Info("sync started",
		"rivers", len(rivers),
		"regions", len(groups),
		"concurrency", s.concurrency,
	)

	reports, err := s.fetchRegions(ctx, groups)
	if err != nil {
		return s.fail(result, start, err)
	}

	merged, stats := s.extractAll(groups, reports, index)
	result.Stats = stats
	result.Observations = merged.Count()
	s.recordStats(stats)

	batch := domain.BuildBatch(merged)
	if batch.Empty() {
		s.logger.Info("no observations to write", "rivers", len(rivers))
		return s.succeed(result, start), nil
	}

	written, err := s.loader.Load(ctx, batch)
	if err != nil {
		s.logger.Error("load batch failed", "error", err, "rows", batch.Len())
		return s.fail(result, start, err)
	}
	result.RowsWritten = written
	s.metrics.RowsWritten.Add(float64(written))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, batch.Rows); err != nil {
			s.logger.Warn("publish observations failed", "error", err, "rows", batch.Len())
			s.metrics.PublishErrors.Inc()
		}
	}

	return s.succeed(result, start), nil
}

// fetchRegions fetches one report per group. Reports are returned in group
// order; the first failure cancels the remaining fetches.
func (s *Syncer) fetchRegions(ctx context.Context, groups []domain.RegionGroup) ([]domain.WaterReport, error) {
	reports := make([]domain.WaterReport, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, group := range groups {
		g.Go(func() error {
			report, err := s.source.GetReport(gctx, group.SiteCodes)
			s.metrics.RegionFetches.WithLabelValues(outcome(err)).Inc()
			if err != nil {
				if gctx.Err() == nil || !errors.Is(err, context.Canceled) {
					s.logger.Error("region fetch failed",
						"error", err,
						"region", group.Region,
						"site_codes", group.SiteCodes,
						"status", domain.StatusCode(err),
					)
				}
				return fmt.Errorf("fetch region %s: %w", group.Region, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// extractAll reshapes each region's report and merges them in region order.
func (s *Syncer) extractAll(groups []domain.RegionGroup, reports []domain.WaterReport, index domain.SiteIndex) (domain.ObservationSet, domain.ExtractStats) {
	merged := make(domain.ObservationSet, index.Len())
	var total domain.ExtractStats

	for i, group := range groups {
		set, stats := domain.Extract(reports[i], index)
		total.Add(stats)

		if len(stats.Unmapped) > 0 {
			s.logger.Warn("dropping series for unknown site codes",
				"region", group.Region,
				"site_codes", stats.Unmapped,
			)
		}
		if replaced := merged.Merge(set); len(replaced) > 0 {
			s.logger.Warn("river observations replaced by a later region",
				"region", group.Region,
				"river_ids", replaced,
			)
		}
		s.logger.Debug("region extracted",
			"region", group.Region,
			"series", stats.Series,
			"samples", stats.Samples,
			"kept", stats.Kept,
		)
	}
	return merged, total
}

func (s *Syncer) recordStats(stats domain.ExtractStats) {
	s.metrics.SamplesDropped.WithLabelValues("off_hour").Add(float64(stats.OffHour))
	s.metrics.SamplesDropped.WithLabelValues("malformed").Add(float64(stats.Malformed))
	s.metrics.SamplesDropped.WithLabelValues("no_data").Add(float64(stats.NoData))
	s.metrics.UnmappedSeries.Add(float64(len(stats.Unmapped)))
	s.metrics.ObservationsTotal.Add(float64(stats.Kept))
}

func (s *Syncer) succeed(result SyncResult, start time.Time) SyncResult {
	result.Duration = s.clock.Since(start)
	s.metrics.RunDuration.Set(result.Duration.Seconds())
	s.metrics.LastRunSuccess.Set(1)
	s.metrics.LastSuccessTime.Set(float64(s.clock.Now().Unix()))

	s.logger.Info("sync finished",
		"rivers", result.Rivers,
		"regions", result.Regions,
		"observations", result.Observations,
		"rows_written", result.RowsWritten,
		"duration", result.Duration,
	)
	return result
}

func (s *Syncer) fail(result SyncResult, start time.Time, err error) (SyncResult, error) {
	result.Duration = s.clock.Since(start)
	s.metrics.RunDuration.Set(result.Duration.Seconds())
	s.metrics.LastRunSuccess.Set(0)
	return result, err
}

// outcome classifies a fetch error for metric labels.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case domain.StatusCode(err) != 0:
		return "status_error"
	default:
		return "error"
	}
}
