package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/observability"
)

// RiverDirectory looks up rivers in the directory service.
type RiverDirectory interface {
	GetRiver(ctx context.Context, id string) (domain.River, error)
	ListRivers(ctx context.Context) ([]domain.River, error)
}

// Selector decides which rivers a run covers.
type Selector struct {
	directory RiverDirectory
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewSelector creates a Selector backed by directory.
func NewSelector(directory RiverDirectory, logger *slog.Logger, metrics *observability.Metrics) *Selector {
	return &Selector{directory: directory, logger: logger, metrics: metrics}
}

// Resolve returns the rivers to sync. A non-empty manualIDs list is looked up
// one river at a time in input order; lookups that fail are logged and
// skipped, and the full listing is never requested. A cancelled context or
// a failure of every lookup is returned as an error. An empty list selects
// every river in the directory, and a listing failure is returned.
//
// Rivers without a site code or region are skipped. If nothing remains,
// Resolve returns domain.ErrNoRivers.
func (s *Selector) Resolve(ctx context.Context, manualIDs []string) ([]domain.River, error) {
	var (
		rivers []domain.River
		err    error
	)
	if len(manualIDs) > 0 {
		rivers, err = s.lookup(ctx, manualIDs)
	} else {
		rivers, err = s.list(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RiversResolved.Set(float64(len(rivers)))
	if len(rivers) == 0 {
		return nil, domain.ErrNoRivers
	}
	s.logger.Info("rivers resolved",
		"rivers", len(rivers),
		"manual", len(manualIDs) > 0,
	)
	return rivers, nil
}

func (s *Selector) lookup(ctx context.Context, ids []string) ([]domain.River, error) {
	rivers := make([]domain.River, 0, len(ids))
	var (
		failed  int
		lastErr error
	)
	for _, id := range ids {
		river, err := s.directory.GetRiver(ctx, id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resolve rivers: lookup %s: %w", id, ctxErr)
		}
		if err != nil {
			failed++
			lastErr = err
			s.logger.Warn("river lookup failed, skipping",
				"error", err,
				"river_id", id,
				"status", domain.StatusCode(err),
			)
			s.metrics.RiverLookups.WithLabelValues("error").Inc()
			continue
		}
		if err := domain.ValidateRiver(river); err != nil {
			s.logger.Warn("incomplete river, skipping", "error", err, "river_id", id)
			s.metrics.RiverLookups.WithLabelValues("invalid").Inc()
			continue
		}
		s.metrics.RiverLookups.WithLabelValues("success").Inc()
		rivers = append(rivers, river)
	}
	if failed == len(ids) {
		return nil, fmt.Errorf("resolve rivers: all %d lookups failed: %w", failed, lastErr)
	}
	return rivers, nil
}

func (s *Selector) list(ctx context.Context) ([]domain.River, error) {
	all, err := s.directory.ListRivers(ctx)
	if err != nil {
		s.logger.Error("river listing failed", "error", err, "status", domain.StatusCode(err))
		return nil, fmt.Errorf("resolve rivers: %w", err)
	}

	rivers := make([]domain.River, 0, len(all))
	for _, river := range all {
		if err := domain.ValidateRiver(river); err != nil {
			s.logger.Warn("incomplete river, skipping", "error", err, "river_id", river.ID)
			continue
		}
		rivers = append(rivers, river)
	}
	return rivers, nil
}
