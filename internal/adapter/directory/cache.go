package directory

import (
	"context"
	"sync"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
	"github.com/couchcryptid/streamflow-sync/internal/observability"
)

// CachedDirectory memoizes single-river lookups for the lifetime of a run, so
// an ID listed more than once in MANUAL_RIVERS costs one request. Listings
// always go to the inner directory.
type CachedDirectory struct {
	inner   Directory
	metrics *observability.Metrics

	mu     sync.Mutex
	rivers map[string]domain.River
}

// NewCachedDirectory wraps inner. metrics may be nil.
func NewCachedDirectory(inner Directory, metrics *observability.Metrics) *CachedDirectory {
	return &CachedDirectory{
		inner:   inner,
		metrics: metrics,
		rivers:  make(map[string]domain.River),
	}
}

func (c *CachedDirectory) GetRiver(ctx context.Context, id string) (domain.River, error) {
	c.mu.Lock()
	river, ok := c.rivers[id]
	c.mu.Unlock()
	if ok {
		c.record("hit")
		return river, nil
	}
	c.record("miss")

	river, err := c.inner.GetRiver(ctx, id)
	if err != nil {
		return river, err
	}
	// Incomplete records are returned but not remembered.
	if domain.ValidateRiver(river) == nil {
		c.mu.Lock()
		c.rivers[id] = river
		c.mu.Unlock()
	}
	return river, nil
}

func (c *CachedDirectory) ListRivers(ctx context.Context) ([]domain.River, error) {
	return c.inner.ListRivers(ctx)
}

func (c *CachedDirectory) record(result string) {
	if c.metrics != nil {
		c.metrics.DirectoryCache.WithLabelValues(result).Inc()
	}
}
