package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "streamflow_sync"

// Metrics holds the Prometheus counters, histograms, and gauges for a sync run.
type Metrics struct {
	registry *prometheus.Registry

	RiversResolved   prometheus.Gauge
	RiverLookups     *prometheus.CounterVec // labels: outcome={success,error,invalid}
	RegionFetches    *prometheus.CounterVec // labels: outcome={success,status_error,timeout,error}
	UpstreamRequests *prometheus.CounterVec // labels: service={directory,usgs}, outcome={success,status_error,timeout,error}
	UpstreamDuration *prometheus.HistogramVec

	SamplesDropped    *prometheus.CounterVec // labels: reason={off_hour,malformed,no_data}
	UnmappedSeries    prometheus.Counter
	ObservationsTotal prometheus.Counter
	RowsWritten       prometheus.Counter
	PublishErrors     prometheus.Counter

	RunDuration     prometheus.Gauge
	LastRunSuccess  prometheus.Gauge
	LastSuccessTime prometheus.Gauge

	// Directory cache metrics.
	DirectoryCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates all sync metrics on a dedicated registry. A batch job
// exits before it can be scraped, so the registry is pushed instead.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RiversResolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rivers_resolved",
			Help:      "Rivers selected for the current run.",
		}),
		RiverLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "river_lookups_total",
			Help:      "Single-river directory lookups by outcome.",
		}, []string{"outcome"}),
		RegionFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_fetches_total",
			Help:      "Per-region observation fetches by outcome.",
		}, []string{"outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream HTTP attempts by service and outcome.",
		}, []string{"service", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream HTTP attempt duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Raw samples not turned into observations, by reason.",
		}, []string{"reason"}),
		UnmappedSeries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmapped_series_total",
			Help:      "Time series whose site code matched no selected river.",
		}),
		ObservationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Hourly observations extracted across all regions.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows committed to water_reports.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish committed observations.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run committed successfully, 0 otherwise.",
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		DirectoryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_cache_total",
			Help:      "Directory lookup cache results.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.RiversResolved,
		m.RiverLookups,
		m.RegionFetches,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.SamplesDropped,
		m.UnmappedSeries,
		m.ObservationsTotal,
		m.RowsWritten,
		m.PublishErrors,
		m.RunDuration,
		m.LastRunSuccess,
		m.LastSuccessTime,
		m.DirectoryCache,
	)

	return m
}

// NewMetricsForTesting returns metrics on their own registry. Each call is
// independent, so tests may create as many as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Registry exposes the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Push sends the current metric values to a Prometheus Pushgateway under the
// given job name, replacing the previous push for that job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx)
}
