// Package telemetry exposes the Prometheus counters, histograms, and
// gauges enumerated in spec §6: latency histograms, match/order/publish
// counters, and book-depth/ring-buffer gauges.
//
// Wired in from DimaJoyti-ai-agentic-crypto-browser's direct dependency on
// github.com/prometheus/client_golang; no file in the example pack shows
// its usage, so the metric names/labels below are spec-derived while the
// library choice is grounded on that dependency (see DESIGN.md).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric a shard writes through. One Registry per
// shard; the matching thread is the sole writer, the metrics HTTP handler
// the sole reader (spec §5 "Metrics writers vs readers").
type Registry struct {
	registry *prometheus.Registry

	OrdersReceived  *prometheus.CounterVec
	MatchesEmitted  prometheus.Counter
	PublishErrors   prometheus.Counter

	EndToEndLatency *prometheus.HistogramVec
	PhaseLatency    *prometheus.HistogramVec

	BookDepth       *prometheus.GaugeVec
	BookLevelCount  *prometheus.GaugeVec
	RingUtilization prometheus.Gauge
}

// NewRegistry builds and registers every metric, labeled with shardID so a
// single Prometheus target can distinguish shards if scraped centrally.
func NewRegistry(shardID string) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"shard_id": shardID}

	r := &Registry{
		registry: reg,
		OrdersReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matching_orders_received_total",
			Help:        "Orders received, labeled by side.",
			ConstLabels: constLabels,
		}, []string{"side"}),
		MatchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "matching_matches_emitted_total",
			Help:        "Total MatchResults emitted.",
			ConstLabels: constLabels,
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "matching_publish_errors_total",
			Help:        "Outbound publish failures.",
			ConstLabels: constLabels,
		}),
		EndToEndLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "matching_event_latency_seconds",
			Help:        "End-to-end latency from ring buffer receipt to pipeline completion.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{}),
		PhaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "matching_phase_latency_seconds",
			Help:        "Per-phase latency within the event pipeline.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"phase"}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "matching_book_depth",
			Help:        "Aggregate resting quantity, labeled by symbol and side.",
			ConstLabels: constLabels,
		}, []string{"symbol", "side"}),
		BookLevelCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "matching_book_level_count",
			Help:        "Distinct price levels, labeled by symbol and side.",
			ConstLabels: constLabels,
		}, []string{"symbol", "side"}),
		RingUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "matching_ring_buffer_utilization_ratio",
			Help:        "Fraction of the ring buffer currently occupied, in [0, 1].",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		r.OrdersReceived, r.MatchesEmitted, r.PublishErrors,
		r.EndToEndLatency, r.PhaseLatency,
		r.BookDepth, r.BookLevelCount, r.RingUtilization,
	)
	return r
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
