package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "causalkv"

// Broadcast results reported by the broadcast counter.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors of a single node. Each node owns its own
// registry so several nodes can live in one process (tests).
type Metrics struct {
	PendingMessages      prometheus.Gauge
	OldestPendingSeconds prometheus.Gauge
	Applied              *prometheus.CounterVec
	Buffered             prometheus.Counter
	Duplicates           prometheus.Counter
	Rejected             prometheus.Counter
	Broadcasts           *prometheus.CounterVec
	BroadcastDuration    prometheus.Histogram

	registry *prometheus.Registry
}

// New creates the collectors for nodeID and registers them, together with
// the Go runtime and process collectors, in a fresh registry.
func New(nodeID string) *Metrics {
	labels := prometheus.Labels{"node": nodeID}
	m := &Metrics{
		PendingMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "pending_messages",
			Help:        "Number of replicated writes waiting for their causal dependencies.",
			ConstLabels: labels,
		}),
		OldestPendingSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "oldest_pending_seconds",
			Help:        "Age of the oldest buffered write, 0 when the buffer is empty.",
			ConstLabels: labels,
		}),
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "applied_total",
			Help:        "Writes applied to the store, by delivery path.",
			ConstLabels: labels,
		}, []string{"path"}),
		Buffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "buffered_total",
			Help:        "Replicated writes that had to wait in the pending buffer.",
			ConstLabels: labels,
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "engine",
			Name:        "duplicates_total",
			Help:        "Replicated writes ignored because they were already applied or already pending.",
			ConstLabels: labels,
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "boundary",
			Name:        "rejected_total",
			Help:        "Malformed replication requests rejected before reaching the engine.",
			ConstLabels: labels,
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "replication",
			Name:        "sends_total",
			Help:        "Replication sends to peers, by result.",
			ConstLabels: labels,
		}, []string{"peer", "result"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "replication",
			Name:        "send_duration_seconds",
			Help:        "Latency of a single replication send.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.PendingMessages,
		m.OldestPendingSeconds,
		m.Applied,
		m.Buffered,
		m.Duplicates,
		m.Rejected,
		m.Broadcasts,
		m.BroadcastDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
