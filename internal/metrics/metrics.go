package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// operation results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the collectors of one server. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	queueDepth *prometheus.GaugeVec
	tasks      *prometheus.CounterVec
	ops        *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kv",
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Units of work waiting in a worker slot queue.",
		}, []string{"slot"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kv",
			Subsystem: "pool",
			Name:      "tasks_total",
			Help:      "Units of work executed per worker slot.",
		}, []string{"slot"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kv",
			Name:      "operations_total",
			Help:      "Key-value operations by result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kv",
			Name:      "operation_duration_seconds",
			Help:      "Time from submission to completion of blocking operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.queueDepth, m.tasks, m.ops, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) QueueDepth(slot, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(strconv.Itoa(slot)).Set(float64(depth))
}

func (m *Metrics) TaskDone(slot int) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(strconv.Itoa(slot)).Inc()
}

// Operation counts one call of op with its result.
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}
