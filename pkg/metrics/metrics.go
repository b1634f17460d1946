// Package metrics provides the cluster's Prometheus collectors:
// per-verb request counters and latencies, a lock-contention counter,
// an SN liveness gauge, and a heartbeat-age gauge (SPEC_FULL §B). Both
// daemons call InitRegistry once at startup; every collector
// constructor returns nil when metrics are disabled, so callers can
// pass the nil interface straight through to zero-overhead call sites.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry. Must be
// called before any New*Metrics constructor if metrics are enabled.
func InitRegistry() {
	registry = prometheus.NewRegistry()
	enabled = true
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return enabled }

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry { return registry }

// Handler returns the HTTP handler that exposes the registry in the
// Prometheus text exposition format, for cmd/nnd and cmd/snd to mount
// at /metrics.
func Handler() http.Handler {
	if registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ClusterMetrics records the control-plane and data-plane observability
// surface shared by the Name Node and Storage Node daemons.
type ClusterMetrics interface {
	// RecordRequest records one completed request for verb, tagged with
	// its outcome code ("SUCCESS" or an ErrorCode) and duration.
	RecordRequest(verb, code string, duration time.Duration)
	// RecordLockContention increments the FILE_LOCKED counter for verb.
	RecordLockContention(verb string)
	// SetSNLive sets Storage Node snID's liveness gauge (spec.md §4.1
	// ABSENT/REGISTERED/DEAD state machine collapsed to a boolean).
	SetSNLive(snID int, live bool)
	// SetHeartbeatAge records the time since snID's last heartbeat.
	SetHeartbeatAge(snID int, age time.Duration)
}

// NewClusterMetrics returns a ClusterMetrics backed by the process
// registry, or nil if metrics are disabled.
func NewClusterMetrics() ClusterMetrics {
	if !IsEnabled() {
		return nil
	}

	return &promClusterMetrics{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docspp_requests_total",
				Help: "Total control and data plane requests by verb and outcome code.",
			},
			[]string{"verb", "code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docspp_request_duration_seconds",
				Help:    "Request handling latency by verb.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"verb"},
		),
		lockContentionTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docspp_lock_contention_total",
				Help: "FILE_LOCKED responses by verb.",
			},
			[]string{"verb"},
		),
		snLive: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docspp_storage_node_live",
				Help: "1 if the Storage Node is REGISTERED, 0 if DEAD.",
			},
			[]string{"sn_id"},
		),
		heartbeatAge: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docspp_storage_node_heartbeat_age_seconds",
				Help: "Seconds since the Storage Node's last heartbeat.",
			},
			[]string{"sn_id"},
		),
	}
}

type promClusterMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	lockContentionTotal *prometheus.CounterVec
	snLive              *prometheus.GaugeVec
	heartbeatAge        *prometheus.GaugeVec
}

func (m *promClusterMetrics) RecordRequest(verb, code string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(verb, code).Inc()
	m.requestDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

func (m *promClusterMetrics) RecordLockContention(verb string) {
	m.lockContentionTotal.WithLabelValues(verb).Inc()
}

func (m *promClusterMetrics) SetSNLive(snID int, live bool) {
	v := 0.0
	if live {
		v = 1.0
	}
	m.snLive.WithLabelValues(strconv.Itoa(snID)).Set(v)
}

func (m *promClusterMetrics) SetHeartbeatAge(snID int, age time.Duration) {
	m.heartbeatAge.WithLabelValues(strconv.Itoa(snID)).Set(age.Seconds())
}
