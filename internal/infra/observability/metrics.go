package observability

import (
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Guard denial reasons.
const (
	DenyRole   = "role"
	DenyTenant = "tenant"
	DenyScope  = "scope"
)

// Metrics holds all Prometheus metrics for the hub.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	logins          *prometheus.CounterVec
	guardDenials    *prometheus.CounterVec
	publishes       *prometheus.CounterVec
	bulkItems       *prometheus.CounterVec
	sessionsSwept   prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hub_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		guardDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_guard_denials_total",
				Help: "Access guard denials by reason.",
			},
			[]string{"reason"},
		),
		publishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_publishes_total",
				Help: "External publish attempts by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		),
		bulkItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hub_bulk_import_items_total",
				Help: "Bulk partner import items by outcome.",
			},
			[]string{"outcome"},
		),
		sessionsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hub_sessions_swept_total",
				Help: "Expired sessions removed by the sweeper.",
			},
		),
	}
}

// RecordRequestDuration records the duration of a route.
func (m *Metrics) RecordRequestDuration(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrLogin counts a login attempt; outcome is "success" or "failure".
func (m *Metrics) IncrLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

// IncrGuardDenial counts an access guard denial.
func (m *Metrics) IncrGuardDenial(reason string) {
	m.guardDenials.WithLabelValues(reason).Inc()
}

// IncrPublish counts a publish attempt.
func (m *Metrics) IncrPublish(platform, outcome string) {
	m.publishes.WithLabelValues(platform, outcome).Inc()
}

// IncrBulkItem counts one processed bulk import item.
func (m *Metrics) IncrBulkItem(outcome string) {
	m.bulkItems.WithLabelValues(outcome).Inc()
}

// AddSessionsSwept counts sessions removed by the sweeper.
func (m *Metrics) AddSessionsSwept(n int64) {
	m.sessionsSwept.Add(float64(n))
}

// Snapshot reads the current counter values for GET /admin/stats.
// Prometheus counters are cumulative since process start.
func (m *Metrics) Snapshot() *domain.HubStats {
	stats := &domain.HubStats{
		LoginsSucceeded:   getCounterValue(m.logins, "success"),
		LoginsFailed:      getCounterValue(m.logins, "failure"),
		GuardDenials:      map[string]float64{},
		BulkItemsCreated:  getCounterValue(m.bulkItems, "created"),
		BulkItemsRejected: getCounterValue(m.bulkItems, "rejected"),
		SessionsSwept:     readCounter(m.sessionsSwept),
	}
	for _, reason := range []string{DenyRole, DenyTenant, DenyScope} {
		stats.GuardDenials[reason] = getCounterValue(m.guardDenials, reason)
	}
	for _, platform := range []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram} {
		stats.PublishesSucceeded += getCounterValue(m.publishes, string(platform), "success")
		stats.PublishesFailed += getCounterValue(m.publishes, string(platform), "failure")
	}
	return stats
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readCounter(cv.WithLabelValues(labels...))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
