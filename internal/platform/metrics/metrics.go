package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the prometheus instruments shared by the registries.
type Metrics struct {
	DelegateToggles     *prometheus.CounterVec
	RoleToggles         *prometheus.CounterVec
	Registrations       prometheus.Counter
	Transfers           prometheus.Counter
	SignatureFailures   *prometheus.CounterVec
	OperationFailures   *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ActiveDelegateSeats prometheus.Gauge
}

// New registers and returns the shared instrument set. Call once per process;
// promauto panics on duplicate registration.
func New() *Metrics {
	return &Metrics{
		DelegateToggles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portrait_delegate_toggles_total",
			Help: "Total delegate assign/accept toggle operations",
		}, []string{"kind"}),
		RoleToggles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portrait_team_role_toggles_total",
			Help: "Total team role toggle operations",
		}, []string{"kind"}),
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portrait_identity_registrations_total",
			Help: "Total portrait identities registered",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portrait_identity_transfers_total",
			Help: "Total portrait ownership transfers",
		}),
		SignatureFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portrait_signature_failures_total",
			Help: "Signature verification failures by reason",
		}, []string{"reason"}),
		OperationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portrait_operation_failures_total",
			Help: "Registry operation failures by error code",
		}, []string{"code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portrait_http_request_duration_seconds",
			Help:    "HTTP request latency by path",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		ActiveDelegateSeats: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "portrait_active_delegate_assignments",
			Help: "Current number of assigned delegate records",
		}),
	}
}

// ObserveRequestDuration records one request's latency.
func (m *Metrics) ObserveRequestDuration(path string, d time.Duration) {
	m.RequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

// IncOperationFailure counts a failed registry operation by error code.
func (m *Metrics) IncOperationFailure(code string) {
	m.OperationFailures.WithLabelValues(code).Inc()
}

// IncSignatureFailure counts a signature rejection by reason.
func (m *Metrics) IncSignatureFailure(reason string) {
	m.SignatureFailures.WithLabelValues(reason).Inc()
}
