package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	ApplicationsCreated  prometheus.Counter
	ApplicationsUpdated  prometheus.Counter
	NotificationsCreated prometheus.Counter
	UsersCreated         prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "app_registry_applications_created_total",
			Help: "Total number of applications created in the registry",
		}),
		ApplicationsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "app_registry_applications_updated_total",
			Help: "Total number of application updates applied",
		}),
		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "app_registry_anomaly_notifications_created_total",
			Help: "Total number of anomaly notifications opened",
		}),
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "app_registry_users_created_total",
			Help: "Total number of users lazily created on first login",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "app_registry_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// IncrementApplicationsCreated increments the created counter by 1.
func (m *Metrics) IncrementApplicationsCreated() {
	if m == nil {
		return
	}
	m.ApplicationsCreated.Inc()
}

// IncrementApplicationsUpdated increments the updated counter by 1.
func (m *Metrics) IncrementApplicationsUpdated() {
	if m == nil {
		return
	}
	m.ApplicationsUpdated.Inc()
}

// IncrementNotificationsCreated increments the notifications counter by 1.
func (m *Metrics) IncrementNotificationsCreated() {
	if m == nil {
		return
	}
	m.NotificationsCreated.Inc()
}

// IncrementUsersCreated increments the users counter by 1.
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
