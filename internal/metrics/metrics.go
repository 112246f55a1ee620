/**
 * @description
 * Prometheus collectors for the platform. One Metrics value is created at
 * startup and handed to the components that report through it; tests pass
 * a fresh registry to avoid duplicate-registration panics.
 */
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kenaz"

// Metrics holds every collector the platform exports.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Registrations *prometheus.CounterVec
	Payments      *prometheus.CounterVec
	PushSent      *prometheus.CounterVec
	PushPruned    prometheus.Counter
	WSClients     prometheus.Gauge
	ReminderRuns  prometheus.Counter
}

// MustNew constructs and registers all collectors on reg, panicking on
// registration conflicts the way promauto would.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment status transitions applied.",
		}, []string{"status"}),
		PushSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_sent_total",
			Help:      "Push delivery attempts by result.",
		}, []string{"result"}),
		PushPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_pruned_total",
			Help:      "Push subscriptions deleted after the endpoint reported gone.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
		ReminderRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_runs_total",
			Help:      "Completed reminder sweep runs.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Registrations,
		m.Payments,
		m.PushSent,
		m.PushPruned,
		m.WSClients,
		m.ReminderRuns,
	)
	return m
}
