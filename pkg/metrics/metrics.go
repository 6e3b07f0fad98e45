package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventbus_sessions_active",
			Help: "Number of currently registered sessions",
		},
	)

	SessionsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_sessions_registered_total",
			Help: "Total number of session registrations",
		},
	)

	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_sessions_expired_total",
			Help: "Total number of sessions removed by the stale sweep",
		},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Total number of events published",
		},
	)

	// Webhook metrics
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_webhook_deliveries_total",
			Help: "Total number of webhook delivery outcomes by result",
		},
		[]string{"result"},
	)

	WebhookDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventbus_webhook_delivery_seconds",
			Help:    "Webhook delivery duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sweeper metrics
	SweepCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_sweep_cycles_total",
			Help: "Total number of stale-session sweep cycles",
		},
	)
)

// Register registers all collectors with the default registry. Call once at
// startup.
func Register() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsRegistered,
		SessionsExpired,
		EventsPublished,
		WebhookDeliveries,
		WebhookDeliveryDuration,
		SweepCycles,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the histogram.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}
