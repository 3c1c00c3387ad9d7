// Package metrics provides Prometheus metrics for the user service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts bus events handled by the user facade.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "dispatch_total",
			Help:      "Total number of bus events handled by the user facade",
		},
		[]string{"event", "status"},
	)

	// DispatchDuration measures how long a handler takes to return.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "userservice",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of bus event handlers in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	// StreamCommandsTotal counts commands received on the commands stream.
	StreamCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "stream_commands_total",
			Help:      "Total number of commands consumed from the commands stream",
		},
		[]string{"event", "status"},
	)

	// SessionActive is 1 while the backend holds a current session.
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "userservice",
			Name:      "session_active",
			Help:      "Whether a current user session is established (1 = yes, 0 = no)",
		},
	)
)

// RecordDispatch records a facade bus dispatch.
func RecordDispatch(event, status string, elapsed time.Duration) {
	DispatchTotal.WithLabelValues(event, status).Inc()
	DispatchDuration.WithLabelValues(event).Observe(elapsed.Seconds())
}

// RecordStreamCommand records a command consumed from the commands stream.
func RecordStreamCommand(event, status string) {
	StreamCommandsTotal.WithLabelValues(event, status).Inc()
}

func SetSessionActive(active bool) {
	if active {
		SessionActive.Set(1)
		return
	}
	SessionActive.Set(0)
}

// Recorder adapts the package-level metrics to the facade's recorder.
type Recorder struct{}

func (Recorder) RecordDispatch(event, status string, elapsed time.Duration) {
	RecordDispatch(event, status, elapsed)
}
