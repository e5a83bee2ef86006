// Package metrics holds the Prometheus collectors the client updates while
// sending requests and refreshing tokens. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parlance_client"

// Metrics holds all Prometheus metrics
type Metrics struct {
	Attempts        *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	TokenRefreshes  *prometheus.CounterVec
}

// New registers the client collectors with reg. Registering twice on the same
// registerer panics, so give each client its own registry or share one *Metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "HTTP attempts sent upstream, by method and outcome (status code or \"error\")",
			},
			[]string{"method", "outcome"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retries scheduled after a failed attempt, by method and reason",
			},
			[]string{"method", "reason"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Latency of individual HTTP attempts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Credential exchanges, by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveAttempt records one upstream attempt. statusCode is ignored when err is set.
func (m *Metrics) ObserveAttempt(method string, statusCode int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "error"
	if err == nil {
		outcome = strconv.Itoa(statusCode)
	}
	m.Attempts.WithLabelValues(method, outcome).Inc()
	m.AttemptDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveRetry records a scheduled retry.
func (m *Metrics) ObserveRetry(method, reason string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(method, reason).Inc()
}

// ObserveRefresh records the outcome of a credential exchange.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}
