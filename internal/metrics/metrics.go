// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

var (
	requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticketing",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "api",
		Name:      "rate_limit_hits_total",
		Help:      "Number of rate-limited responses",
	}, []string{"route"})

	registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "registry",
		Name:      "registrations_total",
		Help:      "Registration attempts by result",
	}, []string{"result"})

	verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "registry",
		Name:      "verifications_total",
		Help:      "Ticket verifications by status",
	}, []string{"status", "redeemed"})

	advisories = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "registry",
		Name:      "advisories_total",
		Help:      "Enrichment failures that did not fail the operation",
	}, []string{"stage"})

	emails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketing",
		Subsystem: "notify",
		Name:      "emails_total",
		Help:      "Ticket email deliveries by type and status",
	}, []string{"type", "status"})
)

func init() {
	collectors := []prometheus.Collector{requestTotal, requestLatency, rateLimitHits, registrations, verifications, advisories, emails}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

// ObserveRequest records one handled HTTP request.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	requestTotal.With(labels).Inc()
	requestLatency.With(labels).Observe(duration.Seconds())
}

// RateLimited counts a rejected request.
func RateLimited(route string) {
	rateLimitHits.WithLabelValues(route).Inc()
}

// Registration counts a registration attempt; result is "created", "closed", "duplicate", "invalid" or "error".
func Registration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// Verification counts a verification by outcome.
func Verification(status string, redeemed bool) {
	verifications.WithLabelValues(status, strconv.FormatBool(redeemed)).Inc()
}

// Advisory counts an absorbed enrichment failure.
func Advisory(stage string) {
	advisories.WithLabelValues(stage).Inc()
}

// Email counts an email delivery outcome.
func Email(emailType, status string) {
	emails.WithLabelValues(emailType, status).Inc()
}
