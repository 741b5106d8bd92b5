package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationOnce    sync.Once
	confirmedTotal      prometheus.Counter
	timeoutTotal        prometheus.Counter
	submissionFailTotal prometheus.Counter
	confirmationLatency prometheus.Histogram
)

func ensureRegistrationMetrics() {
	registrationOnce.Do(func() {
		confirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lockagent",
			Subsystem: "registration",
			Name:      "confirmed_total",
			Help:      "Registrations confirmed by the ledger",
		})
		timeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lockagent",
			Subsystem: "registration",
			Name:      "timeout_total",
			Help:      "Registrations that hit the local confirmation window",
		})
		submissionFailTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lockagent",
			Subsystem: "registration",
			Name:      "submission_failed_total",
			Help:      "Registration transactions rejected at submission",
		})
		confirmationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lockagent",
			Subsystem: "registration",
			Name:      "confirmation_latency_seconds",
			Help:      "Latency between registration submission and ledger confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		})
	})
}

// Registration records registration outcomes. The zero value is usable.
type Registration struct{}

func (Registration) ObserveConfirmed(latency time.Duration) {
	ensureRegistrationMetrics()
	confirmedTotal.Inc()
	confirmationLatency.Observe(latency.Seconds())
}

func (Registration) ObserveTimeout() {
	ensureRegistrationMetrics()
	timeoutTotal.Inc()
}

func (Registration) ObserveSubmissionFailure() {
	ensureRegistrationMetrics()
	submissionFailTotal.Inc()
}
