package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Poller metrics
	PollCycles        prometheus.Counter
	PollCyclesSkipped prometheus.Counter
	PollDuration      prometheus.Histogram

	// Dispatch metrics
	DispatchesCompleted prometheus.Counter
	DispatchesFailed    prometheus.Counter
	DeliveriesTotal     *prometheus.CounterVec
	DispatchDuration    prometheus.Histogram
}

// NewMetrics creates and registers all application metrics with the default
// registry. Use New for an unregistered set (tests).
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		PollCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_cycles_total",
			Help:      "Total number of completed poll cycles",
		}),
		PollCyclesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_cycles_skipped_total",
			Help:      "Poll ticks skipped because the previous cycle was still running",
		}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_duration_seconds",
			Help:      "Time spent processing one poll cycle",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		DispatchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatches_completed_total",
			Help:      "Notification requests that completed dispatch",
		}),
		DispatchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatches_failed_total",
			Help:      "Notification requests that failed before delivery started",
		}),
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery attempts by outcome",
		}, []string{"outcome"}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one notification request",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// New returns a metrics set that is not registered with any registry.
func New(namespace string) *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Total number of completed poll cycles",
		}),
		PollCyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_skipped_total",
			Help:      "Poll ticks skipped because the previous cycle was still running",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent processing one poll cycle",
		}),
		DispatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_completed_total",
			Help:      "Notification requests that completed dispatch",
		}),
		DispatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_failed_total",
			Help:      "Notification requests that failed before delivery started",
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery attempts by outcome",
		}, []string{"outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one notification request",
		}),
	}
}
