// Package metrics exposes mail queue telemetry as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/mailqueue/pkg/mailqueue"
)

const defaultNamespace = "mailqueue"

// Recorder implements mailqueue.Metrics on Prometheus collectors.
type Recorder struct {
	enqueued         *prometheus.CounterVec
	dispatched       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	ticks            prometheus.Counter
	tickReady        prometheus.Histogram
	tickDuration     prometheus.Histogram
	recovered        prometheus.Counter
}

var _ mailqueue.Metrics = (*Recorder)(nil)

// NewRecorder creates the queue collectors and registers them with reg.
// An empty namespace defaults to "mailqueue".
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	r := &Recorder{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_enqueued_total",
			Help:      "Total number of items persisted by the enqueuer",
		}, []string{"kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dispatched_total",
			Help:      "Total number of dispatch attempts by outcome",
		}, []string{"kind", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent in the sender per attempt",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Total number of scheduler ticks",
		}),
		tickReady: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_ready_items",
			Help:      "Number of ready items found per tick",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Duration of a scheduler tick",
			Buckets:   prometheus.DefBuckets,
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_recovered_total",
			Help:      "Total number of stuck processing items returned to pending",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.enqueued, r.dispatched, r.dispatchDuration,
		r.ticks, r.tickReady, r.tickDuration, r.recovered,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// AddEnqueued implements mailqueue.Metrics.
func (r *Recorder) AddEnqueued(kind mailqueue.Kind) {
	r.enqueued.WithLabelValues(kind.String()).Inc()
}

// ObserveDispatch implements mailqueue.Metrics.
// Skipped dispatches never reach a sender, so they carry no duration sample.
func (r *Recorder) ObserveDispatch(kind mailqueue.Kind, outcome mailqueue.Outcome, duration time.Duration) {
	r.dispatched.WithLabelValues(kind.String(), outcome.String()).Inc()
	if outcome != mailqueue.OutcomeSkipped {
		r.dispatchDuration.WithLabelValues(kind.String()).Observe(duration.Seconds())
	}
}

// ObserveTick implements mailqueue.Metrics.
func (r *Recorder) ObserveTick(ready int, duration time.Duration) {
	r.ticks.Inc()
	r.tickReady.Observe(float64(ready))
	r.tickDuration.Observe(duration.Seconds())
}

// AddRecovered implements mailqueue.Metrics.
func (r *Recorder) AddRecovered(count int) {
	if count > 0 {
		r.recovered.Add(float64(count))
	}
}
