package mailqueue

import "time"

// Metrics captures queue telemetry. Implementations must be safe for concurrent use.
type Metrics interface {
	// AddEnqueued counts a newly persisted item.
	AddEnqueued(kind Kind)
	// ObserveDispatch records the outcome of one dispatched item and how long delivery took.
	ObserveDispatch(kind Kind, outcome Outcome, duration time.Duration)
	// ObserveTick records one scheduler tick.
	ObserveTick(ready int, duration time.Duration)
	// AddRecovered counts items requeued by the stuck-item sweep.
	AddRecovered(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// AddEnqueued implements Metrics.
func (NopMetrics) AddEnqueued(Kind) {}

// ObserveDispatch implements Metrics.
func (NopMetrics) ObserveDispatch(Kind, Outcome, time.Duration) {}

// ObserveTick implements Metrics.
func (NopMetrics) ObserveTick(int, time.Duration) {}

// AddRecovered implements Metrics.
func (NopMetrics) AddRecovered(int) {}
