package mailqueue

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Option configures the queue components. Each component picks the settings it uses.
type Option func(*options)

type options struct {
	clock   Clock
	logger  *slog.Logger
	metrics Metrics
	policy  RetryPolicy
	limiter *rate.Limiter
}

func newOptions(opts []Option) *options {
	o := &options{
		clock:   SystemClock{},
		logger:  slog.Default(),
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithClock sets the time source
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithRetryPolicy overrides the backoff policy built from Config.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *options) {
		if policy != nil {
			o.policy = policy
		}
	}
}

// WithRateLimiter throttles calls to senders.
// Overrides the limiter built from Config.SendRate.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		if limiter != nil {
			o.limiter = limiter
		}
	}
}

// EnqueueOption sets optional fields of a single enqueued item.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	token          string
	additionalData string
	delay          time.Duration
}

// WithToken threads a confirmation or reset token into the message
func WithToken(token string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.token = token
	}
}

// WithAdditionalData attaches a kind-specific payload, JSON by convention
func WithAdditionalData(data string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.additionalData = data
	}
}

// WithDelay postpones the first delivery attempt
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}
