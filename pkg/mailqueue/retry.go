package mailqueue

import (
	"math"
	"math/rand"
	"time"
)

// MaxJitter bounds the jitter factor. Anything above 1/3 could let a jittered
// delay shrink below the previous attempt's delay.
const MaxJitter = 0.3

const maxDuration = time.Duration(math.MaxInt64)

// RetryPolicy decides when a failed item may run again.
type RetryPolicy interface {
	// NextRetry returns the earliest time an item that has failed retryCount
	// times may be claimed again. The boolean is false once retryCount has
	// reached maxRetries and the item must be marked failed instead.
	NextRetry(retryCount, maxRetries int, now time.Time) (time.Time, bool)
}

// ExponentialBackoff doubles the delay on every failure: Base * 2^retryCount.
// With Base of one minute the delays after failures 1, 2, 3 are 2, 4 and 8 minutes.
type ExponentialBackoff struct {
	Base     time.Duration // defaults to one minute
	MaxDelay time.Duration // zero disables the ceiling
	Jitter   float64       // clamped to [0, MaxJitter]
}

// DefaultRetryPolicy returns the plain 2^n minutes policy without jitter or ceiling.
func DefaultRetryPolicy() RetryPolicy {
	return ExponentialBackoff{Base: time.Minute}
}

// NextRetry implements RetryPolicy.
func (b ExponentialBackoff) NextRetry(retryCount, maxRetries int, now time.Time) (time.Time, bool) {
	if retryCount >= maxRetries {
		return time.Time{}, false
	}
	return now.Add(b.Delay(retryCount)), true
}

// Delay returns the wait after the given number of failures.
func (b ExponentialBackoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		return 0
	}

	base := b.Base
	if base <= 0 {
		base = time.Minute
	}

	// Saturate instead of overflowing the shift
	delay := maxDuration
	if retryCount < 62 && base <= maxDuration>>uint(retryCount) {
		delay = base << uint(retryCount)
	}

	if jitter := min(b.Jitter, MaxJitter); jitter > 0 {
		jittered := float64(delay) * (1 + (rand.Float64()*2-1)*jitter)
		if jittered >= float64(maxDuration) {
			delay = maxDuration
		} else {
			delay = time.Duration(jittered)
		}
	}

	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	return delay
}
