package queue

import "time"

// BackoffPolicy maps a retry count (1-based, the attempt that just
// failed) to the delay before the job becomes claimable again.
type BackoffPolicy interface {
	Delay(retryCount int) time.Duration
}

// NoBackoff makes failed jobs claimable immediately. Used in tests.
type NoBackoff struct{}

func (NoBackoff) Delay(int) time.Duration { return 0 }

// FixedBackoff waits the same interval after every failure.
type FixedBackoff struct {
	Interval time.Duration
}

func (b FixedBackoff) Delay(int) time.Duration { return b.Interval }

// ExponentialBackoff doubles the base delay per retry, capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b ExponentialBackoff) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := b.Base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
