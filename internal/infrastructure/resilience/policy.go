package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits the analytics endpoints: a short retry burst inside a
// refresh cycle, and a breaker that keeps a failing API quiet for a minute.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 250 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      4,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = max(def.RetryMaxBackoff, out.RetryInitialBackoff)
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return out
}

// backoffAt returns the wait before the retry following attempt n (1-based).
func (c Config) backoffAt(n int) time.Duration {
	wait := c.RetryInitialBackoff
	for i := 1; i < n; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
		if wait >= c.RetryMaxBackoff {
			return c.RetryMaxBackoff
		}
	}
	return min(wait, c.RetryMaxBackoff)
}
