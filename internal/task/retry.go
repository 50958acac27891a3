package task

import (
	"math"
	"time"

	"github.com/phrazzld/fare-enricher/internal/config"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls how often and how quickly a failed enrichment attempt
// is repeated. MaxRetries counts retries after the first attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns three retries starting at one minute and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  60 * time.Second,
		Multiplier: 2.0,
		MaxDelay:   30 * time.Minute,
	}
}

// RetryPolicyFromConfig builds a policy from the task configuration section.
func RetryPolicyFromConfig(cfg config.TaskConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
		MaxDelay:   cfg.MaxDelay,
	}
}

// MaxAttempts is the total number of attempts, first try included.
func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the wait before retry n, counting from 1.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Backoff returns a fresh go-retry backoff for one task lineage.
func (p RetryPolicy) Backoff() retry.Backoff {
	var n int
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return p.Delay(n), false
	})

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}
