package task

import (
	"testing"
	"time"

	"github.com/phrazzld/fare-enricher/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 60*time.Second, p.Delay(1))
	assert.Equal(t, 120*time.Second, p.Delay(2))
	assert.Equal(t, 240*time.Second, p.Delay(3))
	assert.Equal(t, 30*time.Minute, p.Delay(10))
	assert.Equal(t, 4, p.MaxAttempts())
}

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, Multiplier: 3, MaxDelay: time.Minute}
	b := p.Backoff()

	d, stop := b.Next()
	assert.False(t, stop)
	assert.Equal(t, time.Second, d)

	d, stop = b.Next()
	assert.False(t, stop)
	assert.Equal(t, 3*time.Second, d)

	_, stop = b.Next()
	assert.True(t, stop)

	// Each lineage gets its own counter.
	d, _ = p.Backoff().Next()
	assert.Equal(t, time.Second, d)
}

func TestRetryPolicy_NoRetries(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 0, BaseDelay: time.Second, Multiplier: 2}
	_, stop := p.Backoff().Next()
	assert.True(t, stop)
	assert.Equal(t, 1, p.MaxAttempts())
}

func TestRetryPolicyFromConfig(t *testing.T) {
	t.Parallel()

	p := RetryPolicyFromConfig(config.TaskConfig{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Multiplier: 1.5,
		MaxDelay:   time.Hour,
	})
	assert.Equal(t, RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, Multiplier: 1.5, MaxDelay: time.Hour}, p)
}
