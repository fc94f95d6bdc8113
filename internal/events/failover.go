package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverChannel publishes through primary and falls back to a local channel
// while primary is failing. Subscribers listen on both. Probes of a failing
// primary back off according to the retry policy.
type FailoverChannel struct {
	primary  Channel
	fallback Channel
	logger   *zerolog.Logger
	retry    RetryPolicy

	isDown    atomic.Bool
	mu        sync.Mutex
	failures  int
	nextProbe time.Time
	now       func() time.Time
}

func NewFailoverChannel(primary, fallback Channel, logger *zerolog.Logger) *FailoverChannel {
	return &FailoverChannel{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		retry:    DefaultRetryPolicy,
		now:      time.Now,
	}
}

// WithRetryPolicy replaces the probe backoff.
func (c *FailoverChannel) WithRetryPolicy(p RetryPolicy) *FailoverChannel {
	c.retry = p
	return c
}

func (c *FailoverChannel) Name() string { return "failover" }

func (c *FailoverChannel) Publish(ctx context.Context, event *Event) error {
	if c.shouldTryPrimary() {
		err := c.primary.Publish(ctx, event)
		if err == nil {
			c.markUp()
			return nil
		}
		delay := c.markDown()
		c.logger.Error().Err(err).Str("channel", c.primary.Name()).Dur("retry_in", delay).Msg("Primary channel failed, falling back to local delivery")
	}
	return c.fallback.Publish(ctx, event)
}

func (c *FailoverChannel) Subscribe(handler Handler) func() {
	stopPrimary := c.primary.Subscribe(handler)
	stopFallback := c.fallback.Subscribe(handler)
	return func() {
		stopPrimary()
		stopFallback()
	}
}

// Degraded reports whether events currently go to the fallback only.
func (c *FailoverChannel) Degraded() bool {
	return c.isDown.Load()
}

func (c *FailoverChannel) shouldTryPrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.nextProbe)
}

func (c *FailoverChannel) markUp() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
	if c.isDown.Swap(false) {
		c.logger.Info().Str("channel", c.primary.Name()).Msg("Primary channel recovered")
	}
}

func (c *FailoverChannel) markDown() time.Duration {
	c.mu.Lock()
	c.failures++
	delay := c.retry.NextDelay(c.failures)
	c.nextProbe = c.now().Add(delay)
	c.mu.Unlock()
	c.isDown.Store(true)
	return delay
}
