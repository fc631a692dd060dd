package examination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/examkit/session-runtime/internal/metrics"
)

// ClockConfig sets the countdown cadence.
type ClockConfig struct {
	// TickInterval is the local countdown step, one second in production.
	TickInterval time.Duration
	// SyncInterval is how often the authoritative remaining time is
	// fetched; between fetches the clock counts down locally, bounding
	// drift to one interval.
	SyncInterval time.Duration
	// AlarmThreshold is the remaining duration at or below which the
	// time-scarce flag is raised.
	AlarmThreshold time.Duration
}

func (c ClockConfig) withDefaults() ClockConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Minute
	}
	if c.AlarmThreshold <= 0 {
		c.AlarmThreshold = 5 * time.Minute
	}
	return c
}

// TimeUpdate is one emitted countdown sample.
type TimeUpdate struct {
	Remaining int
	Scarce    bool
	Display   string
}

// Clock reconciles a locally ticking countdown against the server's
// remaining-time value and raises a one-shot timeout signal. It is the
// only writer of the remaining-time value.
type Clock struct {
	src    TimeSource
	hash   string
	cfg    ClockConfig
	logger zerolog.Logger

	mu             sync.Mutex
	remaining      int
	synced         bool
	polled         bool
	fired          bool
	ticksSincePoll int

	updates chan TimeUpdate
	pulses  chan string
	timeout chan struct{}
}

// NewClock builds a clock for the session identified by hash.
func NewClock(src TimeSource, hash string, cfg ClockConfig, logger zerolog.Logger) *Clock {
	return &Clock{
		src:     src,
		hash:    hash,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "clock").Logger(),
		updates: make(chan TimeUpdate, 16),
		pulses:  make(chan string, 8),
		timeout: make(chan struct{}),
	}
}

// Updates streams countdown samples. Samples are dropped, never blocked
// on, if the consumer lags.
func (c *Clock) Updates() <-chan TimeUpdate { return c.updates }

// Pulses streams accessibility announcements (hh:mm:ss) at the 30-minute
// multiples and the 10, 5 and 1-minute marks.
func (c *Clock) Pulses() <-chan string { return c.pulses }

// Timeout is closed exactly once, on the tick where the synchronized
// value reaches zero.
func (c *Clock) Timeout() <-chan struct{} { return c.timeout }

// Remaining returns the last known remaining seconds and whether the
// value has been synchronized with the server at least once.
func (c *Clock) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.synced
}

// Run drives the countdown until ctx is cancelled. One scheduler loop
// decides each tick whether to poll or count down; there are no nested
// timers.
func (c *Clock) Run(ctx context.Context) error {
	c.step(ctx)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

// step advances the clock by one tick: poll when due, otherwise count
// down, then publish the sample and fire checkpoints.
func (c *Clock) step(ctx context.Context) {
	syncTicks := int(c.cfg.SyncInterval / c.cfg.TickInterval)
	if syncTicks < 1 {
		syncTicks = 1
	}

	c.mu.Lock()
	c.ticksSincePoll++
	// Failed polls count against the interval too, so an unreachable
	// backend is still only hit at the configured cadence.
	pollDue := !c.polled || c.ticksSincePoll >= syncTicks
	c.mu.Unlock()

	if pollDue {
		remaining, err := c.src.RemainingTime(ctx, c.hash)
		c.mu.Lock()
		c.polled = true
		c.ticksSincePoll = 0
		if err != nil {
			// Fail-soft: keep counting down from the last known value
			// until the next poll comes due.
			metrics.TimePollsTotal.WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).Msg("remaining-time fetch failed, counting down locally")
			c.countDownLocked()
		} else {
			metrics.TimePollsTotal.WithLabelValues("ok").Inc()
			if remaining < 0 {
				remaining = 0
			}
			c.remaining = remaining
			c.synced = true
		}
	} else {
		c.mu.Lock()
		c.countDownLocked()
	}

	update := TimeUpdate{
		Remaining: c.remaining,
		Scarce:    c.remaining <= int(c.cfg.AlarmThreshold/time.Second),
		Display:   FormatRemaining(c.remaining),
	}
	pulse := c.synced && c.remaining > 0 && atCheckpoint(c.remaining)
	fire := c.synced && c.remaining == 0 && !c.fired
	if fire {
		c.fired = true
	}
	c.mu.Unlock()

	metrics.RemainingSeconds.Set(float64(update.Remaining))

	select {
	case c.updates <- update:
	default:
	}
	if pulse {
		select {
		case c.pulses <- update.Display:
		default:
		}
	}
	if fire {
		c.logger.Info().Msg("time is up")
		close(c.timeout)
	}
}

func (c *Clock) countDownLocked() {
	if c.remaining > 0 {
		c.remaining--
	}
}

// atCheckpoint reports whether remaining sits on an announcement mark:
// an exact 30-minute multiple, or 10, 5 or 1 minutes left.
func atCheckpoint(remaining int) bool {
	switch remaining {
	case 600, 300, 60:
		return true
	}
	return remaining%1800 == 0
}

// FormatRemaining renders seconds as hh:mm:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
