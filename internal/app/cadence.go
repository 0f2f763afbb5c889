package app

import (
	"sync"
	"time"
)

// CadenceConfig holds the polling intervals and the quiet period after which
// polling falls back to the baseline. Baseline > Fast1 > Fast2.
type CadenceConfig struct {
	Baseline    time.Duration
	Fast1       time.Duration
	Fast2       time.Duration
	QuietPeriod time.Duration
}

// CadenceState is a copy of the adaptive polling state.
type CadenceState struct {
	CurrentInterval         time.Duration
	ConsecutiveActiveChecks int
	LastChangeAt            time.Time
}

// Cadence decides how often the portal is polled. Every detected change
// steps the interval down (baseline -> fast1 -> fast2, then it stays there);
// a quiet period without changes resets it to the baseline.
type Cadence struct {
	mu    sync.Mutex
	cfg   CadenceConfig
	state CadenceState
}

func NewCadence(cfg CadenceConfig) *Cadence {
	return &Cadence{
		cfg:   cfg,
		state: CadenceState{CurrentInterval: cfg.Baseline},
	}
}

// RecordChange registers a non-empty diff detected at now. It returns the
// interval to poll at and whether it differs from the previous one.
func (c *Cadence) RecordChange(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.ConsecutiveActiveChecks++
	c.state.LastChangeAt = now

	next := c.state.CurrentInterval
	switch c.state.ConsecutiveActiveChecks {
	case 1:
		next = c.cfg.Fast1
	case 2:
		next = c.cfg.Fast2
	}
	changed := next != c.state.CurrentInterval
	c.state.CurrentInterval = next
	return next, changed
}

// CheckQuiet resets the cadence to the baseline when no change was seen for
// the quiet period. It returns true only on the call that performed the
// reset, so the caller can announce it once per quiet period.
func (c *Cadence) CheckQuiet(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.ConsecutiveActiveChecks == 0 {
		return false
	}
	if now.Sub(c.state.LastChangeAt) < c.cfg.QuietPeriod {
		return false
	}
	c.state.ConsecutiveActiveChecks = 0
	c.state.CurrentInterval = c.cfg.Baseline
	return true
}

// Interval returns the interval currently in effect.
func (c *Cadence) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentInterval
}

// Baseline returns the configured resting interval.
func (c *Cadence) Baseline() time.Duration {
	return c.cfg.Baseline
}

// State returns a copy of the current state.
func (c *Cadence) State() CadenceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
