// Package agc implements a single-pole proportional software AGC driven by
// measured peak power.
package agc

import (
	"sync"
	"time"
)

// Params configures the controller.
type Params struct {
	Enabled     bool
	TargetDBFS  float64
	Hysteresis  float64
	GainStep    float64
	MinGain     float64
	MaxGain     float64
	MinInterval time.Duration
}

// AGC holds controller state. Safe for concurrent use.
type AGC struct {
	mu           sync.Mutex
	params       Params
	currentGain  float64
	lastAdjustAt time.Time
}

// New creates an AGC seeded with the receiver's current gain.
func New(p Params, initialGain float64) *AGC {
	return &AGC{params: p, currentGain: initialGain}
}

// SetParams updates controller parameters.
func (a *AGC) SetParams(p Params) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params = p
}

// SetCurrentGain resynchronizes the controller's notion of gain, e.g. after
// an operator-issued set_gain command.
func (a *AGC) SetCurrentGain(g float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentGain = g
}

// Update evaluates one DSP frame's peak power and returns a new gain to
// apply, or ok=false if no adjustment is warranted. It has no notion of
// playback mode; the orchestrator does not call it while replaying
// recordings.
func (a *AGC) Update(peakPower float64, now time.Time) (gain float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.params.Enabled {
		return 0, false
	}
	if !a.lastAdjustAt.IsZero() && now.Sub(a.lastAdjustAt) < a.params.MinInterval {
		return 0, false
	}

	err := peakPower - a.params.TargetDBFS
	if absFloat(err) <= a.params.Hysteresis/2 {
		return 0, false
	}

	next := a.currentGain
	if err > 0 {
		next -= a.params.GainStep
	} else {
		next += a.params.GainStep
	}
	next = clamp(next, a.params.MinGain, a.params.MaxGain)
	if next == a.currentGain {
		return 0, false
	}

	a.currentGain = next
	a.lastAdjustAt = now
	return next, true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
