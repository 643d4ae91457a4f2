package agc

import (
	"testing"
	"time"
)

func TestHysteresisSuppressesSmallError(t *testing.T) {
	a := New(Params{Enabled: true, TargetDBFS: -20, Hysteresis: 4, GainStep: 1, MinGain: 0, MaxGain: 60, MinInterval: time.Second}, 20)
	_, ok := a.Update(-21, time.Now())
	if ok {
		t.Fatal("expected no adjustment within hysteresis band")
	}
}

func TestStepsTowardTarget(t *testing.T) {
	a := New(Params{Enabled: true, TargetDBFS: -20, Hysteresis: 2, GainStep: 1, MinGain: 0, MaxGain: 60, MinInterval: 0}, 20)
	gain, ok := a.Update(-10, time.Now()) // too hot, reduce gain
	if !ok || gain != 19 {
		t.Fatalf("gain = %v, ok = %v; want 19, true", gain, ok)
	}
}

func TestRateLimited(t *testing.T) {
	a := New(Params{Enabled: true, TargetDBFS: -20, Hysteresis: 2, GainStep: 1, MinGain: 0, MaxGain: 60, MinInterval: time.Second}, 20)
	now := time.Now()
	_, ok := a.Update(-10, now)
	if !ok {
		t.Fatal("expected first adjustment to apply")
	}
	_, ok = a.Update(-10, now.Add(100*time.Millisecond))
	if ok {
		t.Fatal("expected second adjustment to be rate-limited")
	}
}

func TestClampsToRange(t *testing.T) {
	a := New(Params{Enabled: true, TargetDBFS: -20, Hysteresis: 1, GainStep: 10, MinGain: 0, MaxGain: 60, MinInterval: 0}, 5)
	gain, ok := a.Update(10, time.Now()) // way too hot
	if !ok || gain != 0 {
		t.Fatalf("gain = %v, ok = %v; want 0, true", gain, ok)
	}
}

func TestDisabledDoesNothing(t *testing.T) {
	a := New(Params{Enabled: false}, 20)
	_, ok := a.Update(-10, time.Now())
	if ok {
		t.Fatal("disabled AGC must not adjust")
	}
}
