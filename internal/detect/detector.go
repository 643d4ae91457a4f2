// Package detect thresholds a spectrum above its noise floor, extracts
// contiguous regions, and tracks them across frames by bin-overlap.
package detect

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EventType identifies the kind of tracking event emitted by Detect.
type EventType int

const (
	SignalNew EventType = iota
	SignalUpdate
	SignalLost
)

// Signal is a tracked signal's full state.
type Signal struct {
	ID             uint64
	CenterFreq     float64
	PeakFreq       float64
	Bandwidth      float64
	PeakPower      float32
	AvgPower       float32
	BinStart       int
	BinEnd         int
	FirstSeen      time.Time
	LastSeen       time.Time
	HitCount       int
	Classification string
	Notes          string
}

// Event is emitted to the orchestrator whenever a signal is created,
// updated, or declared lost.
type Event struct {
	Type   EventType
	Signal Signal
}

// Params controls the detector's thresholding, merging, and tracking
// behavior.
type Params struct {
	ThresholdDB        float64
	MinBandwidthBins   int
	MergeGapBins       int
	OverlapMatchRatio  float64
	UpdateInterval     time.Duration
	PersistenceTimeout time.Duration
	MaxTrackedSignals  int
}

// Detector holds tracked-signal state. Detect is called from the DSP worker;
// Detect, SetEnabled, SetParams and Status all take the same mutex, since
// the setters may be called from a command handler.
type Detector struct {
	mu      sync.Mutex
	params  Params
	enabled bool

	tracked      []Signal
	nextID       uint64
	lastDetectAt time.Time
}

// New creates a Detector with the given parameters, initially disabled.
func New(p Params) *Detector {
	return &Detector{params: p, nextID: 1}
}

// SetEnabled toggles detection. Disabling flushes all tracked signals as
// SignalLost events.
func (d *Detector) SetEnabled(enabled bool) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled == enabled {
		return nil
	}
	d.enabled = enabled
	if enabled {
		return nil
	}
	events := make([]Event, 0, len(d.tracked))
	for _, s := range d.tracked {
		events = append(events, Event{Type: SignalLost, Signal: s})
	}
	d.tracked = nil
	return events
}

// SetParams updates detector parameters under lock.
func (d *Detector) SetParams(p Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params = p
}

// Status is a snapshot of the detector's configuration and tracking state.
type Status struct {
	Enabled      bool
	TrackedCount int
	Params       Params
}

// Status reports whether detection is enabled, how many signals are
// currently tracked, and the active parameters.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{Enabled: d.enabled, TrackedCount: len(d.tracked), Params: d.params}
}

// Detect runs region extraction and tracking against one display-bin
// spectrum. Returns nil if throttled or disabled.
func (d *Detector) Detect(spectrum []float32, noiseFloor float32, centerFreq, sampleRate float64, now time.Time) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return nil
	}
	if !d.lastDetectAt.IsZero() && now.Sub(d.lastDetectAt) < d.params.UpdateInterval {
		return nil
	}
	d.lastDetectAt = now

	regions := findRegions(spectrum, noiseFloor, float32(d.params.ThresholdDB), d.params.MinBandwidthBins, d.params.MergeGapBins)
	n := len(spectrum)

	var events []Event
	matched := make([]bool, len(d.tracked))

	for _, r := range regions {
		centerFreqHz, peakFreqHz, bandwidth, peakPower, avgPower := characterize(spectrum, r, centerFreq, sampleRate, n)

		bestIdx := -1
		bestRatio := 0.0
		for i, t := range d.tracked {
			if matched[i] {
				continue
			}
			ratio := overlapRatio(r.start, r.end, t.BinStart, t.BinEnd)
			if ratio > bestRatio {
				bestRatio = ratio
				bestIdx = i
			}
		}

		if bestIdx >= 0 && bestRatio >= d.params.OverlapMatchRatio {
			t := &d.tracked[bestIdx]
			t.CenterFreq = centerFreqHz
			t.PeakFreq = peakFreqHz
			t.Bandwidth = bandwidth
			t.PeakPower = peakPower
			t.AvgPower = avgPower
			t.BinStart, t.BinEnd = r.start, r.end
			t.LastSeen = now
			t.HitCount++
			matched[bestIdx] = true
			events = append(events, Event{Type: SignalUpdate, Signal: *t})
			continue
		}

		if len(d.tracked) >= d.params.MaxTrackedSignals {
			continue // table full: drop silently
		}
		s := Signal{
			ID:         d.nextID,
			CenterFreq: centerFreqHz,
			PeakFreq:   peakFreqHz,
			Bandwidth:  bandwidth,
			PeakPower:  peakPower,
			AvgPower:   avgPower,
			BinStart:   r.start,
			BinEnd:     r.end,
			FirstSeen:  now,
			LastSeen:   now,
			HitCount:   1,
		}
		d.nextID++
		d.tracked = append(d.tracked, s)
		matched = append(matched, true)
		events = append(events, Event{Type: SignalNew, Signal: s})
	}

	var kept []Signal
	for _, t := range d.tracked {
		if now.Sub(t.LastSeen) > d.params.PersistenceTimeout {
			events = append(events, Event{Type: SignalLost, Signal: t})
			continue
		}
		kept = append(kept, t)
	}
	d.tracked = kept

	return events
}

type region struct{ start, end int } // [start, end)

// findRegions masks bins above noiseFloor+thresholdDB, discards runs shorter
// than minWidth, and merges the remaining runs separated by at most mergeGap
// empty bins.
func findRegions(spectrum []float32, noiseFloor, thresholdDB float32, minWidth, mergeGap int) []region {
	threshold := noiseFloor + thresholdDB
	n := len(spectrum)
	above := make([]bool, n)
	for i, v := range spectrum {
		above[i] = v > threshold
	}

	var raw []region
	i := 0
	for i < n {
		if !above[i] {
			i++
			continue
		}
		start := i
		for i < n && above[i] {
			i++
		}
		if i-start >= minWidth {
			raw = append(raw, region{start, i})
		}
	}

	var merged []region
	for _, r := range raw {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if r.start-last.end <= mergeGap {
				last.end = r.end
				continue
			}
		}
		merged = append(merged, r)
	}
	return merged
}

// characterize computes center/peak frequency, bandwidth, peak power, and
// linear-domain average power for one region.
func characterize(spectrum []float32, r region, centerFreq, sampleRate float64, n int) (centerFreqHz, peakFreqHz, bandwidth float64, peakPower, avgPower float32) {
	binWidth := sampleRate / float64(n)
	peakBin := r.start
	for i := r.start; i < r.end; i++ {
		if spectrum[i] > spectrum[peakBin] {
			peakBin = i
		}
	}
	centerFreqHz = (centerFreq - sampleRate/2) + (float64(r.start+r.end-1) / 2) * binWidth
	peakFreqHz = (centerFreq - sampleRate/2) + float64(peakBin)*binWidth
	bandwidth = float64(r.end-r.start) * binWidth
	peakPower = spectrum[peakBin]

	linPowers := make([]float64, r.end-r.start)
	for i := r.start; i < r.end; i++ {
		linPowers[i-r.start] = math.Pow(10, float64(spectrum[i])/10)
	}
	avgPower = float32(10 * math.Log10(stat.Mean(linPowers, nil)))
	return
}

// overlapRatio returns |intersection| / min(|a|, |b|) for two bin ranges.
func overlapRatio(aStart, aEnd, bStart, bEnd int) float64 {
	lo := maxInt(aStart, bStart)
	hi := minInt(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	intersection := hi - lo
	lenA := aEnd - aStart
	lenB := bEnd - bStart
	denom := minInt(lenA, lenB)
	if denom <= 0 {
		return 0
	}
	return float64(intersection) / float64(denom)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
