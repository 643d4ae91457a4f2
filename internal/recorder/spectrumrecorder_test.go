package recorder

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestSpectrumRecorder(t *testing.T) *SpectrumRecorder {
	t.Helper()
	return NewSpectrumRecorder(t.TempDir(), 2, log.New(io.Discard, "", 0))
}

func TestSpectrumRecorderWritesHeaderAndRows(t *testing.T) {
	r := newTestSpectrumRecorder(t)
	start := time.Now()
	name, err := r.Start(start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	frame := SpectrumFrame{CenterFreq: 100e6, SampleRate: 2e6, NoiseFloor: -90, PeakPower: -30, Bins: []float32{-80, -75}}
	r.Offer(frame, start)
	r.Offer(frame, start.Add(2*time.Second)) // past the 1s throttle window

	path := filepath.Join(r.storagePath, name)
	r.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output csv: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 { // header + 2 rows
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "timestamp,center_freq") {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func TestSpectrumRecorderThrottlesWithinOneSecond(t *testing.T) {
	r := newTestSpectrumRecorder(t)
	start := time.Now()
	name, err := r.Start(start)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame := SpectrumFrame{CenterFreq: 100e6, SampleRate: 2e6}
	r.Offer(frame, start)
	r.Offer(frame, start.Add(100*time.Millisecond)) // inside throttle window, should be dropped

	path := filepath.Join(r.storagePath, name)
	r.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lineCount := strings.Count(string(data), "\n")
	if lineCount != 2 { // header + 1 row
		t.Fatalf("got %d lines, want 2 (throttled second Offer should be dropped): %q", lineCount, data)
	}
}

func TestSpectrumRecorderStartTwiceErrors(t *testing.T) {
	r := newTestSpectrumRecorder(t)
	now := time.Now()
	if _, err := r.Start(now); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer r.Stop()
	if _, err := r.Start(now); err == nil {
		t.Fatal("expected error starting while already recording")
	}
}

func TestSpectrumRecorderOfferBeforeStartIsNoop(t *testing.T) {
	r := newTestSpectrumRecorder(t)
	r.Offer(SpectrumFrame{}, time.Now()) // must not panic
	if r.IsRecording() {
		t.Fatal("recorder should not be recording")
	}
}
