package stream

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwsl/specengine/internal/agc"
	"github.com/cwsl/specengine/internal/config"
	"github.com/cwsl/specengine/internal/playback"
	"github.com/cwsl/specengine/internal/receiver"
)

type fakeDevice struct{}

func (fakeDevice) Open() error  { return nil }
func (fakeDevice) Close() error { return nil }
func (fakeDevice) ReadChunk(ctx context.Context, n int) ([]complex64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	chunk := make([]complex64, n)
	for i := range chunk {
		chunk[i] = complex(0.01, 0)
	}
	return chunk, nil
}
func (fakeDevice) SetFrequency(float64) error  { return nil }
func (fakeDevice) SetGain(float64) error       { return nil }
func (fakeDevice) SetSampleRate(float64) error { return nil }
func (fakeDevice) SetBandwidth(float64) error  { return nil }

func testManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.DSP.FFTSize = 8
	cfg.DSP.DisplayBins = 8
	cfg.DSP.OverlapSave = false
	cfg.DSP.AveragingMode = "none"
	cfg.Recording.StoragePath = t.TempDir()

	logger := log.New(io.Discard, "", 0)
	rx := receiver.New(fakeDevice{}, cfg.Receiver.CenterFreq, cfg.Receiver.Gain, cfg.Receiver.SampleRate, cfg.Receiver.Bandwidth, logger)

	mgr, err := New(cfg, rx, nil, nil, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return mgr
}

func TestStartLiveSetsMode(t *testing.T) {
	mgr := testManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.StartLive(ctx); err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	if mgr.Mode() != ModeLive {
		t.Errorf("Mode() = %v, want ModeLive", mgr.Mode())
	}
	mgr.Stop()
	if mgr.Mode() != ModeIdle {
		t.Errorf("Mode() = %v, want ModeIdle after Stop", mgr.Mode())
	}
}

func TestSubscribeReceivesFrames(t *testing.T) {
	mgr := testManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := mgr.Subscribe(4)
	defer unsubscribe()

	if err := mgr.StartLive(ctx); err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	defer mgr.Stop()

	select {
	case frame := <-ch:
		if len(frame) == 0 {
			t.Error("received empty frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a broadcast frame")
	}
}

func TestPauseThenResume(t *testing.T) {
	mgr := testManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.StartLive(ctx); err != nil {
		t.Fatalf("StartLive: %v", err)
	}
	if err := mgr.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if mgr.Mode() != ModePaused {
		t.Errorf("Mode() = %v, want ModePaused", mgr.Mode())
	}
	if err := mgr.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if mgr.Mode() != ModeLive {
		t.Errorf("Mode() = %v, want ModeLive after Resume", mgr.Mode())
	}
	mgr.Stop()
}

func TestPauseFromIdleErrors(t *testing.T) {
	mgr := testManager(t)
	if err := mgr.Pause(); err == nil {
		t.Error("expected error pausing from idle mode")
	}
}

func writeTestRecording(t *testing.T, sampleRate, centerFreq, bandwidth, gain float64, fftSize, chunks int) (rawPath, metaPath string) {
	t.Helper()
	dir := t.TempDir()
	rawPath = filepath.Join(dir, "rec.raw")
	metaPath = filepath.Join(dir, "rec.json")

	totalSamples := fftSize * chunks
	buf := make([]byte, totalSamples*8)
	for i := 0; i < totalSamples; i++ {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(0.01))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(0))
	}
	if err := os.WriteFile(rawPath, buf, 0o644); err != nil {
		t.Fatalf("writing raw file: %v", err)
	}

	meta := playback.Metadata{
		Filename:     "rec",
		SampleRate:   sampleRate,
		CenterFreq:   centerFreq,
		Bandwidth:    bandwidth,
		Gain:         gain,
		FFTSize:      fftSize,
		TotalSamples: int64(totalSamples),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshaling metadata: %v", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		t.Fatalf("writing metadata: %v", err)
	}
	return rawPath, metaPath
}

// TestPlaybackModeReportsPlayerStatusNotDevice guards against regressing to
// broadcasting the live receiver's stale parameters during playback, and
// against AGC gain-stepping the live device while a recording plays.
func TestPlaybackModeReportsPlayerStatusNotDevice(t *testing.T) {
	mgr := testManager(t)
	initialGain := mgr.cfg.Receiver.Gain
	mgr.SetAGCParams(agc.Params{
		Enabled:    true,
		TargetDBFS: -10,
		GainStep:   5,
		MinGain:    0,
		MaxGain:    49,
	})
	rawPath, metaPath := writeTestRecording(t, 1e6, 433e6, 2e6, 30, mgr.cfg.DSP.FFTSize, 8)

	logger := log.New(io.Discard, "", 0)
	p, err := playback.Open(rawPath, metaPath, logger)
	if err != nil {
		t.Fatalf("playback.Open: %v", err)
	}

	ch, unsubscribe := mgr.Subscribe(4)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.StartPlayback(ctx, p); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	defer mgr.Stop()

	select {
	case frame := <-ch:
		if len(frame) == 0 {
			t.Fatal("received empty frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a broadcast frame during playback")
	}

	if mgr.rx.Status().Gain != initialGain {
		t.Errorf("AGC adjusted the live device's gain during playback: got %v, want unchanged %v",
			mgr.rx.Status().Gain, initialGain)
	}
}
