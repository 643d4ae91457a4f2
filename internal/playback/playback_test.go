package playback

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
)

func writeTestRecording(t *testing.T, sampleRate float64, fftSize int, chunks int) (rawPath, metaPath string) {
	t.Helper()
	dir := t.TempDir()
	rawPath = filepath.Join(dir, "rec.raw")
	metaPath = filepath.Join(dir, "rec.json")

	totalSamples := fftSize * chunks
	buf := make([]byte, totalSamples*8)
	for i := 0; i < totalSamples; i++ {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(i)))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(-i)))
	}
	if err := os.WriteFile(rawPath, buf, 0o644); err != nil {
		t.Fatalf("writing raw file: %v", err)
	}

	meta := Metadata{
		Filename:     "rec",
		SampleRate:   sampleRate,
		CenterFreq:   100e6,
		Bandwidth:    2e6,
		Gain:         20,
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

func TestOpenReadsMetadata(t *testing.T) {
	rawPath, metaPath := writeTestRecording(t, 1e6, 4, 2)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Stop()
	if p.Meta().CenterFreq != 100e6 {
		t.Errorf("CenterFreq = %f, want 100e6", p.Meta().CenterFreq)
	}
}

func TestStartFeedsFirstChunk(t *testing.T) {
	// A high sample rate keeps the per-chunk pace well under the test timeout.
	rawPath, metaPath := writeTestRecording(t, 1e8, 4, 4)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Stop()

	queue := make(chan []complex64, 8)
	if err := p.Start(context.Background(), queue); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case chunk := <-queue:
		if len(chunk) != 4 {
			t.Errorf("chunk length = %d, want 4", len(chunk))
		}
		if real(chunk[0]) != 0 || imag(chunk[0]) != 0 {
			t.Errorf("first sample = %v, want (0,0)", chunk[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first chunk")
	}
}

func TestSetSpeedValidatesRange(t *testing.T) {
	rawPath, metaPath := writeTestRecording(t, 1e6, 4, 1)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Stop()

	if err := p.SetSpeed(0.05); err != ErrSpeedOutOfRange {
		t.Errorf("SetSpeed(0.05) error = %v, want ErrSpeedOutOfRange", err)
	}
	if err := p.SetSpeed(20); err != ErrSpeedOutOfRange {
		t.Errorf("SetSpeed(20) error = %v, want ErrSpeedOutOfRange", err)
	}
	if err := p.SetSpeed(2.0); err != nil {
		t.Errorf("SetSpeed(2.0) unexpected error: %v", err)
	}
}

func TestSeekAlignsToChunkBoundary(t *testing.T) {
	rawPath, metaPath := writeTestRecording(t, 1000, 10, 5)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Stop()

	p.Seek(0.0123) // 12.3 samples at 1000 Hz -> aligned down to sample 10 (start of chunk 1)
	if got := p.PlaybackStatus().PositionSecs; got != 0.01 {
		t.Errorf("PositionSecs = %f, want 0.01", got)
	}
}

func TestStatusReflectsPlaybackState(t *testing.T) {
	rawPath, metaPath := writeTestRecording(t, 1e6, 4, 1)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Stop()

	status := p.Status()
	if status.CenterFreq != 100e6 || status.SampleRate != 1e6 {
		t.Errorf("Status = %+v, want CenterFreq=100e6 SampleRate=1e6", status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rawPath, metaPath := writeTestRecording(t, 1e6, 4, 1)
	p, err := Open(rawPath, metaPath, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got: %v", err)
	}
}
