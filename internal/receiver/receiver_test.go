package receiver

import (
	"context"
	"io"
	"log"
	"testing"
	"time"
)

type fakeDevice struct {
	chunkCh chan []complex64
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{chunkCh: make(chan []complex64, 256)}
}

func (d *fakeDevice) Open() error  { return nil }
func (d *fakeDevice) Close() error { return nil }
func (d *fakeDevice) ReadChunk(ctx context.Context, chunkSize int) ([]complex64, error) {
	select {
	case c := <-d.chunkCh:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
func (d *fakeDevice) SetFrequency(hz float64) error  { return nil }
func (d *fakeDevice) SetGain(db float64) error       { return nil }
func (d *fakeDevice) SetSampleRate(hz float64) error { return nil }
func (d *fakeDevice) SetBandwidth(hz float64) error  { return nil }

func (d *fakeDevice) push(n int) {
	for i := 0; i < n; i++ {
		d.chunkCh <- make([]complex64, 8)
	}
}

func TestDropOnFullQueue(t *testing.T) {
	dev := newFakeDevice()
	f := New(dev, 100e6, 20, 2e6, 2e6, log.New(io.Discard, "", 0))
	f.SetChunkSize(8)

	queue := make(chan []complex64, 2)
	if err := f.Start(context.Background(), queue); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dev.push(20)
	time.Sleep(50 * time.Millisecond)

	if err := f.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	status := f.Status()
	if status.DropCount == 0 {
		t.Error("expected drops to be recorded when the queue saturates")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	f := New(dev, 100e6, 20, 2e6, 2e6, log.New(io.Discard, "", 0))
	f.SetChunkSize(8)
	queue := make(chan []complex64, 4)
	if err := f.Start(context.Background(), queue); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got: %v", err)
	}
	if f.Status().Running {
		t.Error("expected Running=false after Stop")
	}
}
