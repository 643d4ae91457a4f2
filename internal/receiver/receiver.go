// Package receiver provides a thread-safe façade over the tunable device,
// abstracted as an IQSource so the live device and file playback are
// interchangeable to the orchestrator.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrStartFailed is returned by Start when the device cannot be reached.
var ErrStartFailed = errors.New("receiver: device unreachable")

// Status is a snapshot of the façade's current parameters.
type Status struct {
	Running    bool
	CenterFreq float64
	Gain       float64
	SampleRate float64
	Bandwidth  float64
	DropCount  uint64
}

// IQSource is the abstraction shared by the live receiver façade and the
// playback reader (see design notes on playback as device replacement).
type IQSource interface {
	Start(ctx context.Context, queue chan<- []complex64) error
	Stop() error
	Status() Status
}

// Device is the opaque low-level driver this façade wraps. In production
// this talks to real hardware; the contract given here is all the engine
// depends on.
type Device interface {
	Open() error
	Close() error
	// ReadChunk blocks until exactly chunkSize complex samples are
	// available, or ctx is cancelled.
	ReadChunk(ctx context.Context, chunkSize int) ([]complex64, error)
	SetFrequency(hz float64) error
	SetGain(db float64) error
	SetSampleRate(hz float64) error
	SetBandwidth(hz float64) error
}

// Facade implements IQSource over a Device, owning exactly one producer
// goroutine while running.
type Facade struct {
	dev Device

	mu         sync.Mutex
	running    bool
	centerFreq float64
	gain       float64
	sampleRate float64
	bandwidth  float64
	chunkSize  int
	dropCount  uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastDropWarnAt time.Time
	logger         *log.Logger
}

// New creates a façade around dev with the given initial parameters.
func New(dev Device, centerFreq, gain, sampleRate, bandwidth float64, logger *log.Logger) *Facade {
	if logger == nil {
		logger = log.Default()
	}
	return &Facade{
		dev:        dev,
		centerFreq: centerFreq,
		gain:       gain,
		sampleRate: sampleRate,
		bandwidth:  bandwidth,
		logger:     logger,
	}
}

// SetChunkSize must be called before Start; it fixes the FFT size for the
// producer's reads.
func (f *Facade) SetChunkSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkSize = n
}

// Start boots the device and begins producing fixed-size chunks into queue
// on a dedicated goroutine. Non-blocking sends: a full queue drops the
// chunk and increments the drop counter, rate-limited to one warning every
// 5 seconds.
func (f *Facade) Start(ctx context.Context, queue chan<- []complex64) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	if err := f.dev.Open(); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	if err := f.applyLocked(); err != nil {
		f.dev.Close()
		f.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	chunkSize := f.chunkSize
	f.mu.Unlock()

	f.wg.Add(1)
	go f.produce(runCtx, queue, chunkSize)
	return nil
}

func (f *Facade) produce(ctx context.Context, queue chan<- []complex64, chunkSize int) {
	defer f.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			f.logger.Printf("receiver: producer goroutine recovered from panic: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := f.dev.ReadChunk(ctx, chunkSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Printf("receiver: read error: %v", err)
			continue
		}

		select {
		case queue <- chunk:
		default:
			f.mu.Lock()
			f.dropCount++
			shouldWarn := time.Since(f.lastDropWarnAt) >= 5*time.Second
			if shouldWarn {
				f.lastDropWarnAt = time.Now()
			}
			count := f.dropCount
			f.mu.Unlock()
			if shouldWarn {
				f.logger.Printf("receiver: ingest queue full, dropped chunk (total drops: %d)", count)
			}
		}
	}
}

// Stop signals the producer to exit and waits up to 5 seconds for it to
// release device resources. Idempotent.
func (f *Facade) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		f.logger.Printf("receiver: producer goroutine did not exit within 5s")
	}

	return f.dev.Close()
}

// SetFrequency records a new center frequency and, while streaming, applies
// it to the device at once, returning false if the device rejects it. The
// façade makes no range check of its own.
func (f *Facade) SetFrequency(hz float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.centerFreq = hz
	if f.running {
		if err := f.dev.SetFrequency(hz); err != nil {
			f.logger.Printf("receiver: set_frequency failed: %v", err)
			return false
		}
	}
	return true
}

// SetGain records a new gain and, while streaming, applies it to the device
// at once, returning false if the device rejects it.
func (f *Facade) SetGain(db float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = db
	if f.running {
		if err := f.dev.SetGain(db); err != nil {
			f.logger.Printf("receiver: set_gain failed: %v", err)
			return false
		}
	}
	return true
}

// SetSampleRate records a new sample rate and, while streaming, applies it
// to the device at once, returning false if the device rejects it.
func (f *Facade) SetSampleRate(hz float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sampleRate = hz
	if f.running {
		if err := f.dev.SetSampleRate(hz); err != nil {
			f.logger.Printf("receiver: set_sample_rate failed: %v", err)
			return false
		}
	}
	return true
}

// SetBandwidth records a new bandwidth and, while streaming, applies it to
// the device at once, returning false if the device rejects it.
func (f *Facade) SetBandwidth(hz float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bandwidth = hz
	if f.running {
		if err := f.dev.SetBandwidth(hz); err != nil {
			f.logger.Printf("receiver: set_bandwidth failed: %v", err)
			return false
		}
	}
	return true
}

func (f *Facade) applyLocked() error {
	if err := f.dev.SetFrequency(f.centerFreq); err != nil {
		return err
	}
	if err := f.dev.SetGain(f.gain); err != nil {
		return err
	}
	if err := f.dev.SetSampleRate(f.sampleRate); err != nil {
		return err
	}
	return f.dev.SetBandwidth(f.bandwidth)
}

// Status returns a snapshot of current parameters and the running flag.
func (f *Facade) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		Running:    f.running,
		CenterFreq: f.centerFreq,
		Gain:       f.gain,
		SampleRate: f.sampleRate,
		Bandwidth:  f.bandwidth,
		DropCount:  f.dropCount,
	}
}

// Probe verifies the underlying device is reachable without starting
// continuous production, opening and immediately closing it. A no-op that
// always succeeds while the façade is already running.
func (f *Facade) Probe() error {
	f.mu.Lock()
	running := f.running
	f.mu.Unlock()
	if running {
		return nil
	}
	if err := f.dev.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return f.dev.Close()
}

// Close stops the façade and releases all resources.
func (f *Facade) Close() error {
	return f.Stop()
}
