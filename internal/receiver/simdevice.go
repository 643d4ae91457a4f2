package receiver

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimDevice is a software-only Device that synthesizes IQ samples: a tone at
// a fixed offset from the tuned center frequency, scaled by the configured
// gain, plus Gaussian noise of fixed amplitude. It exists so the engine can be exercised and
// demonstrated without real RF hardware attached; production deployments
// wire a real Device in its place.
type SimDevice struct {
	mu         sync.Mutex
	centerFreq float64
	gain       float64
	sampleRate float64
	bandwidth  float64
	rng        *rand.Rand
	phase      float64
}

// NewSimDevice creates a synthetic device seeded deterministically.
func NewSimDevice(seed int64) *SimDevice {
	return &SimDevice{rng: rand.New(rand.NewSource(seed))}
}

func (d *SimDevice) Open() error  { return nil }
func (d *SimDevice) Close() error { return nil }

func (d *SimDevice) SetFrequency(hz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.centerFreq = hz
	return nil
}

func (d *SimDevice) SetGain(db float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gain = db
	return nil
}

func (d *SimDevice) SetSampleRate(hz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sampleRate = hz
	return nil
}

func (d *SimDevice) SetBandwidth(hz float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bandwidth = hz
	return nil
}

// ReadChunk synthesizes n complex samples, pacing itself to roughly the
// configured sample rate so a simulated run behaves like a real feed.
func (d *SimDevice) ReadChunk(ctx context.Context, n int) ([]complex64, error) {
	d.mu.Lock()
	sr := d.sampleRate
	gainLinear := math.Pow(10, d.gain/20)
	toneOffsetHz := sr * 0.1
	d.mu.Unlock()

	if sr <= 0 {
		sr = 2e6
	}
	pace := time.Duration(float64(n) / sr * float64(time.Second))

	select {
	case <-time.After(pace):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	chunk := make([]complex64, n)
	step := 2 * math.Pi * toneOffsetHz / sr
	for i := 0; i < n; i++ {
		tone := complex(math.Cos(d.phase), math.Sin(d.phase)) * complex(0.2*gainLinear, 0)
		noise := complex(d.rng.NormFloat64(), d.rng.NormFloat64()) * complex(0.01, 0)
		chunk[i] = complex64(tone + noise)
		d.phase += step
	}
	return chunk, nil
}

var _ Device = (*SimDevice)(nil)
