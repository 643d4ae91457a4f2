// Package playback replays a recorded IQ file through the ingest queue,
// implementing the same receiver.IQSource contract as the live device so
// the orchestrator never branches on which producer is active.
package playback

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/cwsl/specengine/internal/receiver"
)

// Metadata mirrors the recorder's sidecar JSON.
type Metadata struct {
	Filename     string  `json:"filename"`
	SampleRate   float64 `json:"sample_rate"`
	CenterFreq   float64 `json:"center_freq"`
	Bandwidth    float64 `json:"bandwidth"`
	Gain         float64 `json:"gain"`
	FFTSize      int     `json:"fft_size"`
	TotalSamples int64   `json:"total_samples"`
}

// PlaybackStatus reports the player's full state, beyond what the shared
// receiver.IQSource.Status contract exposes.
type PlaybackStatus struct {
	Playing      bool
	Paused       bool
	Speed        float64
	Loop         bool
	PositionSecs float64
	DurationSecs float64
	Complete     bool
}

// ErrSpeedOutOfRange is returned by SetSpeed for values outside [0.1, 10.0].
var ErrSpeedOutOfRange = errors.New("playback: speed must be in [0.1, 10.0]")

// Player reads a .raw/.json recording pair and feeds it into an ingest
// queue at the pace the recording was sampled, scaled by Speed.
type Player struct {
	meta     Metadata
	path     string
	file     *os.File
	logger   *log.Logger

	mu         sync.Mutex
	speed      float64
	loop       bool
	paused     bool
	posSamples int64
	playing    bool
	complete   bool

	pauseCh chan struct{} // closed while NOT paused; recreated on pause
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open loads the sidecar metadata and opens the raw file for reading.
func Open(rawPath, metaPath string, logger *log.Logger) (*Player, error) {
	if logger == nil {
		logger = log.Default()
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("playback: reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("playback: parsing metadata: %w", err)
	}
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("playback: opening raw file: %w", err)
	}
	p := &Player{
		meta:    meta,
		path:    rawPath,
		file:    f,
		logger:  logger,
		speed:   1.0,
		pauseCh: closedChan(),
	}
	return p, nil
}

// Start begins feeding chunks into queue on a dedicated goroutine,
// implementing receiver.IQSource.
func (p *Player) Start(ctx context.Context, queue chan<- []complex64) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.playing = true
	p.complete = false
	p.mu.Unlock()

	p.wg.Add(1)
	go p.feedLoop(runCtx, queue)
	return nil
}

func (p *Player) feedLoop(ctx context.Context, queue chan<- []complex64) {
	defer p.wg.Done()
	chunkSize := p.meta.FFTSize
	chunkBytes := chunkSize * 8
	buf := make([]byte, chunkBytes)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.mu.Lock()
		pauseGate := p.pauseCh
		p.mu.Unlock()
		select {
		case <-pauseGate:
		case <-ctx.Done():
			return
		}

		p.mu.Lock()
		_, err := p.file.Seek(p.posSamples*8, io.SeekStart)
		if err == nil {
			_, err = io.ReadFull(p.file, buf)
		}
		p.mu.Unlock()

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.mu.Lock()
				loop := p.loop
				if loop {
					p.posSamples = 0
				} else {
					p.playing = false
					p.complete = true
				}
				p.mu.Unlock()
				if loop {
					continue
				}
				return
			}
			p.logger.Printf("playback: read error: %v", err)
			return
		}

		chunk := make([]complex64, chunkSize)
		for i := 0; i < chunkSize; i++ {
			re := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8+4:]))
			chunk[i] = complex(re, im)
		}

		select {
		case queue <- chunk:
		default:
			// drop-on-full, matching the live producer's discipline
		}

		p.mu.Lock()
		p.posSamples += int64(chunkSize)
		speed := p.speed
		p.mu.Unlock()

		pace := time.Duration(float64(chunkSize) / p.meta.SampleRate / speed * float64(time.Second))
		select {
		case <-time.After(pace):
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts playback and waits for the feed goroutine to exit.
func (p *Player) Stop() error {
	p.mu.Lock()
	if !p.playing && !p.complete {
		p.mu.Unlock()
		return nil
	}
	playing := p.playing
	cancel := p.cancel
	p.playing = false
	p.mu.Unlock()

	if playing && cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return p.file.Close()
}

// Pause blocks the feed goroutine until Resume is called.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.pauseCh = make(chan struct{})
}

// Resume unblocks a paused feed goroutine.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.pauseCh)
}

// SetSpeed changes the playback rate; must be in [0.1, 10.0].
func (p *Player) SetSpeed(speed float64) error {
	if speed < 0.1 || speed > 10.0 {
		return ErrSpeedOutOfRange
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = speed
	return nil
}

// SetLoop toggles loop-on-EOF behavior.
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = loop
}

// Seek moves playback to the given offset in seconds, aligned to a chunk
// boundary. Mutates file position and playback position under the same
// lock as the feed loop's read, preventing a torn read.
func (p *Player) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	chunkSize := int64(p.meta.FFTSize)
	sampleOffset := int64(seconds * p.meta.SampleRate)
	aligned := (sampleOffset / chunkSize) * chunkSize
	if aligned < 0 {
		aligned = 0
	}
	p.posSamples = aligned
	p.complete = false
}

// Status implements receiver.IQSource, reporting playback as a pseudo-device
// tuned to the recording's captured parameters.
func (p *Player) Status() receiver.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return receiver.Status{
		Running:    p.playing,
		CenterFreq: p.meta.CenterFreq,
		Gain:       p.meta.Gain,
		SampleRate: p.meta.SampleRate,
		Bandwidth:  p.meta.Bandwidth,
	}
}

// PlaybackStatus reports playback-specific state not covered by Status.
func (p *Player) PlaybackStatus() PlaybackStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	duration := float64(p.meta.TotalSamples) / p.meta.SampleRate
	return PlaybackStatus{
		Playing:      p.playing,
		Paused:       p.paused,
		Speed:        p.speed,
		Loop:         p.loop,
		PositionSecs: float64(p.posSamples) / p.meta.SampleRate,
		DurationSecs: duration,
		Complete:     p.complete,
	}
}

var _ receiver.IQSource = (*Player)(nil)

// Meta returns the recording's sidecar metadata.
func (p *Player) Meta() Metadata {
	return p.meta
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
