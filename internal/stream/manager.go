// Package stream is the streaming orchestrator: it owns the ingest queue,
// the DSP worker, the mode state machine, and fan-out to connected clients.
// Exactly one producer (the live receiver or a file playback reader) feeds
// the ingest queue at a time. The DSP worker reads frame parameters from the
// player in playback mode and from the receiver otherwise, and runs AGC only
// outside playback; it hands each encoded frame straight to the subscribers'
// channels.
package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cwsl/specengine/internal/agc"
	"github.com/cwsl/specengine/internal/config"
	"github.com/cwsl/specengine/internal/detect"
	"github.com/cwsl/specengine/internal/dsp"
	"github.com/cwsl/specengine/internal/metrics"
	"github.com/cwsl/specengine/internal/playback"
	"github.com/cwsl/specengine/internal/protocol"
	"github.com/cwsl/specengine/internal/receiver"
	"github.com/cwsl/specengine/internal/recorder"
	"github.com/cwsl/specengine/internal/signaldb"
	"github.com/cwsl/specengine/internal/sweep"
)

// Mode is the orchestrator's coarse operating state. Exactly one mode is
// active at a time; transitions are serialized by Manager.modeMu.
type Mode int

const (
	ModeIdle Mode = iota
	ModeLive
	ModePaused
	ModeSweep
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeLive:
		return "live"
	case ModePaused:
		return "paused"
	case ModeSweep:
		return "sweep"
	case ModePlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the orchestrator's aggregate state, serialized to
// clients on request.
type Status struct {
	Mode           string
	Receiver       receiver.Status
	IngestDepth    int
	ResultDepth    int
	ActiveClients  int
	TrackedSignals int
	IQRecording    bool
	SpecRecording  bool
	SweepActive    bool
}

// Manager wires the receiver, DSP pipeline, detector, AGC, recorders, and
// signal store together and fans out encoded wire frames to subscribers.
type Manager struct {
	cfg    *config.Config
	logger *log.Logger

	rx     *receiver.Facade
	player *playback.Player

	pipeline *dsp.Pipeline
	detector *detect.Detector
	agcCtl   *agc.AGC

	iqRec   *recorder.IQRecorder
	specRec *recorder.SpectrumRecorder
	store   *signaldb.Store
	metrics *metrics.Metrics

	ingestQueue chan []complex64

	modeMu   sync.Mutex
	mode     Mode
	cancel   context.CancelFunc
	workerWG sync.WaitGroup

	clientsMu sync.Mutex
	clients   map[uint64]chan []byte
	nextID    uint64

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
}

// New constructs a Manager. The signal store and metrics collector are
// optional (nil disables signal persistence / the orchestrator's metric
// updates).
func New(cfg *config.Config, rx *receiver.Facade, store *signaldb.Store, m *metrics.Metrics, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	pipeline, err := dsp.New(dsp.Params{
		FFTSize:         cfg.DSP.FFTSize,
		Window:          cfg.DSP.Window,
		DCRemoval:       cfg.DSP.DCRemoval,
		OverlapSave:     cfg.DSP.OverlapSave,
		AveragingMode:   cfg.DSP.AveragingMode,
		AveragingCount:  cfg.DSP.AveragingCount,
		AveragingAlpha:  cfg.DSP.AveragingAlpha,
		PeakHold:        cfg.DSP.PeakHold,
		PeakHoldDecayDB: cfg.DSP.PeakHoldDecayDB,
		DisplayBins:     cfg.DSP.DisplayBins,
	})
	if err != nil {
		return nil, fmt.Errorf("stream: building dsp pipeline: %w", err)
	}

	det := detect.New(detect.Params{
		ThresholdDB:        cfg.Detection.ThresholdDB,
		MinBandwidthBins:   cfg.Detection.MinBandwidthBins,
		MergeGapBins:       cfg.Detection.MergeGapBins,
		OverlapMatchRatio:  cfg.Detection.OverlapMatchRatio,
		UpdateInterval:     durationSeconds(cfg.Detection.UpdateInterval),
		PersistenceTimeout: durationSeconds(cfg.Detection.PersistenceTimeout),
		MaxTrackedSignals:  cfg.Detection.MaxTrackedSignals,
	})
	if cfg.Detection.Enabled {
		det.SetEnabled(true)
	}

	agcCtl := agc.New(agc.Params{
		Enabled:     cfg.AGC.Enabled,
		TargetDBFS:  cfg.AGC.TargetDBFS,
		Hysteresis:  cfg.AGC.Hysteresis,
		GainStep:    cfg.AGC.GainStep,
		MinGain:     cfg.AGC.MinGain,
		MaxGain:     cfg.AGC.MaxGain,
		MinInterval: durationSeconds(cfg.AGC.MinInterval),
	}, cfg.Receiver.Gain)

	iqRec := recorder.NewIQRecorder(cfg.Recording.StoragePath, cfg.Recording.MaxStorageBytes,
		cfg.Recording.IQBufferBytes, cfg.Recording.IQQueueSize, logger)
	specRec := recorder.NewSpectrumRecorder(cfg.Recording.StoragePath, cfg.Recording.SpectrumFlushRows, logger)

	queueDepth := maxInt(int(float64(cfg.Receiver.IngestQueueMS)/1000*cfg.Receiver.SampleRate/float64(cfg.DSP.FFTSize)), 16)

	return &Manager{
		cfg:         cfg,
		logger:      logger,
		rx:          rx,
		pipeline:    pipeline,
		detector:    det,
		agcCtl:      agcCtl,
		iqRec:       iqRec,
		specRec:     specRec,
		store:       store,
		metrics:     m,
		ingestQueue: make(chan []complex64, queueDepth),
		clients:     make(map[uint64]chan []byte),
	}, nil
}

func durationSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Mode reports the orchestrator's current mode.
func (m *Manager) Mode() Mode {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	return m.mode
}

// Subscribe registers a new client and returns its outbound frame channel
// and an unsubscribe function. Frames are dropped for a client whose
// channel is full rather than blocking the sender.
func (m *Manager) Subscribe(bufSize int) (ch <-chan []byte, unsubscribe func()) {
	m.clientsMu.Lock()
	id := m.nextID
	m.nextID++
	c := make(chan []byte, bufSize)
	m.clients[id] = c
	n := len(m.clients)
	m.clientsMu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveClients(n)
	}
	return c, func() {
		m.clientsMu.Lock()
		delete(m.clients, id)
		n := len(m.clients)
		m.clientsMu.Unlock()
		if m.metrics != nil {
			m.metrics.SetActiveClients(n)
		}
	}
}

func (m *Manager) broadcast(frame []byte) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	for _, c := range m.clients {
		select {
		case c <- frame:
		default:
			if m.metrics != nil {
				m.metrics.IncIngestDrops("broadcast")
			}
		}
	}
}

// StartLive transitions into live mode, starting the receiver façade as the
// ingest producer and the DSP worker loop.
func (m *Manager) StartLive(ctx context.Context) error {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	if m.mode == ModeLive {
		return nil
	}
	m.stopCurrentLocked()

	m.rx.SetChunkSize(m.cfg.DSP.FFTSize)
	if err := m.rx.Start(ctx, m.ingestQueue); err != nil {
		return fmt.Errorf("stream: starting receiver: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mode = ModeLive
	m.workerWG.Add(1)
	go m.dspWorker(runCtx)
	return nil
}

// StartPlayback transitions into playback mode, reading IQ from a recorded
// file instead of the live device.
func (m *Manager) StartPlayback(ctx context.Context, p *playback.Player) error {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	m.stopCurrentLocked()

	if err := p.Start(ctx, m.ingestQueue); err != nil {
		return fmt.Errorf("stream: starting playback: %w", err)
	}
	m.player = p
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mode = ModePlayback
	m.workerWG.Add(1)
	go m.dspWorker(runCtx)
	return nil
}

// Pause halts the ingest producer without tearing down client subscriptions.
func (m *Manager) Pause() error {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	if m.mode != ModeLive && m.mode != ModePlayback {
		return fmt.Errorf("stream: cannot pause from mode %s", m.mode)
	}
	m.stopCurrentLocked()
	m.mode = ModePaused
	return nil
}

// Resume leaves ModePaused, restarting live reception.
func (m *Manager) Resume(ctx context.Context) error {
	m.modeMu.Lock()
	wasPaused := m.mode == ModePaused
	m.modeMu.Unlock()
	if !wasPaused {
		return fmt.Errorf("stream: cannot resume from mode %s", m.Mode())
	}
	return m.StartLive(ctx)
}

// Stop returns to ModeIdle, tearing down whichever producer is active.
func (m *Manager) Stop() error {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	m.stopCurrentLocked()
	m.mode = ModeIdle
	return nil
}

// stopCurrentLocked tears down the active producer and worker goroutine.
// Caller must hold modeMu.
func (m *Manager) stopCurrentLocked() {
	switch m.mode {
	case ModeLive:
		m.rx.Stop()
	case ModePlayback:
		if m.player != nil {
			m.player.Stop()
			m.player = nil
		}
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.workerWG.Wait()
}

// dspWorker drains the ingest queue, runs each chunk through the pipeline,
// taps the recorders and detector, and broadcasts the encoded result.
func (m *Manager) dspWorker(ctx context.Context) {
	defer m.workerWG.Done()
	sessionLabel := "default"
	var lastEmit time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-m.ingestQueue:
			if !ok {
				return
			}
			m.iqRec.Put(chunk)

			result, err := m.pipeline.Process(chunk)
			if err != nil {
				m.logger.Printf("stream: dsp process error: %v", err)
				continue
			}

			now := time.Now()
			if fps := m.cfg.DSP.TargetFPS; fps > 0 && !lastEmit.IsZero() && now.Sub(lastEmit) < time.Duration(float64(time.Second)/fps) {
				continue // target FPS: skip emission
			}
			lastEmit = now
			var status receiver.Status
			if m.Mode() == ModePlayback {
				status = m.player.Status()
			} else {
				status = m.rx.Status()
				if gain, ok := m.agcCtl.Update(float64(result.PeakPower), now); ok {
					m.rx.SetGain(gain)
				}
			}

			m.specRec.Offer(recorder.SpectrumFrame{
				CenterFreq:     status.CenterFreq,
				SampleRate:     status.SampleRate,
				NoiseFloor:     result.NoiseFloor,
				PeakPower:      result.PeakPower,
				PeakFreqOffset: result.PeakFreqOffset,
				Bins:           result.Spectrum,
			}, now)

			events := m.detector.Detect(result.Spectrum, result.NoiseFloor, status.CenterFreq, status.SampleRate, now)
			m.handleDetectorEvents(events)

			if m.metrics != nil {
				m.metrics.ObserveNoiseFloor(sessionLabel, result.NoiseFloor)
				m.metrics.ObservePeakPower(sessionLabel, result.PeakPower)
				m.metrics.ObserveQueues(sessionLabel, len(m.ingestQueue), 0)
				m.metrics.SetTrackedSignals(m.detector.Status().TrackedCount)
			}

			frame, err := protocol.EncodeSpectrum(protocol.SpectrumFrame{
				CenterFreq:     status.CenterFreq,
				SampleRate:     status.SampleRate,
				Bandwidth:      status.Bandwidth,
				Gain:           float32(status.Gain),
				FFTSize:        uint32(m.cfg.DSP.FFTSize),
				NumBins:        uint32(len(result.Spectrum)),
				NoiseFloor:     result.NoiseFloor,
				PeakPower:      result.PeakPower,
				PeakFreqOffset: result.PeakFreqOffset,
				Timestamp:      float64(now.UnixNano()) / 1e9,
				Spectrum:       result.Spectrum,
				PeakHold:       result.PeakHold,
			})
			if err != nil {
				m.logger.Printf("stream: encode error: %v", err)
				continue
			}
			m.broadcast(frame)
		}
	}
}

func (m *Manager) handleDetectorEvents(events []detect.Event) {
	if m.store == nil {
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case detect.SignalLost:
			if err := m.store.MarkLost(ev.Signal.CenterFreq, ev.Signal.LastSeen); err != nil {
				m.logger.Printf("stream: marking signal lost: %v", err)
			}
		default:
			// Each event represents one hit regardless of the detector's own
			// in-memory HitCount, which resets whenever a drifted signal
			// reacquires under a new tracked ID; UpsertSignal accumulates
			// the true hit_count on whichever row matches by frequency.
			rec := signaldb.Record{
				ID:             signalID(ev.Signal.ID),
				CenterFreq:     ev.Signal.CenterFreq,
				PeakFreq:       ev.Signal.PeakFreq,
				Bandwidth:      ev.Signal.Bandwidth,
				PeakPower:      float64(ev.Signal.PeakPower),
				AvgPower:       float64(ev.Signal.AvgPower),
				Classification: ev.Signal.Classification,
				Notes:          ev.Signal.Notes,
				FirstSeen:      ev.Signal.FirstSeen,
				LastSeen:       ev.Signal.LastSeen,
				HitCount:       1,
			}
			if err := m.store.UpsertSignal(rec); err != nil {
				m.logger.Printf("stream: upserting signal: %v", err)
			}
		}
	}
}

func signalID(id uint64) string {
	return fmt.Sprintf("sig-%d", id)
}

// RunSweep performs one blocking frequency sweep pass across [freqStart,
// freqEnd], retuning the receiver for each step, discarding SettleChunks
// chunks after each retune, averaging AveragesPerStep chunks per step, and
// stitching the result into a panorama broadcast as sweep segment frames
// followed by a final panorama frame. Only one sweep runs at a time. Any
// live or playback session is stopped before the sweep starts and is not
// restarted afterwards: the orchestrator is left in ModeIdle. The receiver's
// pre-sweep sample rate is restored when the sweep returns.
func (m *Manager) RunSweep(ctx context.Context, freqStart, freqEnd float64, sweepID uint32) error {
	m.sweepMu.Lock()
	if m.sweepCancel != nil {
		m.sweepMu.Unlock()
		return fmt.Errorf("stream: a sweep is already in progress")
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	m.sweepCancel = cancel
	m.sweepMu.Unlock()
	defer func() {
		m.sweepMu.Lock()
		m.sweepCancel = nil
		m.sweepMu.Unlock()
	}()

	m.modeMu.Lock()
	m.stopCurrentLocked()
	m.mode = ModeSweep
	m.modeMu.Unlock()
	defer func() {
		m.modeMu.Lock()
		m.mode = ModeIdle
		m.modeMu.Unlock()
	}()

	started := time.Now()

	steps := sweep.ComputeStepFrequencies(freqStart, freqEnd, m.cfg.Sweep.SampleRate,
		m.cfg.Sweep.UsableFraction, m.cfg.Receiver.MinFreq, m.cfg.Receiver.MaxFreq)

	stitcher := sweep.NewStitcher(m.cfg.Sweep.FFTSize, len(steps), m.cfg.Sweep.SampleRate,
		m.cfg.Sweep.UsableFraction, steps)

	sweepPipeline, err := dsp.New(dsp.Params{
		FFTSize:         m.cfg.Sweep.FFTSize,
		Window:          dsp.WindowBlackmanHarris,
		DCRemoval:       true,
		OverlapSave:     false,
		AveragingMode:   dsp.AveragingLinear,
		AveragingCount:  m.cfg.Sweep.AveragesPerStep,
		PeakHold:        false,
		DisplayBins:     m.cfg.Sweep.FFTSize,
	})
	if err != nil {
		return fmt.Errorf("stream: building sweep pipeline: %w", err)
	}

	sweepQueue := make(chan []complex64, m.cfg.Sweep.AveragesPerStep+m.cfg.Sweep.SettleChunks+2)
	prevSampleRate := m.rx.Status().SampleRate
	defer m.rx.SetSampleRate(prevSampleRate)
	m.rx.SetSampleRate(m.cfg.Sweep.SampleRate)
	m.rx.SetChunkSize(m.cfg.Sweep.FFTSize)

	for i, centerFreq := range steps {
		select {
		case <-sweepCtx.Done():
			return sweepCtx.Err()
		default:
		}

		m.rx.SetFrequency(centerFreq)
		sweepPipeline.Reset()

		producerCtx, stopProducer := context.WithCancel(sweepCtx)
		if err := m.rx.Start(producerCtx, sweepQueue); err != nil {
			stopProducer()
			return fmt.Errorf("stream: retuning for sweep step %d: %w", i, err)
		}

		var lastResult dsp.Result
		received := 0
		target := m.cfg.Sweep.SettleChunks + m.cfg.Sweep.AveragesPerStep
		for received < target {
			select {
			case chunk := <-sweepQueue:
				received++
				if received <= m.cfg.Sweep.SettleChunks {
					continue // discard settling chunks after retune
				}
				lastResult, _ = sweepPipeline.Process(chunk)
			case <-sweepCtx.Done():
				m.rx.Stop()
				stopProducer()
				return sweepCtx.Err()
			}
		}
		m.rx.Stop()
		stopProducer()

		spectrumF64 := make([]float64, len(lastResult.Spectrum))
		for j, v := range lastResult.Spectrum {
			spectrumF64[j] = float64(v)
		}
		stitcher.AddSegment(i, spectrumF64)

		segSpec, _ := stitcher.GetDisplayPanorama(m.cfg.Sweep.DisplayBins)
		segFrame, err := protocol.EncodeSweepSegment(protocol.SweepSegmentFrame{
			SweepID:       sweepID,
			SegmentIdx:    uint16(i),
			TotalSegments: uint16(len(steps)),
			FreqStart:     freqStart,
			FreqEnd:       freqEnd,
			SweepStart:    centerFreq - m.cfg.Sweep.SampleRate/2,
			SweepEnd:      centerFreq + m.cfg.Sweep.SampleRate/2,
			NumBins:       uint32(len(segSpec)),
			Spectrum:      segSpec,
		})
		if err == nil {
			m.broadcast(segFrame)
		}
	}

	finalSpec, _ := stitcher.GetDisplayPanorama(m.cfg.Sweep.DisplayBins)
	panoFrame, err := protocol.EncodeSweepPanorama(protocol.SweepPanoramaFrame{
		SweepID:     sweepID,
		SweepMode:   0,
		FreqStart:   freqStart,
		FreqEnd:     freqEnd,
		NumBins:     uint32(len(finalSpec)),
		SweepTimeMS: float32(time.Since(started).Milliseconds()),
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		Spectrum:    finalSpec,
	})
	if err == nil {
		m.broadcast(panoFrame)
	}
	if m.metrics != nil {
		m.metrics.SetSweepDuration(time.Since(started))
	}
	return nil
}

// StopSweep cancels an in-progress sweep, if any.
func (m *Manager) StopSweep() {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()
	if m.sweepCancel != nil {
		m.sweepCancel()
	}
}

// ApplyDSPParams forwards a live parameter change to the pipeline.
func (m *Manager) ApplyDSPParams(p dsp.SetParam) error {
	return m.pipeline.Apply(p)
}

// SetDetectorEnabled toggles signal detection.
func (m *Manager) SetDetectorEnabled(enabled bool) {
	events := m.detector.SetEnabled(enabled)
	m.handleDetectorEvents(events)
}

// SetDetectorParams updates detector thresholds and tracking behavior.
func (m *Manager) SetDetectorParams(p detect.Params) {
	m.detector.SetParams(p)
}

// SetAGCParams updates AGC controller behavior.
func (m *Manager) SetAGCParams(p agc.Params) {
	m.agcCtl.SetParams(p)
}

// StartIQRecording begins recording raw IQ to disk.
func (m *Manager) StartIQRecording() (string, error) {
	status := m.rx.Status()
	return m.iqRec.Start(status.SampleRate, status.CenterFreq, status.Bandwidth, status.Gain, m.cfg.DSP.FFTSize, time.Now())
}

// StopIQRecording finalizes the active IQ recording.
func (m *Manager) StopIQRecording() string {
	return m.iqRec.Stop(time.Now())
}

// StartSpectrumRecording begins logging spectrum frames to CSV.
func (m *Manager) StartSpectrumRecording() (string, error) {
	return m.specRec.Start(time.Now())
}

// StopSpectrumRecording finalizes the active spectrum recording.
func (m *Manager) StopSpectrumRecording() string {
	return m.specRec.Stop()
}

// PlaybackPause pauses the active playback reader, if any.
func (m *Manager) PlaybackPause() {
	if p := m.activePlayer(); p != nil {
		p.Pause()
	}
}

// PlaybackResume resumes the active playback reader, if any.
func (m *Manager) PlaybackResume() {
	if p := m.activePlayer(); p != nil {
		p.Resume()
	}
}

// PlaybackSetSpeed adjusts the active playback reader's rate.
func (m *Manager) PlaybackSetSpeed(speed float64) error {
	p := m.activePlayer()
	if p == nil {
		return fmt.Errorf("stream: no playback in progress")
	}
	return p.SetSpeed(speed)
}

// PlaybackSetLoop toggles loop-on-EOF for the active playback reader.
func (m *Manager) PlaybackSetLoop(loop bool) {
	if p := m.activePlayer(); p != nil {
		p.SetLoop(loop)
	}
}

// PlaybackSeek moves the active playback reader to the given offset.
func (m *Manager) PlaybackSeek(seconds float64) error {
	p := m.activePlayer()
	if p == nil {
		return fmt.Errorf("stream: no playback in progress")
	}
	p.Seek(seconds)
	return nil
}

func (m *Manager) activePlayer() *playback.Player {
	m.modeMu.Lock()
	defer m.modeMu.Unlock()
	return m.player
}

// SetFrequency retunes the receiver; while it is not streaming the value is
// cached for its next start.
func (m *Manager) SetFrequency(hz float64) bool { return m.rx.SetFrequency(hz) }

// SetGain sets the receiver's gain and resynchronizes the AGC controller.
func (m *Manager) SetGain(db float64) bool {
	ok := m.rx.SetGain(db)
	if ok {
		m.agcCtl.SetCurrentGain(db)
	}
	return ok
}

// SetBandwidth sets the receiver's bandwidth.
func (m *Manager) SetBandwidth(hz float64) bool { return m.rx.SetBandwidth(hz) }

// SetSampleRate sets the receiver's sample rate.
func (m *Manager) SetSampleRate(hz float64) bool { return m.rx.SetSampleRate(hz) }

// SetFFTSize rebuilds the DSP pipeline for a new FFT size and resizes the
// receiver's per-chunk read length to match. It is rejected while streaming
// (any mode other than Idle or Paused).
func (m *Manager) SetFFTSize(n int) error {
	if mode := m.Mode(); mode != ModeIdle && mode != ModePaused {
		return fmt.Errorf("stream: cannot change fft size in mode %s", mode)
	}
	if err := m.pipeline.SetFFTSize(n); err != nil {
		return fmt.Errorf("stream: setting fft size: %w", err)
	}
	m.cfg.DSP.FFTSize = n
	m.rx.SetChunkSize(n)
	return nil
}

// CheckDevice probes the receiver for reachability without disrupting an
// in-progress live or playback session.
func (m *Manager) CheckDevice() error {
	return m.rx.Probe()
}

// SweepStatus reports whether a sweep is currently in progress.
func (m *Manager) SweepStatus() SweepStatus {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()
	return SweepStatus{Active: m.sweepCancel != nil}
}

// DetectionStatus reports the detector's enabled state, tracked-signal
// count, and active parameters.
func (m *Manager) DetectionStatus() detect.Status {
	return m.detector.Status()
}

// SignalList returns persisted signals, optionally filtered to active ones.
func (m *Manager) SignalList(activeOnly bool) ([]signaldb.Record, error) {
	if m.store == nil {
		return nil, fmt.Errorf("stream: signal store not configured")
	}
	return m.store.GetSignals(activeOnly)
}

// SignalClassify sets the classification and notes for a persisted signal.
func (m *Manager) SignalClassify(id, classification, notes string) error {
	if m.store == nil {
		return fmt.Errorf("stream: signal store not configured")
	}
	return m.store.ClassifySignal(id, classification, notes)
}

// SignalDelete removes a persisted signal row entirely.
func (m *Manager) SignalDelete(id string) error {
	if m.store == nil {
		return fmt.Errorf("stream: signal store not configured")
	}
	return m.store.DeleteSignal(id)
}

// SignalDBStats summarizes the signal store's contents.
func (m *Manager) SignalDBStats() (signaldb.Stats, error) {
	if m.store == nil {
		return signaldb.Stats{}, fmt.Errorf("stream: signal store not configured")
	}
	return m.store.GetStats()
}

// RecordingList lists files under the recording storage path.
func (m *Manager) RecordingList() ([]recorder.RecordingInfo, error) {
	return recorder.ListRecordings(m.cfg.Recording.StoragePath)
}

// RecordingDelete removes one file under the recording storage path by name.
func (m *Manager) RecordingDelete(name string) error {
	return recorder.DeleteRecording(m.cfg.Recording.StoragePath, name)
}

// RecordingStatus reports the IQ and spectrum recorders' current state.
func (m *Manager) RecordingStatus() RecordingStatus {
	now := time.Now()
	return RecordingStatus{
		IQ:       m.iqRec.Status(now),
		Spectrum: m.specRec.IsRecording(),
	}
}

// SweepStatus is a snapshot of the sweep subsystem's activity.
type SweepStatus struct {
	Active bool
}

// RecordingStatus aggregates both recorders' state for a single status reply.
type RecordingStatus struct {
	IQ       recorder.IQStatus
	Spectrum bool
}

// Status aggregates current orchestrator and subsystem state.
func (m *Manager) Status() Status {
	m.clientsMu.Lock()
	nClients := len(m.clients)
	m.clientsMu.Unlock()

	m.sweepMu.Lock()
	sweepActive := m.sweepCancel != nil
	m.sweepMu.Unlock()

	now := time.Now()
	return Status{
		Mode:          m.Mode().String(),
		Receiver:      m.rx.Status(),
		IngestDepth:   len(m.ingestQueue),
		ActiveClients: nClients,
		TrackedSignals: m.detector.Status().TrackedCount,
		IQRecording:   m.iqRec.Status(now).Recording,
		SpecRecording: m.specRec.IsRecording(),
		SweepActive:   sweepActive,
	}
}
