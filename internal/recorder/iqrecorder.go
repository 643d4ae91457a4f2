// Package recorder implements buffered IQ and spectrum recording to disk.
//
// IQRecorder runs a dedicated writer goroutine reading from a bounded
// channel and writing to disk with buffered I/O; it never blocks the DSP
// worker. Output is a tightly-packed complex64 .raw file plus a .json
// metadata sidecar.
package recorder

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Metadata is the JSON sidecar written alongside a raw IQ recording.
type Metadata struct {
	Filename        string  `json:"filename"`
	Format          string  `json:"format"`
	SampleRate      float64 `json:"sample_rate"`
	CenterFreq      float64 `json:"center_freq"`
	Bandwidth       float64 `json:"bandwidth"`
	Gain            float64 `json:"gain"`
	FFTSize         int     `json:"fft_size"`
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	TotalSamples    int64   `json:"total_samples"`
	TotalBytes      int64   `json:"total_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// IQStatus reports the recorder's live state.
type IQStatus struct {
	Recording     bool
	BytesWritten  int64
	SamplesWritten int64
	Duration      float64
	Filename      string
}

// IQRecorder is a buffered IQ writer with a dedicated writer goroutine.
type IQRecorder struct {
	storagePath     string
	maxStorageBytes int64
	bufferBytes     int
	queueSize       int
	logger          *log.Logger

	mu        sync.Mutex
	recording bool
	meta      *Metadata
	file      *os.File
	writer    *bufio.Writer
	metaPath  string
	bytesWritten int64
	samplesWritten int64
	initialUsage int64

	stopTime     time.Time
	lastFilename string

	queue chan []complex64
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewIQRecorder creates a recorder rooted at storagePath.
func NewIQRecorder(storagePath string, maxStorageBytes int64, bufferBytes, queueSize int, logger *log.Logger) *IQRecorder {
	if logger == nil {
		logger = log.Default()
	}
	os.MkdirAll(storagePath, 0o755)
	return &IQRecorder{
		storagePath:     storagePath,
		maxStorageBytes: maxStorageBytes,
		bufferBytes:     bufferBytes,
		queueSize:       queueSize,
		logger:          logger,
	}
}

// IsRecording reports whether a recording is currently active.
func (r *IQRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins recording, returning the base filename (without extension)
// or an error if storage limits are already exceeded or the file cannot be
// opened.
func (r *IQRecorder) Start(sampleRate, centerFreq, bandwidth, gain float64, fftSize int, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return "", fmt.Errorf("recorder: already recording")
	}

	ts := now.Format("20060102_150405")
	freqMHz := centerFreq / 1e6
	baseName := fmt.Sprintf("iq_%s_%.3fMHz", ts, freqMHz)
	rawPath := filepath.Join(r.storagePath, baseName+".raw")
	metaPath := filepath.Join(r.storagePath, baseName+".json")

	usage, err := storageUsage(r.storagePath)
	if err != nil {
		r.logger.Printf("recorder: could not compute storage usage: %v", err)
	}
	if usage >= r.maxStorageBytes {
		return "", fmt.Errorf("recorder: storage limit reached: %d / %d bytes", usage, r.maxStorageBytes)
	}
	r.initialUsage = usage

	f, err := os.Create(rawPath)
	if err != nil {
		return "", fmt.Errorf("recorder: opening recording file: %w", err)
	}

	r.meta = &Metadata{
		Filename:   baseName,
		Format:     "complex64",
		SampleRate: sampleRate,
		CenterFreq: centerFreq,
		Bandwidth:  bandwidth,
		Gain:       gain,
		FFTSize:    fftSize,
		StartTime:  float64(now.UnixNano()) / 1e9,
	}
	r.file = f
	r.writer = bufio.NewWriterSize(f, r.bufferBytes)
	r.metaPath = metaPath
	r.bytesWritten = 0
	r.samplesWritten = 0

	r.queue = make(chan []complex64, r.queueSize)
	r.done = make(chan struct{})
	r.recording = true

	r.wg.Add(1)
	go r.writerLoop()

	r.logger.Printf("recorder: IQ recording started: %s (%.3f MHz, %.2f MS/s)", baseName, freqMHz, sampleRate/1e6)
	return baseName, nil
}

// Put submits an IQ chunk for recording. Non-blocking: drops if the queue
// is full rather than stalling the DSP worker.
func (r *IQRecorder) Put(chunk []complex64) {
	r.mu.Lock()
	recording := r.recording
	q := r.queue
	r.mu.Unlock()
	if !recording || q == nil {
		return
	}
	select {
	case q <- chunk:
	default:
	}
}

// Stop requests that the active recording finalize, blocks until the writer
// goroutine has flushed and closed the file and written the sidecar
// metadata, and returns the base filename.
func (r *IQRecorder) Stop(now time.Time) string {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ""
	}
	r.recording = false
	r.stopTime = now
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFilename
}

func (r *IQRecorder) writerLoop() {
	defer r.wg.Done()
loop:
	for {
		select {
		case chunk := <-r.queue:
			r.writeChunk(chunk)
		case <-r.done:
			// drain remaining queued chunks before finalizing
			for {
				select {
				case chunk := <-r.queue:
					r.writeChunk(chunk)
				default:
					break loop
				}
			}
		}
	}
	r.finalize()
}

// finalize flushes and closes the recording file and writes the sidecar
// metadata. Called exactly once, from writerLoop, on every exit path
// (explicit Stop or the storage-limit auto-stop in writeChunk) so both
// paths leave a closed, fully-described recording on disk.
func (r *IQRecorder) finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.writer != nil {
		r.writer.Flush()
	}
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	now := r.stopTime
	if now.IsZero() {
		now = time.Now()
	}

	r.lastFilename = ""
	if r.meta != nil {
		r.meta.EndTime = float64(now.UnixNano()) / 1e9
		r.meta.TotalSamples = r.samplesWritten
		r.meta.TotalBytes = r.bytesWritten
		r.meta.DurationSeconds = r.meta.EndTime - r.meta.StartTime
		r.lastFilename = r.meta.Filename

		data, err := json.MarshalIndent(r.meta, "", "  ")
		if err != nil {
			r.logger.Printf("recorder: marshaling metadata: %v", err)
		} else if err := os.WriteFile(r.metaPath, data, 0o644); err != nil {
			r.logger.Printf("recorder: writing metadata: %v", err)
		}
		r.logger.Printf("recorder: IQ recording stopped: %s (%d samples, %d bytes, %.1fs)",
			r.lastFilename, r.samplesWritten, r.bytesWritten, r.meta.DurationSeconds)
	}
	r.meta = nil
}

func (r *IQRecorder) writeChunk(chunk []complex64) {
	buf := make([]byte, 8*len(chunk))
	for i, s := range chunk {
		binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(imag(s)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return
	}
	n, err := r.writer.Write(buf)
	if err != nil {
		r.logger.Printf("recorder: write error: %v", err)
		return
	}
	r.bytesWritten += int64(n)
	r.samplesWritten += int64(len(chunk))

	if r.recording && r.bytesWritten+r.initialUsage >= r.maxStorageBytes {
		r.logger.Printf("recorder: storage limit reached, auto-stopping recording")
		r.recording = false
		r.stopTime = time.Now()
		close(r.done)
	}
}

// Status returns the recorder's current state.
func (r *IQRecorder) Status(now time.Time) IQStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := IQStatus{
		Recording:      r.recording,
		BytesWritten:   r.bytesWritten,
		SamplesWritten: r.samplesWritten,
	}
	if r.meta != nil {
		s.Duration = float64(now.UnixNano())/1e9 - r.meta.StartTime
		s.Filename = r.meta.Filename
	}
	return s
}

func storageUsage(path string) (int64, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
