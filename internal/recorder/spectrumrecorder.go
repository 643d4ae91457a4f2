package recorder

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// SpectrumFrame is the subset of a DSP result the spectrum recorder writes.
type SpectrumFrame struct {
	CenterFreq     float64
	SampleRate     float64
	NoiseFloor     float32
	PeakPower      float32
	PeakFreqOffset float32
	Bins           []float32
}

// SpectrumRecorder writes one CSV row per captured frame, throttled to
// ~1 Hz, flushing every flushRows rows.
type SpectrumRecorder struct {
	storagePath string
	flushRows   int
	logger      *log.Logger

	mu          sync.Mutex
	recording   bool
	file        *os.File
	csv         *csv.Writer
	rowsSinceFlush int
	lastWriteAt time.Time
	filename    string
}

// NewSpectrumRecorder creates a recorder rooted at storagePath.
func NewSpectrumRecorder(storagePath string, flushRows int, logger *log.Logger) *SpectrumRecorder {
	if logger == nil {
		logger = log.Default()
	}
	os.MkdirAll(storagePath, 0o755)
	return &SpectrumRecorder{storagePath: storagePath, flushRows: flushRows, logger: logger}
}

// Start opens a new CSV file with the fixed header row.
func (r *SpectrumRecorder) Start(now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return "", fmt.Errorf("spectrum recorder: already recording")
	}
	name := fmt.Sprintf("spectrum_%s.csv", now.Format("20060102_150405"))
	path := r.storagePath + "/" + name
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("spectrum recorder: opening file: %w", err)
	}
	w := csv.NewWriter(f)
	header := []string{"timestamp", "center_freq", "sample_rate", "noise_floor", "peak_power", "peak_freq_offset"}
	if err := w.Write(header); err != nil {
		f.Close()
		return "", fmt.Errorf("spectrum recorder: writing header: %w", err)
	}
	r.file = f
	r.csv = w
	r.rowsSinceFlush = 0
	r.filename = name
	r.recording = true
	return name, nil
}

// Offer writes one row if at least 1 second has elapsed since the last
// write; the recorder internally throttles, so callers may call this on
// every DSP frame.
func (r *SpectrumRecorder) Offer(f SpectrumFrame, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	if !r.lastWriteAt.IsZero() && now.Sub(r.lastWriteAt) < time.Second {
		return
	}
	r.lastWriteAt = now

	row := make([]string, 0, 6+len(f.Bins))
	row = append(row,
		fmt.Sprintf("%.6f", float64(now.UnixNano())/1e9),
		fmt.Sprintf("%.1f", f.CenterFreq),
		fmt.Sprintf("%.1f", f.SampleRate),
		fmt.Sprintf("%.2f", f.NoiseFloor),
		fmt.Sprintf("%.2f", f.PeakPower),
		fmt.Sprintf("%.4f", f.PeakFreqOffset),
	)
	for _, b := range f.Bins {
		row = append(row, fmt.Sprintf("%.2f", b))
	}
	if err := r.csv.Write(row); err != nil {
		r.logger.Printf("spectrum recorder: write error: %v", err)
		return
	}
	r.rowsSinceFlush++
	if r.rowsSinceFlush >= r.flushRows {
		r.csv.Flush()
		r.rowsSinceFlush = 0
	}
}

// Stop flushes, closes, and returns the recorded filename.
func (r *SpectrumRecorder) Stop() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ""
	}
	r.recording = false
	if r.csv != nil {
		r.csv.Flush()
	}
	if r.file != nil {
		r.file.Close()
	}
	name := r.filename
	r.file, r.csv, r.filename = nil, nil, ""
	return name
}

// IsRecording reports whether a spectrum recording is active.
func (r *SpectrumRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
