// Package config loads and validates the spectrum engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	SchemaVersion string          `yaml:"schema_version"`
	Receiver      ReceiverConfig  `yaml:"receiver"`
	DSP           DSPConfig       `yaml:"dsp"`
	Sweep         SweepConfig     `yaml:"sweep"`
	Detection     DetectionConfig `yaml:"detection"`
	AGC           AGCConfig       `yaml:"agc"`
	Recording     RecordingConfig `yaml:"recording"`
	Streaming     StreamingConfig `yaml:"streaming"`
	SignalStore   SignalStoreConfig `yaml:"signal_store"`
}

// ReceiverConfig describes the tunable device's default parameters and limits.
type ReceiverConfig struct {
	CenterFreq    float64 `yaml:"center_freq"`    // Hz
	SampleRate    float64 `yaml:"sample_rate"`    // Hz
	Bandwidth     float64 `yaml:"bandwidth"`      // Hz
	Gain          float64 `yaml:"gain"`           // dB
	MinFreq       float64 `yaml:"min_freq"`       // Hz, device-permitted range
	MaxFreq       float64 `yaml:"max_freq"`       // Hz
	IngestQueueMS int     `yaml:"ingest_queue_ms"` // approximate queue capacity in ms of data
}

// DSPConfig holds default DSP pipeline parameters.
type DSPConfig struct {
	FFTSize          int     `yaml:"fft_size"`
	Window           string  `yaml:"window"` // hanning|hamming|blackman|blackman-harris|flat-top|kaiser6|kaiser10|kaiser14|rectangular
	DCRemoval        bool    `yaml:"dc_removal"`
	OverlapSave      bool    `yaml:"overlap_save"`
	AveragingMode    string  `yaml:"averaging_mode"` // none|linear|exponential
	AveragingCount   int     `yaml:"averaging_count"`
	AveragingAlpha   float64 `yaml:"averaging_alpha"`
	PeakHold         bool    `yaml:"peak_hold"`
	PeakHoldDecayDB  float64 `yaml:"peak_hold_decay_db"`
	DisplayBins      int     `yaml:"display_bins"`
	TargetFPS        float64 `yaml:"target_fps"`
}

// SweepConfig holds default parameters for the sweep engine.
type SweepConfig struct {
	UsableFraction   float64 `yaml:"usable_fraction"`
	FFTSize          int     `yaml:"fft_size"`
	SampleRate       float64 `yaml:"sample_rate"`
	AveragesPerStep  int     `yaml:"averages_per_step"`
	SettleChunks     int     `yaml:"settle_chunks"`
	DisplayBins      int     `yaml:"display_bins"`
}

// DetectionConfig holds default parameters for the signal detector.
type DetectionConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ThresholdDB       float64 `yaml:"threshold_db"`
	MinBandwidthBins  int     `yaml:"min_bandwidth_bins"`
	MergeGapBins      int     `yaml:"merge_gap_bins"`
	OverlapMatchRatio float64 `yaml:"overlap_match_ratio"`
	UpdateInterval    float64 `yaml:"update_interval"` // seconds
	PersistenceTimeout float64 `yaml:"persistence_timeout"` // seconds
	MaxTrackedSignals int     `yaml:"max_tracked_signals"`
}

// AGCConfig holds default software AGC parameters.
type AGCConfig struct {
	Enabled     bool    `yaml:"enabled"`
	TargetDBFS  float64 `yaml:"target_dbfs"`
	Hysteresis  float64 `yaml:"hysteresis"`
	GainStep    float64 `yaml:"gain_step"`
	MinGain     float64 `yaml:"min_gain"`
	MaxGain     float64 `yaml:"max_gain"`
	MinInterval float64 `yaml:"min_interval"` // seconds
}

// RecordingConfig holds recording and playback storage settings.
type RecordingConfig struct {
	StoragePath       string `yaml:"storage_path"`
	MaxStorageBytes   int64  `yaml:"max_storage_bytes"`
	IQBufferBytes     int    `yaml:"iq_buffer_bytes"`
	IQQueueSize       int    `yaml:"iq_queue_size"`
	SpectrumFlushRows int    `yaml:"spectrum_flush_rows"`
}

// StreamingConfig holds orchestrator-level settings not tied to a single subsystem.
type StreamingConfig struct {
	ResultQueueDepth int `yaml:"result_queue_depth"`
}

// SignalStoreConfig holds the persistent signal store's settings.
type SignalStoreConfig struct {
	Path             string  `yaml:"path"`
	MatchBandwidthHz float64 `yaml:"match_bandwidth_hz"`
}

// Default returns the engine's built-in defaults, matching the original
// reference implementation's dataclass defaults.
func Default() *Config {
	return &Config{
		SchemaVersion: "1.0",
		Receiver: ReceiverConfig{
			CenterFreq:    100e6,
			SampleRate:    2e6,
			Bandwidth:     2e6,
			Gain:          20,
			MinFreq:       47e6,
			MaxFreq:       6e9,
			IngestQueueMS: 128,
		},
		DSP: DSPConfig{
			FFTSize:         2048,
			Window:          "hanning",
			DCRemoval:       true,
			OverlapSave:     true,
			AveragingMode:   "exponential",
			AveragingCount:  8,
			AveragingAlpha:  0.2,
			PeakHold:        false,
			PeakHoldDecayDB: 0.2,
			DisplayBins:     2048,
			TargetFPS:       20,
		},
		Sweep: SweepConfig{
			UsableFraction:  0.8,
			FFTSize:         2048,
			SampleRate:      20e6,
			AveragesPerStep: 4,
			SettleChunks:    10,
			DisplayBins:     4096,
		},
		Detection: DetectionConfig{
			Enabled:            false,
			ThresholdDB:        10,
			MinBandwidthBins:   3,
			MergeGapBins:       2,
			OverlapMatchRatio:  0.5,
			UpdateInterval:     0.5,
			PersistenceTimeout: 10,
			MaxTrackedSignals:  256,
		},
		AGC: AGCConfig{
			Enabled:     false,
			TargetDBFS:  -20,
			Hysteresis:  2,
			GainStep:    1,
			MinGain:     0,
			MaxGain:     60,
			MinInterval: 1,
		},
		Recording: RecordingConfig{
			StoragePath:       "./recordings",
			MaxStorageBytes:   10 << 30,
			IQBufferBytes:     512 << 10,
			IQQueueSize:       64,
			SpectrumFlushRows: 10,
		},
		Streaming: StreamingConfig{
			ResultQueueDepth: 8,
		},
		SignalStore: SignalStoreConfig{
			Path:             "./recordings/signals.db",
			MatchBandwidthHz: 50e3,
		},
	}
}

// Load reads a YAML config file, overlaying it onto the built-in defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks invariants that the rest of the engine assumes hold.
func (c *Config) Validate() error {
	if !isPowerOfTwo(c.DSP.FFTSize) {
		return fmt.Errorf("dsp.fft_size must be a power of two, got %d", c.DSP.FFTSize)
	}
	if !isPowerOfTwo(c.Sweep.FFTSize) {
		return fmt.Errorf("sweep.fft_size must be a power of two, got %d", c.Sweep.FFTSize)
	}
	if c.Sweep.UsableFraction <= 0 || c.Sweep.UsableFraction > 1 {
		return fmt.Errorf("sweep.usable_fraction must be in (0,1], got %f", c.Sweep.UsableFraction)
	}
	if c.Receiver.MinFreq >= c.Receiver.MaxFreq {
		return fmt.Errorf("receiver.min_freq must be less than max_freq")
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
