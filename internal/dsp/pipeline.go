// Package dsp implements the spectrum analysis engine's DSP pipeline:
// DC removal, overlap-save FFT blocking, windowing, linear-power averaging,
// peak hold, noise-floor estimation, and peak-preserving downsampling.
package dsp

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Averaging modes.
const (
	AveragingNone        = "none"
	AveragingLinear      = "linear"
	AveragingExponential = "exponential"
)

// Params is the set of runtime-tunable DSP pipeline parameters.
type Params struct {
	FFTSize         int
	Window          string
	DCRemoval       bool
	OverlapSave     bool
	AveragingMode   string
	AveragingCount  int
	AveragingAlpha  float64
	PeakHold        bool
	PeakHoldDecayDB float64
	DisplayBins     int
}

// Result is one completed DSP frame, consumed once by the orchestrator.
type Result struct {
	Spectrum       []float32 // dBFS, length == DisplayBins
	PeakHold       []float32 // dBFS, present iff PeakHold enabled
	NoiseFloor     float32   // dB
	PeakPower      float32   // dB
	PeakFreqOffset float32   // normalized [-0.5, 0.5]
}

const noiseFloorRingSize = 64

// Pipeline is a stateful IQ-chunk-to-spectrum transform. All mutable state
// is protected by mu; Process and SetParam contend for the same lock.
type Pipeline struct {
	mu sync.Mutex

	params Params
	fft    *fourier.CmplxFFT
	window []float64
	cgain2 float64 // coherent_gain^2

	dc *dcRemover

	overlapHalf []complex64 // second half of previous chunk
	haveOverlap bool

	linBuf    [][]float64 // ring of linear-power frames for linear(K) averaging
	linBufPos int
	linBufLen int
	emaState  []float64
	haveEMA   bool

	peakHoldLin []float64 // stored in dB domain actually; see updatePeakHold
	havePeak    bool

	noiseRing    [noiseFloorRingSize]float32
	noiseRingPos int
	noiseRingLen int
}

// New builds a Pipeline from the given parameters.
func New(p Params) (*Pipeline, error) {
	pl := &Pipeline{}
	if err := pl.configure(p); err != nil {
		return nil, err
	}
	return pl, nil
}

func (p *Pipeline) configure(params Params) error {
	if params.FFTSize <= 0 || params.FFTSize&(params.FFTSize-1) != 0 {
		return fmt.Errorf("dsp: fft size must be a power of two, got %d", params.FFTSize)
	}
	p.params = params
	p.fft = fourier.NewCmplxFFT(params.FFTSize)
	p.window = makeWindow(params.Window, params.FFTSize)
	cg := coherentGain(p.window)
	p.cgain2 = cg * cg
	p.dc = newDCRemover()
	p.resetLocked()
	return nil
}

// SetFFTSize rebuilds the pipeline for a new FFT size, keeping every other
// parameter, and resets all accumulated state since bin geometry changes.
func (p *Pipeline) SetFFTSize(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	params := p.params
	params.FFTSize = n
	return p.configure(params)
}

// Reset clears all accumulated state: overlap buffer, averaging buffers,
// peak hold, noise-floor ring, and the DC remover's filter memory.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	p.overlapHalf = nil
	p.haveOverlap = false
	p.linBuf = make([][]float64, maxInt(p.params.AveragingCount, 1))
	p.linBufPos = 0
	p.linBufLen = 0
	p.emaState = nil
	p.haveEMA = false
	p.peakHoldLin = nil
	p.havePeak = false
	p.noiseRing = [noiseFloorRingSize]float32{}
	p.noiseRingPos = 0
	p.noiseRingLen = 0
	p.dc.reset()
}

// SetParam is a closed set of parameter mutations, mirroring the
// {SetWindow, SetAveragingMode, ...} enum from the design notes. Applying a
// parameter that invalidates dependent state resets that state.
type SetParam struct {
	Window          *string
	DCRemoval       *bool
	OverlapSave     *bool
	AveragingMode   *string
	AveragingCount  *int
	AveragingAlpha  *float64
	PeakHold        *bool
	PeakHoldDecayDB *float64
	ResetPeakHold   bool
	DisplayBins     *int
}

// Apply mutates the pipeline's parameters under lock, resetting any state
// that the change invalidates.
func (p *Pipeline) Apply(s SetParam) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Window != nil && *s.Window != p.params.Window {
		p.params.Window = *s.Window
		p.window = makeWindow(p.params.Window, p.params.FFTSize)
		cg := coherentGain(p.window)
		p.cgain2 = cg * cg
		p.peakHoldLin = nil
		p.havePeak = false
	}
	if s.DCRemoval != nil {
		p.params.DCRemoval = *s.DCRemoval
		p.dc.reset()
	}
	if s.OverlapSave != nil {
		p.params.OverlapSave = *s.OverlapSave
		p.overlapHalf = nil
		p.haveOverlap = false
	}
	if s.AveragingMode != nil && *s.AveragingMode != p.params.AveragingMode {
		p.params.AveragingMode = *s.AveragingMode
		p.linBuf = make([][]float64, maxInt(p.params.AveragingCount, 1))
		p.linBufPos, p.linBufLen = 0, 0
		p.emaState = nil
		p.haveEMA = false
	}
	if s.AveragingCount != nil && *s.AveragingCount != p.params.AveragingCount {
		p.params.AveragingCount = *s.AveragingCount
		p.linBuf = make([][]float64, maxInt(p.params.AveragingCount, 1))
		p.linBufPos, p.linBufLen = 0, 0
	}
	if s.AveragingAlpha != nil {
		p.params.AveragingAlpha = *s.AveragingAlpha
	}
	if s.PeakHold != nil {
		p.params.PeakHold = *s.PeakHold
	}
	if s.PeakHoldDecayDB != nil {
		p.params.PeakHoldDecayDB = *s.PeakHoldDecayDB
	}
	if s.ResetPeakHold {
		p.peakHoldLin = nil
		p.havePeak = false
	}
	if s.DisplayBins != nil {
		p.params.DisplayBins = *s.DisplayBins
	}
	return nil
}

// Process runs one IQ chunk through the pipeline, returning the resulting
// display-ready spectrum. A chunk length mismatch returns a zero Result and
// an error; callers log and skip rather than propagate a panic.
func (p *Pipeline) Process(iq []complex64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.params.FFTSize
	if len(iq) != n {
		return Result{}, fmt.Errorf("dsp: chunk length %d does not match fft size %d", len(iq), n)
	}

	chunk := make([]complex64, n)
	copy(chunk, iq)
	if p.params.DCRemoval {
		p.dc.process(chunk)
	}

	var blocks [][]complex64
	if p.params.OverlapSave {
		if p.haveOverlap {
			combined := make([]complex64, n)
			half := n / 2
			copy(combined[:half], p.overlapHalf)
			copy(combined[half:], chunk[:half])
			blocks = append(blocks, combined)
		}
		blocks = append(blocks, chunk)
		overlapHalf := make([]complex64, n/2)
		copy(overlapHalf, chunk[n/2:])
		p.overlapHalf = overlapHalf
		p.haveOverlap = true
	} else {
		blocks = append(blocks, chunk)
	}

	linear := make([]float64, n)
	for _, b := range blocks {
		bl := p.computeSpectrumLinear(b)
		for i, v := range bl {
			linear[i] += v
		}
	}
	for i := range linear {
		linear[i] /= float64(len(blocks))
	}

	avgLinear := p.applyAveraging(linear)

	spectrumDB := make([]float32, n)
	for i, v := range avgLinear {
		spectrumDB[i] = float32(10 * math.Log10(math.Max(v, 1e-20)))
	}

	var peakHoldDB []float32
	if p.params.PeakHold {
		peakHoldDB = p.updatePeakHold(spectrumDB)
	}

	noiseFloor := p.estimateNoiseFloor(spectrumDB)

	display := p.params.DisplayBins
	dsSpectrum := downsamplePeakPreserving(spectrumDB, display)
	var dsPeakHold []float32
	if peakHoldDB != nil {
		dsPeakHold = downsamplePeakPreserving(peakHoldDB, display)
	}

	peakIdx := argmaxFloat32(dsSpectrum)
	peakPower := dsSpectrum[peakIdx]
	peakOffset := float32(peakIdx)/float32(len(dsSpectrum)) - 0.5

	return Result{
		Spectrum:       dsSpectrum,
		PeakHold:       dsPeakHold,
		NoiseFloor:     noiseFloor,
		PeakPower:      peakPower,
		PeakFreqOffset: peakOffset,
	}, nil
}

// computeSpectrumLinear windows, FFTs, bin-shifts, and power-normalizes one
// FFT-sized block, returning linear power per bin with DC centered.
func (p *Pipeline) computeSpectrumLinear(block []complex64) []float64 {
	n := len(block)
	in := make([]complex128, n)
	for i, s := range block {
		in[i] = complex(float64(real(s))*p.window[i], float64(imag(s))*p.window[i])
	}
	out := make([]complex128, n)
	p.fft.Coefficients(out, in)

	linear := make([]float64, n)
	half := n / 2
	norm := float64(n) * float64(n) * p.cgain2
	for i, c := range out {
		mag2 := real(c)*real(c) + imag(c)*imag(c)
		// bin-shift so DC lands at the center index
		dst := (i + half) % n
		linear[dst] = mag2 / norm
	}
	return linear
}

// applyAveraging folds one linear-power frame into the configured averaging
// mode and returns the averaged linear-power spectrum.
func (p *Pipeline) applyAveraging(frame []float64) []float64 {
	switch p.params.AveragingMode {
	case AveragingLinear:
		k := maxInt(p.params.AveragingCount, 1)
		if len(p.linBuf) != k {
			p.linBuf = make([][]float64, k)
			p.linBufPos, p.linBufLen = 0, 0
		}
		cp := make([]float64, len(frame))
		copy(cp, frame)
		p.linBuf[p.linBufPos] = cp
		p.linBufPos = (p.linBufPos + 1) % k
		if p.linBufLen < k {
			p.linBufLen++
		}
		out := make([]float64, len(frame))
		for i := 0; i < p.linBufLen; i++ {
			for j, v := range p.linBuf[i] {
				out[j] += v
			}
		}
		for i := range out {
			out[i] /= float64(p.linBufLen)
		}
		return out
	case AveragingExponential:
		alpha := p.params.AveragingAlpha
		if alpha <= 0 || alpha > 1 {
			alpha = 0.2
		}
		if !p.haveEMA {
			p.emaState = make([]float64, len(frame))
			copy(p.emaState, frame)
			p.haveEMA = true
		} else {
			for i, v := range frame {
				p.emaState[i] = alpha*v + (1-alpha)*p.emaState[i]
			}
		}
		out := make([]float64, len(frame))
		copy(out, p.emaState)
		return out
	default:
		return frame
	}
}

// updatePeakHold decays the existing hold by PeakHoldDecayDB and takes the
// element-wise maximum against the new spectrum (both in dB domain).
func (p *Pipeline) updatePeakHold(spectrumDB []float32) []float32 {
	if !p.havePeak || len(p.peakHoldLin) != len(spectrumDB) {
		p.peakHoldLin = make([]float64, len(spectrumDB))
		for i, v := range spectrumDB {
			p.peakHoldLin[i] = float64(v)
		}
		p.havePeak = true
	} else {
		decay := p.params.PeakHoldDecayDB
		for i, v := range spectrumDB {
			decayed := p.peakHoldLin[i] - decay
			if float64(v) > decayed {
				p.peakHoldLin[i] = float64(v)
			} else {
				p.peakHoldLin[i] = decayed
			}
		}
	}
	out := make([]float32, len(p.peakHoldLin))
	for i, v := range p.peakHoldLin {
		out[i] = float32(v)
	}
	return out
}

// estimateNoiseFloor computes the 10th percentile of the spectrum and
// returns the median of the last 64 such percentiles.
func (p *Pipeline) estimateNoiseFloor(spectrumDB []float32) float32 {
	sortedF64 := make([]float64, len(spectrumDB))
	for i, v := range spectrumDB {
		sortedF64[i] = float64(v)
	}
	sort.Float64s(sortedF64)
	p10 := float32(stat.Quantile(0.10, stat.Empirical, sortedF64, nil))

	p.noiseRing[p.noiseRingPos] = p10
	p.noiseRingPos = (p.noiseRingPos + 1) % noiseFloorRingSize
	if p.noiseRingLen < noiseFloorRingSize {
		p.noiseRingLen++
	}

	windowF64 := make([]float64, p.noiseRingLen)
	for i, v := range p.noiseRing[:p.noiseRingLen] {
		windowF64[i] = float64(v)
	}
	sort.Float64s(windowF64)
	return float32(stat.Quantile(0.5, stat.Empirical, windowF64, nil))
}

func argmaxFloat32(s []float32) int {
	best := 0
	for i, v := range s {
		if v > s[best] {
			best = i
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
