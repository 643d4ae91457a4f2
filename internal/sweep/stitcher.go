package sweep

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stitcher owns a single panorama array assembled from per-step FFT
// segments with edge trimming and a linear-power crossfade across seams.
//
// The original reference implementation's raised-cosine taper blends only
// an incoming segment's edges against the previous segment's trailing
// region, even though segments tile contiguously with no true overlap; its
// right-edge taper is a no-op (it blends a slice against itself). This
// stitcher instead performs a pure linear crossfade of equal extent on the
// left edge only, which is the behavior the design explicitly permits as a
// reimplementation choice.
type Stitcher struct {
	fftSize        int
	usableFraction float64
	trimBins       int
	usableBins     int
	taperLen       int

	numSteps  int
	panorama  []float64 // dB
	freqs     []float64 // Hz, one per panorama bin
	stepFreqs []float64
	sampleRate float64
}

// NewStitcher prepares a stitcher for numSteps segments of fftSize bins
// each, given the sweep sample rate and usable fraction.
func NewStitcher(fftSize, numSteps int, sampleRate, usableFraction float64, stepFreqs []float64) *Stitcher {
	trim := int(float64(fftSize) * (1 - usableFraction) / 2)
	usable := fftSize - 2*trim
	taper := usable / 4
	if taper > 32 {
		taper = 32
	}

	s := &Stitcher{
		fftSize:        fftSize,
		usableFraction: usableFraction,
		trimBins:       trim,
		usableBins:     usable,
		taperLen:       taper,
		numSteps:       numSteps,
		sampleRate:     sampleRate,
		stepFreqs:      stepFreqs,
	}
	s.Reset()
	return s
}

// Reset refills the panorama with -200 dB, ready for a new sweep pass.
func (s *Stitcher) Reset() {
	total := s.usableBins * s.numSteps
	s.panorama = make([]float64, total)
	for i := range s.panorama {
		s.panorama[i] = -200.0
	}
	s.freqs = make([]float64, total)
	binWidth := s.sampleRate / float64(s.fftSize)
	for i := 0; i < total; i++ {
		step := i / s.usableBins
		within := i % s.usableBins
		center := s.stepFreqs[minInt(step, len(s.stepFreqs)-1)]
		s.freqs[i] = center - s.sampleRate/2 + float64(s.trimBins+within)*binWidth
	}
}

// AddSegment places stepIndex's full-resolution dB spectrum into the
// panorama, trimming its edges and crossfading the left seam against the
// already-placed previous segment.
func (s *Stitcher) AddSegment(stepIndex int, spectrumDB []float64) {
	if len(spectrumDB) != s.fftSize {
		return
	}
	trimmed := make([]float64, s.usableBins)
	copy(trimmed, spectrumDB[s.trimBins:s.trimBins+s.usableBins])

	offset := stepIndex * s.usableBins

	if stepIndex > 0 && s.taperLen > 0 {
		prevEdgeStart := offset - s.taperLen
		allValid := true
		for i := 0; i < s.taperLen; i++ {
			if s.panorama[prevEdgeStart+i] <= -190 {
				allValid = false
				break
			}
		}
		if allValid {
			for i := 0; i < s.taperLen; i++ {
				alpha := float64(i+1) / float64(s.taperLen+1)
				prevLin := dbToLinear(s.panorama[prevEdgeStart+i])
				curLin := dbToLinear(trimmed[i])
				blended := (1-alpha)*prevLin + alpha*curLin
				trimmed[i] = linearToDB(blended)
			}
		}
	}

	copy(s.panorama[offset:offset+s.usableBins], trimmed)
}

// Panorama returns the assembled dB spectrum.
func (s *Stitcher) Panorama() []float64 {
	return s.panorama
}

// Freqs returns the frequency (Hz) for each panorama bin.
func (s *Stitcher) Freqs() []float64 {
	return s.freqs
}

// GetDisplayPanorama returns a peak-preserving downsample of the panorama
// to the requested bin count, with the frequency axis decimated by
// grouped-bin mean.
func (s *Stitcher) GetDisplayPanorama(targetBins int) ([]float32, []float64) {
	n := len(s.panorama)
	if targetBins <= 0 || n <= targetBins {
		spec := make([]float32, n)
		for i, v := range s.panorama {
			spec[i] = float32(v)
		}
		freqs := make([]float64, n)
		copy(freqs, s.freqs)
		return spec, freqs
	}

	ratio := float64(n) / float64(targetBins)
	spec := make([]float32, targetBins)
	freqs := make([]float64, targetBins)
	for i := 0; i < targetBins; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}
		m := s.panorama[start]
		for j := start; j < end; j++ {
			if s.panorama[j] > m {
				m = s.panorama[j]
			}
		}
		spec[i] = float32(m)
		freqs[i] = stat.Mean(s.freqs[start:end], nil)
	}
	return spec, freqs
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

func linearToDB(lin float64) float64 {
	return 10 * math.Log10(math.Max(lin, 1e-20))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
