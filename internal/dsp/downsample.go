package dsp

import "math"

// downsamplePeakPreserving maps an N-bin spectrum onto target bins by taking
// the maximum within each (possibly fractional) input range, so transient
// peaks are never averaged away by decimation.
func downsamplePeakPreserving(s []float32, target int) []float32 {
	n := len(s)
	if target <= 0 || n <= target {
		out := make([]float32, n)
		copy(out, s)
		return out
	}
	out := make([]float32, target)
	ratio := float64(n) / float64(target)
	for i := 0; i < target; i++ {
		start := int(float64(i) * ratio)
		end := int(math.Ceil(float64(i+1) * ratio))
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}
		m := s[start]
		for _, v := range s[start+1 : end] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// downsampleFreqMean decimates a frequency axis by grouping bins and
// averaging, paired with downsamplePeakPreserving for the power axis.
func downsampleFreqMean(freqs []float64, target int) []float64 {
	n := len(freqs)
	if target <= 0 || n <= target {
		out := make([]float64, n)
		copy(out, freqs)
		return out
	}
	out := make([]float64, target)
	ratio := float64(n) / float64(target)
	for i := 0; i < target; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}
		var sum float64
		for _, f := range freqs[start:end] {
			sum += f
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
