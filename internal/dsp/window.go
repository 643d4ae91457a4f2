package dsp

import "math"

// Window names accepted by SetWindow.
const (
	WindowHanning        = "hanning"
	WindowHamming        = "hamming"
	WindowBlackman       = "blackman"
	WindowBlackmanHarris = "blackman-harris"
	WindowFlatTop        = "flat-top"
	WindowKaiser6        = "kaiser6"
	WindowKaiser10       = "kaiser10"
	WindowKaiser14       = "kaiser14"
	WindowRectangular    = "rectangular"
)

// makeWindow returns the N-point window coefficients for name.
func makeWindow(name string, n int) []float64 {
	w := make([]float64, n)
	switch name {
	case WindowHamming:
		for i := range w {
			w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case WindowBlackman:
		for i := range w {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}
	case WindowBlackmanHarris:
		const a0, a1, a2, a3 = 0.35875, 0.48829, 0.14128, 0.01168
		for i := range w {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
		}
	case WindowFlatTop:
		const a0, a1, a2, a3, a4 = 0.21557895, 0.41663158, 0.277263158, 0.083578947, 0.006947368
		for i := range w {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x) + a4*math.Cos(4*x)
		}
	case WindowKaiser6:
		kaiserWindow(w, 6)
	case WindowKaiser10:
		kaiserWindow(w, 10)
	case WindowKaiser14:
		kaiserWindow(w, 14)
	case WindowRectangular:
		for i := range w {
			w[i] = 1
		}
	case WindowHanning:
		fallthrough
	default:
		for i := range w {
			w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	}
	return w
}

// kaiserWindow fills w with a Kaiser window of shape parameter beta.
func kaiserWindow(w []float64, beta float64) {
	n := len(w)
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := range w {
		r := 2*float64(i)/m - 1
		arg := beta * math.Sqrt(1-r*r)
		w[i] = besselI0(arg) / denom
	}
}

// besselI0 computes the zeroth-order modified Bessel function via its
// power series; sufficient precision for window generation.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 40; k++ {
		term *= (halfX / float64(k)) * (halfX / float64(k))
		sum += term
		if term < sum*1e-16 {
			break
		}
	}
	return sum
}

// coherentGain is the sum of the window coefficients. The pipeline divides
// |X|² by N²·coherentGain², so a full-scale tone reads about -20·log10(N)
// dBFS, not 0 dBFS.
func coherentGain(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}
