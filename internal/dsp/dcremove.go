package dsp

// dcRemover is a single-pole IIR high-pass filter applied independently to
// the real and imaginary sample streams, carrying its state across chunks.
//
// H(z) = (1 - z^-1) / (1 - alpha*z^-1)
type dcRemover struct {
	alpha          float64
	prevInReal     float64
	prevOutReal    float64
	prevInImag     float64
	prevOutImag    float64
}

func newDCRemover() *dcRemover {
	return &dcRemover{alpha: 0.9999}
}

func (d *dcRemover) reset() {
	d.prevInReal, d.prevOutReal = 0, 0
	d.prevInImag, d.prevOutImag = 0, 0
}

// process filters iq in place.
func (d *dcRemover) process(iq []complex64) {
	for i, s := range iq {
		re := float64(real(s))
		im := float64(imag(s))

		outRe := re - d.prevInReal + d.alpha*d.prevOutReal
		d.prevInReal = re
		d.prevOutReal = outRe

		outIm := im - d.prevInImag + d.alpha*d.prevOutImag
		d.prevInImag = im
		d.prevOutImag = outIm

		iq[i] = complex(float32(outRe), float32(outIm))
	}
}
