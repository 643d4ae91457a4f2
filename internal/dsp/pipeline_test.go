package dsp

import (
	"math"
	"testing"
)

func defaultParams(fftSize int) Params {
	return Params{
		FFTSize:         fftSize,
		Window:          WindowHanning,
		DCRemoval:       false,
		OverlapSave:     false,
		AveragingMode:   AveragingNone,
		AveragingCount:  8,
		AveragingAlpha:  0.2,
		PeakHold:        false,
		PeakHoldDecayDB: 0.2,
		DisplayBins:     fftSize,
	}
}

func toneChunk(n int, freqBins float64) []complex64 {
	chunk := make([]complex64, n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * freqBins * float64(i) / float64(n)
		chunk[i] = complex64(complex(math.Cos(phase), math.Sin(phase)))
	}
	return chunk
}

func TestFrameIdentity(t *testing.T) {
	pl, err := New(defaultParams(1024))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunk := toneChunk(1024, 100)
	res, err := pl.Process(chunk)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Spectrum) != 1024 {
		t.Fatalf("spectrum length = %d, want %d", len(res.Spectrum), 1024)
	}
	want := res.Spectrum[0]
	for _, v := range res.Spectrum {
		if v > want {
			want = v
		}
	}
	if math.Abs(float64(res.PeakPower-want)) > 1e-4 {
		t.Errorf("peak power %f does not match max(spectrum) %f", res.PeakPower, want)
	}
}

func TestChunkLengthMismatch(t *testing.T) {
	pl, err := New(defaultParams(1024))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = pl.Process(make([]complex64, 512))
	if err == nil {
		t.Fatal("expected error for mismatched chunk length")
	}
}

func TestWindowingDeterminism(t *testing.T) {
	pl, err := New(defaultParams(512))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunk := toneChunk(512, 30)

	first, err := pl.Process(chunk)
	if err != nil {
		t.Fatal(err)
	}

	newWindow := WindowBlackman
	if err := pl.Apply(SetParam{Window: &newWindow}); err != nil {
		t.Fatal(err)
	}
	_, _ = pl.Process(chunk)

	orig := WindowHanning
	if err := pl.Apply(SetParam{Window: &orig}); err != nil {
		t.Fatal(err)
	}
	pl.Reset()
	second, err := pl.Process(chunk)
	if err != nil {
		t.Fatal(err)
	}

	for i := range first.Spectrum {
		if math.Abs(float64(first.Spectrum[i]-second.Spectrum[i])) > 1e-3 {
			t.Fatalf("bin %d differs after revert: %f vs %f", i, first.Spectrum[i], second.Spectrum[i])
		}
	}
}

func TestLinearAveragingConvergesToSingleFrame(t *testing.T) {
	params := defaultParams(512)
	params.AveragingMode = AveragingLinear
	params.AveragingCount = 4
	pl, err := New(params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunk := toneChunk(512, 40)

	single, err := New(defaultParams(512))
	if err != nil {
		t.Fatal(err)
	}
	singleRes, err := single.Process(chunk)
	if err != nil {
		t.Fatal(err)
	}

	var res Result
	for i := 0; i < 4; i++ {
		res, err = pl.Process(chunk)
		if err != nil {
			t.Fatal(err)
		}
	}

	toneBin := argmaxFloat32(res.Spectrum)
	if math.Abs(float64(res.Spectrum[toneBin]-singleRes.Spectrum[toneBin])) > 0.1 {
		t.Errorf("averaged tone bin power %f vs single-frame %f exceeds 0.1 dB", res.Spectrum[toneBin], singleRes.Spectrum[toneBin])
	}
}

func TestDownsamplePeakPreserving(t *testing.T) {
	s := []float32{-90, -80, -10, -85, -90, -95, -88, -92}
	out := downsamplePeakPreserving(s, 4)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	var maxIn float32 = -1000
	for _, v := range s {
		if v > maxIn {
			maxIn = v
		}
	}
	var maxOut float32 = -1000
	for _, v := range out {
		if v > maxOut {
			maxOut = v
		}
	}
	if maxOut != maxIn {
		t.Errorf("downsample lost the peak: got max %f, want %f", maxOut, maxIn)
	}
}

func TestDownsampleNoOpWhenTargetExceedsInput(t *testing.T) {
	s := []float32{1, 2, 3}
	out := downsamplePeakPreserving(s, 10)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
}
