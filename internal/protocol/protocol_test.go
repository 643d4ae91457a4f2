package protocol

import "testing"

func TestSpectrumRoundTrip(t *testing.T) {
	f := SpectrumFrame{
		CenterFreq:     100e6,
		SampleRate:     2e6,
		Bandwidth:      2e6,
		Gain:           20,
		FFTSize:        2048,
		NumBins:        8,
		NoiseFloor:     -95.5,
		PeakPower:      -12.25,
		PeakFreqOffset: 0.125,
		Timestamp:      1234.5,
		Spectrum:       []float32{-90, -91, -92, -10, -93, -94, -95, -96},
		PeakHold:       []float32{-85, -86, -87, -5, -88, -89, -90, -91},
	}
	encoded, err := EncodeSpectrum(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSpectrum(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CenterFreq != f.CenterFreq || decoded.SampleRate != f.SampleRate {
		t.Errorf("header fields did not round-trip: %+v", decoded)
	}
	for i := range f.Spectrum {
		if decoded.Spectrum[i] != f.Spectrum[i] {
			t.Errorf("bin %d: got %f, want %f", i, decoded.Spectrum[i], f.Spectrum[i])
		}
		if decoded.PeakHold[i] != f.PeakHold[i] {
			t.Errorf("peak hold bin %d: got %f, want %f", i, decoded.PeakHold[i], f.PeakHold[i])
		}
	}
}

func TestSpectrumWithoutPeakHoldClearsFlag(t *testing.T) {
	f := SpectrumFrame{NumBins: 2, Spectrum: []float32{1, 2}}
	encoded, err := EncodeSpectrum(f)
	if err != nil {
		t.Fatal(err)
	}
	flags := uint16(encoded[2])<<8 | uint16(encoded[3])
	if flags&FlagPeakHold != 0 {
		t.Error("FlagPeakHold should not be set when PeakHold is nil")
	}
	decoded, err := DecodeSpectrum(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PeakHold != nil {
		t.Error("decoded PeakHold should be nil")
	}
}

func TestSweepSegmentCompleteFlag(t *testing.T) {
	f := SweepSegmentFrame{SweepID: 1, SegmentIdx: 2, TotalSegments: 3, NumBins: 2, Spectrum: []float32{1, 2}}
	encoded, err := EncodeSweepSegment(f)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSweepSegment(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.SegmentIdx != 2 || decoded.TotalSegments != 3 {
		t.Errorf("segment fields did not round trip: %+v", decoded)
	}

	notLast := SweepSegmentFrame{SweepID: 1, SegmentIdx: 0, TotalSegments: 3, NumBins: 1, Spectrum: []float32{1}}
	enc2, err := EncodeSweepSegment(notLast)
	if err != nil {
		t.Fatal(err)
	}
	flags := uint16(enc2[2])<<8 | uint16(enc2[3])
	if flags&FlagSweepComplete != 0 {
		t.Error("non-final segment should not carry FlagSweepComplete")
	}
	if flags&FlagSweepInProgress == 0 {
		t.Error("non-final segment should carry FlagSweepInProgress")
	}
}

func TestSweepPanoramaAlwaysComplete(t *testing.T) {
	f := SweepPanoramaFrame{SweepID: 7, SweepMode: 1, NumBins: 3, Spectrum: []float32{1, 2, 3}}
	encoded, err := EncodeSweepPanorama(f)
	if err != nil {
		t.Fatal(err)
	}
	flags := uint16(encoded[2])<<8 | uint16(encoded[3])
	if flags&FlagSweepComplete == 0 {
		t.Error("panorama frame must always carry FlagSweepComplete")
	}
	decoded, err := DecodeSweepPanorama(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.SweepMode != 1 || decoded.SweepID != 7 {
		t.Errorf("fields did not round trip: %+v", decoded)
	}
	for i, v := range f.Spectrum {
		if decoded.Spectrum[i] != v {
			t.Errorf("bin %d mismatch", i)
		}
	}
}
