// Package protocol implements the spectrum engine's binary wire format.
//
// FRAME HEADER (8 bytes, big-endian):
// Offset | Size | Type   | Description
// -------|------|--------|---------------------------------
// 0      | 1    | uint8  | version, always 0x02
// 1      | 1    | uint8  | message type
// 2      | 2    | uint16 | flags
// 4      | 4    | uint32 | payload length
//
// Message types: 0x01 spectrum, 0x03 sweep segment, 0x04 sweep panorama.
// Flags: 0x0001 peak hold present, 0x0002 sweep complete, 0x0004 sweep in progress.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	Version = 0x02

	MsgSpectrum      = 0x01
	MsgSweepSegment  = 0x03
	MsgSweepPanorama = 0x04

	FlagPeakHold        uint16 = 0x0001
	FlagSweepComplete   uint16 = 0x0002
	FlagSweepInProgress uint16 = 0x0004

	frameHeaderLen    = 8
	spectrumHeaderLen = 56
	segmentHeaderLen  = 44
	panoramaHeaderLen = 40
)

// SpectrumFrame is the payload for message type 0x01.
type SpectrumFrame struct {
	CenterFreq     float64
	SampleRate     float64
	Bandwidth      float64
	Gain           float32
	FFTSize        uint32
	NumBins        uint32
	NoiseFloor     float32
	PeakPower      float32
	PeakFreqOffset float32
	Timestamp      float64
	Spectrum       []float32
	PeakHold       []float32 // nil if absent
}

// EncodeSpectrum serializes a spectrum frame into the wire format.
func EncodeSpectrum(f SpectrumFrame) ([]byte, error) {
	if int(f.NumBins) != len(f.Spectrum) {
		return nil, fmt.Errorf("protocol: num_bins %d does not match spectrum length %d", f.NumBins, len(f.Spectrum))
	}
	var flags uint16
	if f.PeakHold != nil {
		if len(f.PeakHold) != len(f.Spectrum) {
			return nil, fmt.Errorf("protocol: peak_hold length %d does not match spectrum length %d", len(f.PeakHold), len(f.Spectrum))
		}
		flags |= FlagPeakHold
	}

	payloadLen := spectrumHeaderLen + 4*len(f.Spectrum)
	if f.PeakHold != nil {
		payloadLen += 4 * len(f.PeakHold)
	}

	buf := bytes.NewBuffer(make([]byte, 0, frameHeaderLen+payloadLen))
	writeFrameHeader(buf, MsgSpectrum, flags, uint32(payloadLen))

	binary.Write(buf, binary.BigEndian, f.CenterFreq)
	binary.Write(buf, binary.BigEndian, f.SampleRate)
	binary.Write(buf, binary.BigEndian, f.Bandwidth)
	binary.Write(buf, binary.BigEndian, f.Gain)
	binary.Write(buf, binary.BigEndian, f.FFTSize)
	binary.Write(buf, binary.BigEndian, f.NumBins)
	binary.Write(buf, binary.BigEndian, f.NoiseFloor)
	binary.Write(buf, binary.BigEndian, f.PeakPower)
	binary.Write(buf, binary.BigEndian, f.PeakFreqOffset)
	binary.Write(buf, binary.BigEndian, f.Timestamp)
	binary.Write(buf, binary.BigEndian, f.Spectrum)
	if f.PeakHold != nil {
		binary.Write(buf, binary.BigEndian, f.PeakHold)
	}
	return buf.Bytes(), nil
}

// DecodeSpectrum parses a full frame (header + payload) previously produced
// by EncodeSpectrum.
func DecodeSpectrum(data []byte) (SpectrumFrame, error) {
	hdr, body, err := readFrameHeader(data)
	if err != nil {
		return SpectrumFrame{}, err
	}
	if hdr.messageType != MsgSpectrum {
		return SpectrumFrame{}, fmt.Errorf("protocol: expected spectrum message type, got 0x%02x", hdr.messageType)
	}
	if len(body) < spectrumHeaderLen {
		return SpectrumFrame{}, fmt.Errorf("protocol: spectrum payload too short: %d bytes", len(body))
	}

	r := bytes.NewReader(body)
	var f SpectrumFrame
	binary.Read(r, binary.BigEndian, &f.CenterFreq)
	binary.Read(r, binary.BigEndian, &f.SampleRate)
	binary.Read(r, binary.BigEndian, &f.Bandwidth)
	binary.Read(r, binary.BigEndian, &f.Gain)
	binary.Read(r, binary.BigEndian, &f.FFTSize)
	binary.Read(r, binary.BigEndian, &f.NumBins)
	binary.Read(r, binary.BigEndian, &f.NoiseFloor)
	binary.Read(r, binary.BigEndian, &f.PeakPower)
	binary.Read(r, binary.BigEndian, &f.PeakFreqOffset)
	binary.Read(r, binary.BigEndian, &f.Timestamp)

	f.Spectrum = make([]float32, f.NumBins)
	if err := binary.Read(r, binary.BigEndian, &f.Spectrum); err != nil {
		return SpectrumFrame{}, fmt.Errorf("protocol: reading spectrum bins: %w", err)
	}
	if hdr.flags&FlagPeakHold != 0 {
		f.PeakHold = make([]float32, f.NumBins)
		if err := binary.Read(r, binary.BigEndian, &f.PeakHold); err != nil {
			return SpectrumFrame{}, fmt.Errorf("protocol: reading peak-hold bins: %w", err)
		}
	}
	return f, nil
}

// SweepSegmentFrame is the payload for message type 0x03.
type SweepSegmentFrame struct {
	SweepID        uint32
	SegmentIdx     uint16
	TotalSegments  uint16
	FreqStart      float64
	FreqEnd        float64
	SweepStart     float64
	SweepEnd       float64
	NumBins        uint32
	Spectrum       []float32
}

// EncodeSweepSegment serializes a sweep segment frame. FlagSweepComplete is
// set automatically when SegmentIdx is the last one (TotalSegments-1).
func EncodeSweepSegment(f SweepSegmentFrame) ([]byte, error) {
	if int(f.NumBins) != len(f.Spectrum) {
		return nil, fmt.Errorf("protocol: num_bins %d does not match spectrum length %d", f.NumBins, len(f.Spectrum))
	}
	var flags uint16
	if f.SegmentIdx+1 >= f.TotalSegments {
		flags |= FlagSweepComplete
	} else {
		flags |= FlagSweepInProgress
	}

	payloadLen := segmentHeaderLen + 4*len(f.Spectrum)
	buf := bytes.NewBuffer(make([]byte, 0, frameHeaderLen+payloadLen))
	writeFrameHeader(buf, MsgSweepSegment, flags, uint32(payloadLen))

	binary.Write(buf, binary.BigEndian, f.SweepID)
	binary.Write(buf, binary.BigEndian, f.SegmentIdx)
	binary.Write(buf, binary.BigEndian, f.TotalSegments)
	binary.Write(buf, binary.BigEndian, f.FreqStart)
	binary.Write(buf, binary.BigEndian, f.FreqEnd)
	binary.Write(buf, binary.BigEndian, f.SweepStart)
	binary.Write(buf, binary.BigEndian, f.SweepEnd)
	binary.Write(buf, binary.BigEndian, f.NumBins)
	binary.Write(buf, binary.BigEndian, f.Spectrum)
	return buf.Bytes(), nil
}

// DecodeSweepSegment parses a full sweep segment frame.
func DecodeSweepSegment(data []byte) (SweepSegmentFrame, error) {
	hdr, body, err := readFrameHeader(data)
	if err != nil {
		return SweepSegmentFrame{}, err
	}
	if hdr.messageType != MsgSweepSegment {
		return SweepSegmentFrame{}, fmt.Errorf("protocol: expected sweep segment message type, got 0x%02x", hdr.messageType)
	}
	if len(body) < segmentHeaderLen {
		return SweepSegmentFrame{}, fmt.Errorf("protocol: sweep segment payload too short: %d bytes", len(body))
	}
	r := bytes.NewReader(body)
	var f SweepSegmentFrame
	binary.Read(r, binary.BigEndian, &f.SweepID)
	binary.Read(r, binary.BigEndian, &f.SegmentIdx)
	binary.Read(r, binary.BigEndian, &f.TotalSegments)
	binary.Read(r, binary.BigEndian, &f.FreqStart)
	binary.Read(r, binary.BigEndian, &f.FreqEnd)
	binary.Read(r, binary.BigEndian, &f.SweepStart)
	binary.Read(r, binary.BigEndian, &f.SweepEnd)
	binary.Read(r, binary.BigEndian, &f.NumBins)
	f.Spectrum = make([]float32, f.NumBins)
	if err := binary.Read(r, binary.BigEndian, &f.Spectrum); err != nil {
		return SweepSegmentFrame{}, fmt.Errorf("protocol: reading segment bins: %w", err)
	}
	return f, nil
}

// SweepPanoramaFrame is the payload for message type 0x04.
type SweepPanoramaFrame struct {
	SweepID      uint32
	SweepMode    uint8 // 0 survey, 1 band-monitor
	FreqStart    float64
	FreqEnd      float64
	NumBins      uint32
	SweepTimeMS  float32
	Timestamp    float64
	Spectrum     []float32
}

// EncodeSweepPanorama serializes a sweep panorama frame. FlagSweepComplete
// is always set for panorama frames.
func EncodeSweepPanorama(f SweepPanoramaFrame) ([]byte, error) {
	if int(f.NumBins) != len(f.Spectrum) {
		return nil, fmt.Errorf("protocol: num_bins %d does not match spectrum length %d", f.NumBins, len(f.Spectrum))
	}
	payloadLen := panoramaHeaderLen + 4*len(f.Spectrum)
	buf := bytes.NewBuffer(make([]byte, 0, frameHeaderLen+payloadLen))
	writeFrameHeader(buf, MsgSweepPanorama, FlagSweepComplete, uint32(payloadLen))

	binary.Write(buf, binary.BigEndian, f.SweepID)
	binary.Write(buf, binary.BigEndian, f.SweepMode)
	buf.Write([]byte{0, 0, 0}) // 3 padding bytes
	binary.Write(buf, binary.BigEndian, f.FreqStart)
	binary.Write(buf, binary.BigEndian, f.FreqEnd)
	binary.Write(buf, binary.BigEndian, f.NumBins)
	binary.Write(buf, binary.BigEndian, f.SweepTimeMS)
	binary.Write(buf, binary.BigEndian, f.Timestamp)
	binary.Write(buf, binary.BigEndian, f.Spectrum)
	return buf.Bytes(), nil
}

// DecodeSweepPanorama parses a full sweep panorama frame.
func DecodeSweepPanorama(data []byte) (SweepPanoramaFrame, error) {
	hdr, body, err := readFrameHeader(data)
	if err != nil {
		return SweepPanoramaFrame{}, err
	}
	if hdr.messageType != MsgSweepPanorama {
		return SweepPanoramaFrame{}, fmt.Errorf("protocol: expected sweep panorama message type, got 0x%02x", hdr.messageType)
	}
	if len(body) < panoramaHeaderLen {
		return SweepPanoramaFrame{}, fmt.Errorf("protocol: sweep panorama payload too short: %d bytes", len(body))
	}
	r := bytes.NewReader(body)
	var f SweepPanoramaFrame
	binary.Read(r, binary.BigEndian, &f.SweepID)
	binary.Read(r, binary.BigEndian, &f.SweepMode)
	pad := make([]byte, 3)
	r.Read(pad)
	binary.Read(r, binary.BigEndian, &f.FreqStart)
	binary.Read(r, binary.BigEndian, &f.FreqEnd)
	binary.Read(r, binary.BigEndian, &f.NumBins)
	binary.Read(r, binary.BigEndian, &f.SweepTimeMS)
	binary.Read(r, binary.BigEndian, &f.Timestamp)
	f.Spectrum = make([]float32, f.NumBins)
	if err := binary.Read(r, binary.BigEndian, &f.Spectrum); err != nil {
		return SweepPanoramaFrame{}, fmt.Errorf("protocol: reading panorama bins: %w", err)
	}
	return f, nil
}

type frameHeader struct {
	version     uint8
	messageType uint8
	flags       uint16
	payloadLen  uint32
}

func writeFrameHeader(buf *bytes.Buffer, messageType uint8, flags uint16, payloadLen uint32) {
	buf.WriteByte(Version)
	buf.WriteByte(messageType)
	binary.Write(buf, binary.BigEndian, flags)
	binary.Write(buf, binary.BigEndian, payloadLen)
}

func readFrameHeader(data []byte) (frameHeader, []byte, error) {
	if len(data) < frameHeaderLen {
		return frameHeader{}, nil, fmt.Errorf("protocol: frame shorter than header: %d bytes", len(data))
	}
	hdr := frameHeader{
		version:     data[0],
		messageType: data[1],
		flags:       binary.BigEndian.Uint16(data[2:4]),
		payloadLen:  binary.BigEndian.Uint32(data[4:8]),
	}
	if hdr.version != Version {
		return frameHeader{}, nil, fmt.Errorf("protocol: unsupported version 0x%02x", hdr.version)
	}
	body := data[frameHeaderLen:]
	if uint32(len(body)) < hdr.payloadLen {
		return frameHeader{}, nil, fmt.Errorf("protocol: payload shorter than declared length: %d < %d", len(body), hdr.payloadLen)
	}
	return hdr, body[:hdr.payloadLen], nil
}
