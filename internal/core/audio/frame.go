// Package audio defines the wire format for PCM audio datagrams and the
// wait-free ring buffer that moves frames between network and mixer
// goroutines.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// SamplesPerFrame is the number of mono PCM samples in one frame —
	// one render quantum at 48kHz (2.666...ms).
	SamplesPerFrame = 128
	// SampleRate is the fixed PCM sample rate in Hz.
	SampleRate = 48000
	// HeaderSize is the sequence + timestamp prefix, in bytes.
	HeaderSize = 8
	// PayloadSize is the sample payload, in bytes (128 * int16).
	PayloadSize = SamplesPerFrame * 2
	// PacketSize is the total wire size of an audio datagram.
	PacketSize = HeaderSize + PayloadSize
)

// Frame is a fixed-size block of mono PCM samples plus the header fields
// carried on the wire. It is a plain value type so it can be copied into
// ring slots without any heap allocation.
type Frame struct {
	Sequence  uint32
	Timestamp uint32
	Samples   [SamplesPerFrame]int16
}

// Serialize writes the frame to buf in wire format (little-endian sequence,
// little-endian timestamp, 256 bytes of little-endian samples). buf must be
// at least PacketSize bytes.
func (f *Frame) Serialize(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], f.Sequence)
	binary.LittleEndian.PutUint32(buf[4:8], f.Timestamp)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
}

// Deserialize populates the frame from wire-format bytes. buf must be at
// least PacketSize bytes; callers are responsible for discarding shorter
// datagrams before calling this (spec invariant: <264 bytes is silently
// dropped).
func (f *Frame) Deserialize(buf []byte) {
	f.Sequence = binary.LittleEndian.Uint32(buf[0:4])
	f.Timestamp = binary.LittleEndian.Uint32(buf[4:8])
	for i := range f.Samples {
		f.Samples[i] = int16(binary.LittleEndian.Uint16(buf[HeaderSize+i*2:]))
	}
}

// RewriteSequence overwrites only the 4-byte sequence prefix of an
// already-serialized packet, leaving the timestamp and payload untouched.
// Used by the two-participant fast path to forward a datagram without a
// full deserialize/reserialize round trip.
func RewriteSequence(buf []byte, sequence uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], sequence)
}

// ScaleSamplesInPlace multiplies every sample in buf's payload by gain,
// rounding half-to-nearest and saturating to the int16 range, rewriting
// the bytes in place. buf must be a valid PacketSize-length packet.
func ScaleSamplesInPlace(buf []byte, gain float64) {
	for i := 0; i < SamplesPerFrame; i++ {
		off := HeaderSize + i*2
		sample := int16(binary.LittleEndian.Uint16(buf[off:]))
		scaled := SaturateSample(math.Round(float64(sample) * gain))
		binary.LittleEndian.PutUint16(buf[off:], uint16(scaled))
	}
}

// SaturateSample clamps a rounded accumulator value to the signed 16-bit
// PCM range.
func SaturateSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
