// Package webmmux assembles a streamable Matroska/WebM file from
// encoded chunks: EBML header, a Segment of unknown size, a Tracks
// element, and a rotating sequence of Clusters. It is the WebM
// counterpart to pkg/transcode/isomux, built the same way - accumulate
// in memory, patch a deferred value (Duration here, chunk offsets
// there) once the whole stream is known.
//
// The teacher's pkg/video/mp4/write.go offers fixed-width big-endian
// writes only; EBML additionally needs variable-width "VINT" sizes and
// IDs, which nothing in the teacher's stack writes (matroska, this
// module's own EBML reader, only ever decodes them). This file is
// webmmux's local equivalent of write.go: small helper functions, no
// exported surface, built directly against the ID table matroska
// already carries instead of redefining it.
package webmmux

import (
	"encoding/binary"
	"math"
)

// encodeID returns id's minimal big-endian byte representation. Every
// Matroska element ID's high bits already encode its own width (the
// marker-bit convention VINT sizes also use), so the minimal
// non-zero-leading-byte form is exactly the wire form.
func encodeID(id uint32) []byte {
	switch {
	case id > 0x00FFFFFF:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0x0000FFFF:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	case id > 0x000000FF:
		return []byte{byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id)}
	}
}

// encodeVint encodes v as an EBML variable-width size descriptor,
// picking the narrowest width whose data bits can hold v (each width
// reserves its all-ones value to mean "unknown size", so the usable
// range is one bit short of the full width).
func encodeVint(v uint64) []byte {
	n := 1
	for ; n < 8; n++ {
		if v <= (uint64(1)<<(7*n))-2 {
			break
		}
	}
	buf := make([]byte, n)
	x := v
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(x)
		x >>= 8
	}
	buf[0] |= 1 << (8 - uint(n))
	return buf
}

// unknownSizeVint is the canonical 8-byte "size not known yet" marker
// used for the Segment element, which this package never seeks back
// to patch: every other deferred value (Duration) lives inside a
// child element with an ordinary, known size.
var unknownSizeVint = []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func encodeHeader(id uint32, size int) []byte {
	return append(encodeID(id), encodeVint(uint64(size))...)
}

func encodeElement(id uint32, payload []byte) []byte {
	return append(encodeHeader(id, len(payload)), payload...)
}

func encodeMaster(id uint32, children ...[]byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	return encodeElement(id, payload)
}

// encodeUint writes v as the narrowest unsigned big-endian element,
// at least one byte (a zero-valued uint element is still one byte).
func encodeUint(id uint32, v uint64) []byte {
	n := 1
	for x := v >> 8; x != 0; x >>= 8 {
		n++
	}
	payload := make([]byte, n)
	x := v
	for i := n - 1; i >= 0; i-- {
		payload[i] = byte(x)
		x >>= 8
	}
	return encodeElement(id, payload)
}

// encodeInt writes v as the narrowest two's-complement big-endian
// element that still round-trips its sign.
func encodeInt(id uint32, v int64) []byte {
	n := 1
	for {
		lo := -(int64(1) << (8*uint(n) - 1))
		hi := (int64(1) << (8*uint(n) - 1)) - 1
		if (v >= lo && v <= hi) || n >= 8 {
			break
		}
		n++
	}
	payload := make([]byte, n)
	x := uint64(v)
	for i := n - 1; i >= 0; i-- {
		payload[i] = byte(x)
		x >>= 8
	}
	return encodeElement(id, payload)
}

func encodeString(id uint32, s string) []byte {
	return encodeElement(id, []byte(s))
}

func encodeFloat64(id uint32, v float64) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, math.Float64bits(v))
	return encodeElement(id, payload)
}
