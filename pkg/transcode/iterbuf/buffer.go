// Package iterbuf implements the incremental byte cursor every parser
// in pkg/transcode is built on: fixed-width big-endian reads, a
// Matroska variable-width integer reader, and rewind/peek/skip. It is
// the read-side twin of nvr/pkg/video/mp4/bitio - that package buffers
// writes for the muxer, this one buffers reads for the two demuxers.
package iterbuf

import (
	"encoding/binary"
	"fmt"
)

// IncompleteError is returned whenever a read needs more bytes than
// the buffer currently holds. It is deliberately not one of the
// package-level sentinel errors in pkg/transcode/errors.go: callers
// distinguish it with errors.As, not errors.Is, because it carries no
// identity worth comparing - only the fact that more input is needed.
type IncompleteError struct {
	// Needed is how many more bytes would satisfy the read.
	Needed int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("iterbuf: incomplete read, need %d more bytes", e.Needed)
}

// Buffer is a cursor over a byte slice that grows as more input
// arrives. Every compound read either succeeds and advances the
// cursor, or fails with *IncompleteError and leaves the cursor
// exactly where it was before the read started.
type Buffer struct {
	buf []byte
	off int
}

// New wraps buf. The caller owns buf and may append to it between
// calls (via Append) as more bytes arrive on the wire.
func New(buf []byte) *Buffer {
	return &Buffer{buf: buf}
}

// Append grows the underlying buffer with newly-received bytes.
func (b *Buffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Offset returns the cursor's current position.
func (b *Buffer) Offset() int64 {
	return int64(b.off)
}

// Remaining returns how many unread bytes the buffer currently holds.
func (b *Buffer) Remaining() int {
	return len(b.buf) - b.off
}

// Rewind moves the cursor back n bytes. It panics if that would move
// the cursor before the start of the buffer - a programmer error,
// since callers always rewind to a previously-observed offset.
func (b *Buffer) Rewind(n int) {
	if b.off-n < 0 {
		panic("iterbuf: rewind past start of buffer")
	}
	b.off -= n
}

// Skip advances the cursor n bytes without returning them. Fails with
// *IncompleteError (cursor unchanged) if fewer than n bytes remain.
func (b *Buffer) Skip(n int) error {
	if b.Remaining() < n {
		return &IncompleteError{Needed: n - b.Remaining()}
	}
	b.off += n
	return nil
}

// Peek returns the next n bytes without advancing the cursor. Fails
// with *IncompleteError if fewer than n bytes remain.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if b.Remaining() < n {
		return nil, &IncompleteError{Needed: n - b.Remaining()}
	}
	return b.buf[b.off : b.off+n], nil
}

// ReadBytes reads and returns the next n bytes, advancing the cursor.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.Peek(n)
	if err != nil {
		return nil, err
	}
	b.off += n
	return p, nil
}

// ReadUint reads an n-byte (n in {1,2,3,4,8}) big-endian unsigned
// integer, returned widened to uint64.
func (b *Buffer) ReadUint(n int) (uint64, error) {
	p, err := b.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	switch n {
	case 1:
		return uint64(p[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(p)), nil
	case 3:
		return uint64(p[0])<<16 | uint64(p[1])<<8 | uint64(p[2]), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(p)), nil
	case 8:
		return binary.BigEndian.Uint64(p), nil
	default:
		panic(fmt.Sprintf("iterbuf: unsupported width %d", n))
	}
}

// ReadFixedString reads n bytes and interprets them as a UTF-8 string,
// stopping at the first NUL byte if one is present.
func (b *Buffer) ReadFixedString(n int) (string, error) {
	p, err := b.ReadBytes(n)
	if err != nil {
		return "", err
	}
	for i, c := range p {
		if c == 0 {
			return string(p[:i]), nil
		}
	}
	return string(p), nil
}

// vintWidth returns the width in bytes encoded by a VINT's leading
// byte, by locating the highest set bit (the marker bit), and the
// mask needed to strip that marker. A leading byte of 0 is invalid:
// VINT widths top out at 8 bytes, per spec.md's "range >= 2^56 is
// reserved".
func vintWidth(first byte) (width int, markerMask byte, ok bool) {
	mask := byte(0x80)
	for w := 1; w <= 8; w++ {
		if first&mask != 0 {
			return w, mask, true
		}
		mask >>= 1
	}
	return 0, 0, false
}

// ReadVint reads a Matroska variable-width integer with its marker
// bit stripped, per spec.md §4.A.
func (b *Buffer) ReadVint() (uint64, error) {
	return b.readVint(false)
}

// ReadMatroskaID reads a VINT but retains the marker bit, since EBML
// element IDs are identified by their on-the-wire form including it.
func (b *Buffer) ReadMatroskaID() (uint32, error) {
	v, err := b.readVint(true)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (b *Buffer) readVint(keepMarker bool) (uint64, error) {
	start := b.off

	first, err := b.Peek(1)
	if err != nil {
		return 0, err
	}
	width, mask, ok := vintWidth(first[0])
	if !ok {
		b.off = start
		return 0, fmt.Errorf("iterbuf: invalid vint leading byte 0x%02x", first[0])
	}

	raw, err := b.ReadBytes(width)
	if err != nil {
		b.off = start
		return 0, err
	}

	var result uint64
	if keepMarker {
		result = uint64(raw[0])
	} else {
		result = uint64(raw[0] &^ mask)
	}
	for _, c := range raw[1:] {
		result = result<<8 | uint64(c)
	}
	return result, nil
}
