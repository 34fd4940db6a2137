// Package isobmff implements the streaming ISO Base Media File Format
// (MP4, fragmented and non-fragmented) demuxer: a box-tree reader,
// track-descriptor extraction and sample-position resolution.
//
// The box type table and container/leaf classification below are
// grounded on the box catalog in the tetsuo/isobmff and tetsuo/bmff
// reference parsers; the one-struct-per-box-type shape mirrors
// nvr/pkg/video/mp4/box_types.go, inverted from marshaling to
// parsing.
package isobmff

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
)

// Type is a 4-byte box type (FourCC).
type Type [4]byte

func (t Type) String() string { return string(t[:]) }

// Well-known box types this parser recognizes.
var (
	TypeFtyp = Type{'f', 't', 'y', 'p'}
	TypeStyp = Type{'s', 't', 'y', 'p'}
	TypeMoov = Type{'m', 'o', 'o', 'v'}
	TypeMvhd = Type{'m', 'v', 'h', 'd'}
	TypeTrak = Type{'t', 'r', 'a', 'k'}
	TypeTkhd = Type{'t', 'k', 'h', 'd'}
	TypeEdts = Type{'e', 'd', 't', 's'}
	TypeElst = Type{'e', 'l', 's', 't'}
	TypeMdia = Type{'m', 'd', 'i', 'a'}
	TypeMdhd = Type{'m', 'd', 'h', 'd'}
	TypeHdlr = Type{'h', 'd', 'l', 'r'}
	TypeMinf = Type{'m', 'i', 'n', 'f'}
	TypeVmhd = Type{'v', 'm', 'h', 'd'}
	TypeSmhd = Type{'s', 'm', 'h', 'd'}
	TypeNmhd = Type{'n', 'm', 'h', 'd'}
	TypeDinf = Type{'d', 'i', 'n', 'f'}
	TypeDref = Type{'d', 'r', 'e', 'f'}
	TypeStbl = Type{'s', 't', 'b', 'l'}
	TypeStsd = Type{'s', 't', 's', 'd'}
	TypeStts = Type{'s', 't', 't', 's'}
	TypeCtts = Type{'c', 't', 't', 's'}
	TypeStsc = Type{'s', 't', 's', 'c'}
	TypeStsz = Type{'s', 't', 's', 'z'}
	TypeStz2 = Type{'s', 't', 'z', '2'}
	TypeStco = Type{'s', 't', 'c', 'o'}
	TypeCo64 = Type{'c', 'o', '6', '4'}
	TypeStss = Type{'s', 't', 's', 's'}
	TypeMvex = Type{'m', 'v', 'e', 'x'}
	TypeTrex = Type{'t', 'r', 'e', 'x'}
	TypeMoof = Type{'m', 'o', 'o', 'f'}
	TypeMfhd = Type{'m', 'f', 'h', 'd'}
	TypeTraf = Type{'t', 'r', 'a', 'f'}
	TypeTfhd = Type{'t', 'f', 'h', 'd'}
	TypeTfdt = Type{'t', 'f', 'd', 't'}
	TypeTrun = Type{'t', 'r', 'u', 'n'}
	TypeMfra = Type{'m', 'f', 'r', 'a'}
	TypeMdat = Type{'m', 'd', 'a', 't'}
	TypeFree = Type{'f', 'r', 'e', 'e'}
	TypeSkip = Type{'s', 'k', 'i', 'p'}
	TypeAvc1 = Type{'a', 'v', 'c', '1'}
	TypeHev1 = Type{'h', 'e', 'v', '1'}
	TypeAvcC = Type{'a', 'v', 'c', 'C'}
	TypeHvcC = Type{'h', 'v', 'c', 'C'}
	TypeMp4a = Type{'m', 'p', '4', 'a'}
	TypeEsds = Type{'e', 's', 'd', 's'}
	TypeOpus = Type{'O', 'p', 'u', 's'}
	TypeDOps = Type{'d', 'O', 'p', 's'}
	TypePasp = Type{'p', 'a', 's', 'p'}
	TypeBtrt = Type{'b', 't', 'r', 't'}
)

// containerTypes recurses into these; everything else is a leaf,
// decoded by a per-type function or preserved opaque if unrecognized.
var containerTypes = map[Type]bool{
	TypeMoov: true, TypeTrak: true, TypeMdia: true, TypeMinf: true,
	TypeStbl: true, TypeDinf: true, TypeEdts: true, TypeMvex: true,
	TypeMoof: true, TypeTraf: true, TypeMfra: true,
}

// IsContainer reports whether t recurses into children rather than
// carrying a fixed-layout payload.
func IsContainer(t Type) bool { return containerTypes[t] }

// Box is one parsed node: every box carries its type, byte offset and
// length; either typed Body fields (for a recognized leaf) or
// ordered Children (for a container). Unknown leaf types are kept as
// Body == nil with Payload set, per spec.md §4.B - "unknown box types
// are preserved as opaque {type, offset, length, payload} and ignored
// by downstream logic".
type Box struct {
	Type     Type
	Offset   int64
	Size     int64
	Body     interface{}
	Payload  []byte // only set for unrecognized leaves
	Children []Box
}

// MalformedBoxError reports a required field missing or invalid in an
// otherwise-recognized box, per spec.md §4.B.
type MalformedBoxError struct {
	BoxType Type
	Offset  int64
	Reason  string
}

func (e *MalformedBoxError) Error() string {
	return fmt.Sprintf("isobmff: malformed %s box at offset %d: %s", e.BoxType, e.Offset, e.Reason)
}

func (e *MalformedBoxError) Unwrap() error { return transcode.ErrMalformedContainer }

func malformed(t Type, offset int64, reason string, args ...interface{}) error {
	return &MalformedBoxError{BoxType: t, Offset: offset, Reason: fmt.Sprintf(reason, args...)}
}
