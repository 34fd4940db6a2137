package matroska

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// Block flag bits (SimpleBlock only; Block within a BlockGroup has no
// keyframe/invisible bits of its own - that track's BlockGroup
// determines it via ReferenceBlock).
const (
	blockFlagKeyframe = 0x80
	blockFlagInvisible = 0x08
	blockFlagLacingMask = 0x06
	blockFlagDiscardable = 0x01
)

// DecodedBlock is one SimpleBlock or Block payload, fully unlaced
// into its constituent frames.
type DecodedBlock struct {
	TrackNumber uint64
	Timestamp   int16 // relative to the enclosing Cluster's Timestamp
	Keyframe    bool
	Frames      [][]byte
}

// DecodeSimpleBlock parses a SimpleBlock's raw payload: VINT track
// number, 16-bit signed relative timestamp, flags byte, then
// (optionally laced) frame data - per spec.md §5.D.
func DecodeSimpleBlock(payload []byte) (DecodedBlock, error) {
	b := iterbuf.New(payload)
	trackNumber, err := b.ReadVint()
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("%w: SimpleBlock truncated track number", transcode.ErrMalformedContainer)
	}
	tsRaw, err := b.ReadUint(2)
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("%w: SimpleBlock truncated timestamp", transcode.ErrMalformedContainer)
	}
	flagsRaw, err := b.ReadUint(1)
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("%w: SimpleBlock truncated flags", transcode.ErrMalformedContainer)
	}
	flags := byte(flagsRaw)

	rest, err := b.ReadBytes(b.Remaining())
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("%w: SimpleBlock truncated frame data", transcode.ErrMalformedContainer)
	}
	frames, err := unlace(flags&blockFlagLacingMask, rest)
	if err != nil {
		return DecodedBlock{}, err
	}

	return DecodedBlock{
		TrackNumber: trackNumber,
		Timestamp:   int16(tsRaw),
		Keyframe:    flags&blockFlagKeyframe != 0,
		Frames:      frames,
	}, nil
}

// DecodeBlock parses a (non-Simple) Block's raw payload, found inside
// a BlockGroup. It has the same track number/timestamp/flags/frame
// layout as SimpleBlock, except the keyframe bit is always absent -
// BlockGroup keyframe status comes from whether a ReferenceBlock
// child is present (see ResolveBlockGroupKeyframe).
func DecodeBlock(payload []byte) (DecodedBlock, error) {
	d, err := DecodeSimpleBlock(payload)
	d.Keyframe = false
	return d, err
}

// ResolveBlockGroupKeyframe reports whether a BlockGroup represents a
// keyframe: per spec.md §5.D, a BlockGroup with no ReferenceBlock
// child is a keyframe (it references nothing), one with at least one
// ReferenceBlock is not.
func ResolveBlockGroupKeyframe(children []Element) bool {
	_, hasReference := findChild(children, IDReferenceBlock)
	return !hasReference
}

func unlace(lacing byte, data []byte) ([][]byte, error) {
	if lacing == LacingNone {
		return [][]byte{data}, nil
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: laced block missing frame count", transcode.ErrMalformedContainer)
	}
	frameCount := int(data[0]) + 1
	rest := data[1:]

	switch lacing {
	case LacingFixed:
		return unlaceFixed(frameCount, rest)
	case LacingXiph:
		return unlaceXiph(frameCount, rest)
	case LacingEBML:
		return unlaceEBML(frameCount, rest)
	default:
		return nil, fmt.Errorf("%w: unknown lacing type 0x%x", transcode.ErrMalformedContainer, lacing)
	}
}

func unlaceFixed(frameCount int, rest []byte) ([][]byte, error) {
	if frameCount <= 0 || len(rest)%frameCount != 0 {
		return nil, fmt.Errorf("%w: fixed lacing frame count %d does not evenly divide %d bytes",
			transcode.ErrMalformedContainer, frameCount, len(rest))
	}
	size := len(rest) / frameCount
	frames := make([][]byte, frameCount)
	for i := 0; i < frameCount; i++ {
		frames[i] = rest[i*size : (i+1)*size]
	}
	return frames, nil
}

func unlaceXiph(frameCount int, rest []byte) ([][]byte, error) {
	sizes := make([]int, frameCount-1)
	pos := 0
	for i := 0; i < frameCount-1; i++ {
		size := 0
		for {
			if pos >= len(rest) {
				return nil, fmt.Errorf("%w: Xiph lacing size truncated", transcode.ErrMalformedContainer)
			}
			size += int(rest[pos])
			b := rest[pos]
			pos++
			if b != 0xFF {
				break
			}
		}
		sizes[i] = size
	}
	frames := make([][]byte, 0, frameCount)
	for _, size := range sizes {
		if pos+size > len(rest) {
			return nil, fmt.Errorf("%w: Xiph lacing frame overruns block", transcode.ErrMalformedContainer)
		}
		frames = append(frames, rest[pos:pos+size])
		pos += size
	}
	if pos > len(rest) {
		return nil, fmt.Errorf("%w: Xiph lacing overruns block", transcode.ErrMalformedContainer)
	}
	frames = append(frames, rest[pos:])
	return frames, nil
}

// unlaceEBML decodes EBML lacing: the first frame's size is a plain
// VINT, every subsequent size is a signed VINT delta from the
// previous size, and the final frame's size is whatever remains.
func unlaceEBML(frameCount int, rest []byte) ([][]byte, error) {
	b := iterbuf.New(rest)
	sizes := make([]int64, frameCount-1)
	first, err := b.ReadVint()
	if err != nil {
		return nil, fmt.Errorf("%w: EBML lacing first size truncated", transcode.ErrMalformedContainer)
	}
	sizes[0] = int64(first)
	for i := 1; i < frameCount-1; i++ {
		delta, err := readSignedVint(b)
		if err != nil {
			return nil, fmt.Errorf("%w: EBML lacing delta truncated", transcode.ErrMalformedContainer)
		}
		sizes[i] = sizes[i-1] + delta
		if sizes[i] < 0 {
			return nil, fmt.Errorf("%w: EBML lacing produced negative size", transcode.ErrMalformedContainer)
		}
	}

	frames := make([][]byte, 0, frameCount)
	for _, size := range sizes {
		f, err := b.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%w: EBML lacing frame overruns block", transcode.ErrMalformedContainer)
		}
		frames = append(frames, f)
	}
	last, err := b.ReadBytes(b.Remaining())
	if err != nil {
		return nil, fmt.Errorf("%w: EBML lacing final frame truncated", transcode.ErrMalformedContainer)
	}
	frames = append(frames, last)
	return frames, nil
}

// readSignedVint reads a VINT and rebiases it to a signed delta: the
// EBML spec encodes a lace-size delta as (value - (2^(7*width-1) -
// 1)), so a width-1 VINT spans [-63, 64] and so on.
func readSignedVint(b *iterbuf.Buffer) (int64, error) {
	start := b.Offset()
	first, err := b.Peek(1)
	if err != nil {
		return 0, err
	}
	width, _, ok := vintWidthFor(first[0])
	if !ok {
		return 0, fmt.Errorf("invalid vint leading byte")
	}
	raw, err := b.ReadVint()
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return 0, err
	}
	bias := int64(1)<<uint(7*width-1) - 1
	return int64(raw) - bias, nil
}
