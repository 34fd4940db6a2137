package matroska

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// Element is one parsed EBML node: an ID, its declared size (or -1
// for the "unknown size" convention streamed Matroska/WebM files use
// on Segment and Cluster - all size bits set to 1), and either a
// decoded Body, opaque Payload, or recursed Children.
type Element struct {
	ID       uint32
	Offset   int64
	Size     int64 // -1 means unknown/to-EOF
	Body     interface{}
	Payload  []byte
	Children []Element
}

// unknownSizeValue is the VINT all-ones sentinel. The Matroska spec
// reserves each width's all-ones encoding to mean "size unknown";
// this demuxer interprets it as "read children until the next
// sibling at this element's nesting level doesn't parse as a valid
// child ID", which in practice means "to EOF" for a top-level Segment
// and "until the next Cluster ID" for a Cluster.
const unknownSizeValue = ^uint64(0)

func vintMaxForWidth(width int) uint64 {
	return (uint64(1) << uint(7*width)) - 1
}

// ReadElement reads one element header (ID + size) at the buffer's
// current offset and either decodes/stores its body (for a leaf) or
// recurses into children (for a master element), stopping children at
// the element's own declared end - or, for an unknown-size element,
// at limit (the enclosing scope's end, or -1 for "to EOF").
func ReadElement(b *iterbuf.Buffer, enclosingLimit int64) (Element, error) {
	start := b.Offset()

	id, err := b.ReadMatroskaID()
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Element{}, err
	}

	sizeStart := b.Offset()
	firstByte, err := b.Peek(1)
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Element{}, err
	}
	width, _, ok := vintWidthFor(firstByte[0])
	if !ok {
		b.Rewind(int(b.Offset() - start))
		return Element{}, fmt.Errorf("%w: invalid element size VINT at offset %d", transcode.ErrMalformedContainer, sizeStart)
	}
	sizeVal, err := b.ReadVint()
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Element{}, err
	}

	unknownSize := sizeVal == vintMaxForWidth(width)

	var end int64
	if !unknownSize {
		end = b.Offset() + int64(sizeVal)
	}

	if isMasterElement(id) {
		limit := end
		if unknownSize {
			limit = enclosingLimit
		}
		children, err := readChildren(b, limit, id)
		if err != nil {
			return Element{}, err
		}
		size := int64(-1)
		if !unknownSize {
			size = sizeVal
		}
		return Element{ID: id, Offset: start, Size: size, Children: children}, nil
	}

	if unknownSize {
		return Element{}, fmt.Errorf("%w: leaf element 0x%X has unknown size", transcode.ErrMalformedContainer, id)
	}

	payload, err := b.ReadBytes(int(sizeVal))
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Element{}, err
	}

	body, decodeErr := decodeLeaf(id, start, payload)
	if decodeErr != nil {
		return Element{}, decodeErr
	}
	if body == nil {
		return Element{ID: id, Offset: start, Size: sizeVal, Payload: payload}, nil
	}
	return Element{ID: id, Offset: start, Size: sizeVal, Body: body}, nil
}

// readChildren reads sibling elements until limit (or, for
// limit == -1, until the buffer is exhausted). Children of a Cluster
// also stop at the next Cluster ID, which closes an unknown-size
// Cluster where the next one begins.
func readChildren(b *iterbuf.Buffer, limit int64, parentID uint32) ([]Element, error) {
	var children []Element
	for {
		if limit >= 0 && b.Offset() >= limit {
			break
		}
		if limit < 0 && b.Remaining() == 0 {
			break
		}
		if parentID == IDCluster && peekIsNextCluster(b) {
			break
		}
		child, err := ReadElement(b, limit)
		if err != nil {
			return children, err
		}
		children = append(children, child)
		if limit >= 0 && b.Offset() >= limit {
			break
		}
	}
	return children, nil
}

// peekIsNextCluster reports whether the buffer's current offset holds
// a Cluster ID, used to close an unknown-size Cluster exactly where
// the next one begins.
func peekIsNextCluster(b *iterbuf.Buffer) bool {
	p, err := b.Peek(4)
	if err != nil {
		return false
	}
	return uint32(p[0])<<24|uint32(p[1])<<16|uint32(p[2])<<8|uint32(p[3]) == IDCluster
}

func vintWidthFor(first byte) (int, byte, bool) {
	mask := byte(0x80)
	for w := 1; w <= 8; w++ {
		if first&mask != 0 {
			return w, mask, true
		}
		mask >>= 1
	}
	return 0, 0, false
}
