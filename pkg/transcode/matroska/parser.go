package matroska

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// ReadTopLevel reads the EBML Header and Segment as sibling top-level
// elements. On an IncompleteError the buffer is left exactly where it
// started, so the caller can append more bytes and retry - the same
// incremental contract isobmff.ReadBoxes gives its callers.
func ReadTopLevel(b *iterbuf.Buffer) ([]Element, error) {
	start := b.Offset()
	els, err := readChildren(b, -1, 0)
	if err != nil {
		b.Rewind(int(b.Offset() - start))
	}
	return els, err
}

// SegmentInfo is the decoded contents of a Segment's Info element.
type SegmentInfo struct {
	TimestampScale uint64
	DurationTicks  float64
}

// ExtractSegmentInfo reads TimestampScale (defaulting to 1000000, one
// millisecond, per the Matroska spec's documented default) and
// Duration from a Segment's children.
func ExtractSegmentInfo(segmentChildren []Element) SegmentInfo {
	info := SegmentInfo{TimestampScale: 1000000}
	infoEl, ok := findChild(segmentChildren, IDInfo)
	if !ok {
		return info
	}
	if scale, ok := uintValue(infoEl.Children, IDTimestampScale); ok && scale != 0 {
		info.TimestampScale = scale
	}
	if dur, ok := floatValue(infoEl.Children, IDDuration); ok {
		info.DurationTicks = dur
	}
	return info
}

// ExtractTracks builds a transcode.Track for every TrackEntry in a
// Segment's Tracks element.
func ExtractTracks(segmentChildren []Element) ([]transcode.Track, error) {
	tracksEl, ok := findChild(segmentChildren, IDTracks)
	if !ok {
		return nil, fmt.Errorf("%w: Segment missing Tracks", transcode.ErrMalformedContainer)
	}
	var tracks []transcode.Track
	for _, entry := range tracksEl.Children {
		if entry.ID != IDTrackEntry {
			continue
		}
		track, err := BuildTrack(entry.Children)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// RawSample is one decoded block's position and timing, in the
// Segment's native tick units (not yet converted to microseconds);
// the caller scales Timestamp by SegmentInfo.TimestampScale.
type RawSample struct {
	TrackNumber uint32
	Offset      int64
	Size        int64
	Timestamp   int64
	IsKeyframe  bool
}

// ResolveClusters walks every Cluster in a Segment and flattens its
// SimpleBlock and BlockGroup children into RawSample records, each
// carrying an absolute timestamp (Cluster.Timestamp + the block's
// relative 16-bit offset). Grounded on
// luispater-matroska-go/parser.go's ReadPacket loop, restructured as
// a one-pass walk over an already-built element tree rather than a
// live read loop, matching how sampletable.Resolve walks an
// already-built isobmff box tree.
func ResolveClusters(segmentChildren []Element) ([]RawSample, error) {
	var samples []RawSample
	for _, cluster := range segmentChildren {
		if cluster.ID != IDCluster {
			continue
		}
		clusterTime, ok := uintValue(cluster.Children, IDTimestamp)
		if !ok {
			return nil, fmt.Errorf("%w: Cluster missing Timestamp", transcode.ErrMalformedContainer)
		}
		for _, child := range cluster.Children {
			switch child.ID {
			case IDSimpleBlock:
				s, err := resolveSimpleBlock(child, int64(clusterTime))
				if err != nil {
					return nil, err
				}
				samples = append(samples, s...)
			case IDBlockGroup:
				s, err := resolveBlockGroup(child, int64(clusterTime))
				if err != nil {
					return nil, err
				}
				samples = append(samples, s...)
			}
		}
	}
	return samples, nil
}

func resolveSimpleBlock(el Element, clusterTime int64) ([]RawSample, error) {
	decoded, err := DecodeSimpleBlock(el.Payload)
	if err != nil {
		return nil, err
	}
	return framesToSamples(decoded, el.Offset, clusterTime), nil
}

func resolveBlockGroup(el Element, clusterTime int64) ([]RawSample, error) {
	blockEl, ok := findChild(el.Children, IDBlock)
	if !ok {
		return nil, fmt.Errorf("%w: BlockGroup missing Block", transcode.ErrMalformedContainer)
	}
	decoded, err := DecodeBlock(blockEl.Payload)
	if err != nil {
		return nil, err
	}
	decoded.Keyframe = ResolveBlockGroupKeyframe(el.Children)
	return framesToSamples(decoded, blockEl.Offset, clusterTime), nil
}

func framesToSamples(d DecodedBlock, offset int64, clusterTime int64) []RawSample {
	samples := make([]RawSample, 0, len(d.Frames))
	// Frame offsets within a laced block aren't separately tracked by
	// this resolver (the codec stage consumes the whole decoded frame
	// slice directly rather than re-reading from file); Offset is the
	// block's own SimpleBlock/Block element offset and Size the total
	// length of its frames, used only for diagnostics.
	size := int64(0)
	for _, f := range d.Frames {
		size += int64(len(f))
	}
	for range d.Frames {
		samples = append(samples, RawSample{
			TrackNumber: uint32(d.TrackNumber),
			Offset:      offset,
			Size:        size,
			Timestamp:   clusterTime + int64(d.Timestamp),
			IsKeyframe:  d.Keyframe,
		})
	}
	return samples
}
