package pipeline

import (
	"fmt"
	"sort"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/isobmff"
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
	"github.com/videopipe/transcodecore/pkg/transcode/matroska"
	"github.com/videopipe/transcodecore/pkg/transcode/sampletable"
)

// ebmlMagic is the EBML Header element's ID, used to tell a Matroska
// source apart from an ISO-BMFF one without a file extension - the
// same kind of leading-bytes sniff nvr/pkg/video/mp4 never needed
// (the teacher only ever writes MP4, never has to guess what it's
// reading).
var ebmlMagic = [4]byte{0x1A, 0x45, 0xDF, 0xA3}

// demuxResult is the normalized output of either demuxer: every
// track's descriptor, and every sample from every track merged into
// one globally timestamp-ordered chunk stream, ready for the
// controller to route each chunk to its track's copy or transcode
// path in a single pass.
type demuxResult struct {
	tracks []transcode.Track
	chunks []transcode.Chunk
}

func demux(data []byte) (*demuxResult, error) {
	if len(data) >= 4 && data[0] == ebmlMagic[0] && data[1] == ebmlMagic[1] &&
		data[2] == ebmlMagic[2] && data[3] == ebmlMagic[3] {
		return demuxMatroska(data)
	}
	return demuxISOBMFF(data)
}

func findBox(boxes []isobmff.Box, t isobmff.Type) (isobmff.Box, bool) {
	for _, b := range boxes {
		if b.Type == t {
			return b, true
		}
	}
	return isobmff.Box{}, false
}

func findBoxes(boxes []isobmff.Box, t isobmff.Type) []isobmff.Box {
	var out []isobmff.Box
	for _, b := range boxes {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

func descendBoxes(boxes []isobmff.Box, path ...isobmff.Type) (isobmff.Box, bool) {
	cur := boxes
	var last isobmff.Box
	for _, t := range path {
		b, ok := findBox(cur, t)
		if !ok {
			return isobmff.Box{}, false
		}
		last = b
		cur = b.Children
	}
	return last, true
}

// demuxISOBMFF reads a non-fragmented (single moov, single or
// interleaved mdat) MP4/MOV-family file. Fragmented (moof/traf)
// sources already have their sample-position math in
// pkg/transcode/sampletable/fragment.go - wiring that in as a second
// input path is a followup, not done here.
func demuxISOBMFF(data []byte) (*demuxResult, error) {
	boxes, err := isobmff.ReadBoxes(iterbuf.New(data), -1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transcode.ErrMalformedContainer, err)
	}
	moov, ok := findBox(boxes, isobmff.TypeMoov)
	if !ok {
		return nil, fmt.Errorf("%w: no moov box", transcode.ErrMalformedContainer)
	}
	traks := findBoxes(moov.Children, isobmff.TypeTrak)
	if len(traks) == 0 {
		return nil, fmt.Errorf("%w: moov has no trak", transcode.ErrMalformedContainer)
	}

	result := &demuxResult{}
	for _, trak := range traks {
		track, err := isobmff.BuildTrack(trak.Children)
		if err != nil {
			return nil, err
		}
		if track.Kind == transcode.TrackOther {
			continue
		}
		stbl, ok := descendBoxes(trak.Children, isobmff.TypeMdia, isobmff.TypeMinf, isobmff.TypeStbl)
		if !ok {
			return nil, fmt.Errorf("%w: track %d missing stbl", transcode.ErrMalformedContainer, track.TrackID)
		}
		positions, err := sampletable.Resolve(stbl.Children)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			end := p.FileOffset + uint64(p.Size)
			if end > uint64(len(data)) {
				return nil, fmt.Errorf("%w: sample for track %d overruns source", transcode.ErrMalformedContainer, track.TrackID)
			}
			result.chunks = append(result.chunks, transcode.Chunk{
				TrackID:         track.TrackID,
				Data:            data[p.FileOffset:end],
				TimestampMicros: transcode.TimescaleToMicros(p.DTS, track.Timescale),
				DurationMicros:  uint32(transcode.TimescaleToMicros(int64(p.Duration), track.Timescale)),
				IsKeyframe:      p.IsKeyframe,
			})
		}
		result.tracks = append(result.tracks, track)
	}

	sortChunksStable(result.chunks)
	return result, nil
}

// demuxMatroska reads a Matroska/WebM source. It walks Clusters
// directly instead of going through matroska.ResolveClusters: that
// resolver only reports sample position/timing (it's built to answer
// "where and when", for diagnostics), and intentionally drops the
// decoded frame bytes once it has measured their length. The
// conversion pipeline needs the bytes themselves, so this function
// calls the same DecodeSimpleBlock/DecodeBlock/ResolveBlockGroupKeyframe
// primitives ResolveClusters is built on, directly.
func demuxMatroska(data []byte) (*demuxResult, error) {
	top, err := matroska.ReadTopLevel(iterbuf.New(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transcode.ErrMalformedContainer, err)
	}
	var segment *matroska.Element
	for i := range top {
		if top[i].ID == matroska.IDSegment {
			segment = &top[i]
			break
		}
	}
	if segment == nil {
		return nil, fmt.Errorf("%w: no Segment element", transcode.ErrMalformedContainer)
	}

	tracks, err := matroska.ExtractTracks(segment.Children)
	if err != nil {
		return nil, err
	}
	info := matroska.ExtractSegmentInfo(segment.Children)
	scale := info.TimestampScale
	if scale == 0 {
		scale = 1_000_000
	}

	result := &demuxResult{tracks: tracks}
	for _, cluster := range segment.Children {
		if cluster.ID != matroska.IDCluster {
			continue
		}
		var clusterTicks int64
		for _, c := range cluster.Children {
			if c.ID == matroska.IDTimestamp {
				if v, ok := c.Body.(uint64); ok {
					clusterTicks = int64(v)
				}
			}
		}
		for _, child := range cluster.Children {
			switch child.ID {
			case matroska.IDSimpleBlock:
				chunks, err := decodeSimpleBlockChunks(child, clusterTicks, scale)
				if err != nil {
					return nil, err
				}
				result.chunks = append(result.chunks, chunks...)
			case matroska.IDBlockGroup:
				chunks, err := decodeBlockGroupChunks(child, clusterTicks, scale)
				if err != nil {
					return nil, err
				}
				result.chunks = append(result.chunks, chunks...)
			}
		}
	}

	sortChunksStable(result.chunks)
	fillMissingDurations(result.chunks)
	return result, nil
}

func decodeSimpleBlockChunks(el matroska.Element, clusterTicks int64, scale uint64) ([]transcode.Chunk, error) {
	decoded, err := matroska.DecodeSimpleBlock(el.Payload)
	if err != nil {
		return nil, err
	}
	return blockFramesToChunks(decoded, clusterTicks, scale, 0), nil
}

func decodeBlockGroupChunks(el matroska.Element, clusterTicks int64, scale uint64) ([]transcode.Chunk, error) {
	var blockPayload []byte
	var blockDurationTicks uint64
	for _, c := range el.Children {
		switch c.ID {
		case matroska.IDBlock:
			blockPayload = c.Payload
		case matroska.IDBlockDuration:
			if v, ok := c.Body.(uint64); ok {
				blockDurationTicks = v
			}
		}
	}
	if blockPayload == nil {
		return nil, fmt.Errorf("%w: BlockGroup missing Block", transcode.ErrMalformedContainer)
	}
	decoded, err := matroska.DecodeBlock(blockPayload)
	if err != nil {
		return nil, err
	}
	decoded.Keyframe = matroska.ResolveBlockGroupKeyframe(el.Children)
	return blockFramesToChunks(decoded, clusterTicks, scale, blockDurationTicks), nil
}

func blockFramesToChunks(d matroska.DecodedBlock, clusterTicks int64, scale uint64, durationTicks uint64) []transcode.Chunk {
	tsMicros := ticksToMicros(clusterTicks+int64(d.Timestamp), scale)
	durationMicros := uint32(ticksToMicros(int64(durationTicks), scale))
	chunks := make([]transcode.Chunk, 0, len(d.Frames))
	for _, f := range d.Frames {
		chunks = append(chunks, transcode.Chunk{
			TrackID:         uint32(d.TrackNumber),
			Data:            f,
			TimestampMicros: tsMicros,
			DurationMicros:  durationMicros,
			IsKeyframe:      d.Keyframe,
		})
	}
	return chunks
}

func ticksToMicros(ticks int64, scale uint64) int64 {
	return ticks * int64(scale) / 1000
}

// sortChunksStable orders chunks by timestamp, breaking ties by track
// ID so interleaved video/audio samples sharing a timestamp come out
// in a deterministic order rather than whatever order the demuxer
// happened to visit tracks in.
func sortChunksStable(chunks []transcode.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].TimestampMicros != chunks[j].TimestampMicros {
			return chunks[i].TimestampMicros < chunks[j].TimestampMicros
		}
		return chunks[i].TrackID < chunks[j].TrackID
	})
}

// fillMissingDurations backfills a zero DurationMicros from the next
// chunk on the same track (Matroska doesn't carry an explicit
// per-sample duration the way stts does; BlockDuration is optional
// and frequently absent). A track's last chunk reuses its
// predecessor's duration, since there's no following sample to derive
// one from.
func fillMissingDurations(chunks []transcode.Chunk) {
	indicesByTrack := make(map[uint32][]int)
	for i, c := range chunks {
		indicesByTrack[c.TrackID] = append(indicesByTrack[c.TrackID], i)
	}
	for _, idxs := range indicesByTrack {
		for n, i := range idxs {
			if chunks[i].DurationMicros != 0 {
				continue
			}
			switch {
			case n+1 < len(idxs):
				next := idxs[n+1]
				chunks[i].DurationMicros = uint32(chunks[next].TimestampMicros - chunks[i].TimestampMicros)
			case n > 0:
				chunks[i].DurationMicros = chunks[idxs[n-1]].DurationMicros
			}
		}
	}
}
