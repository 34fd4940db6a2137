// Package sampletable resolves a non-fragmented MP4 track's stbl
// tables into a flat, randomly-seekable list of sample positions, and
// separately walks a fragmented MP4's moof/mdat pairs to the same
// shape. Both resolvers are grounded on how
// nvr/pkg/video/mp4muxer/muxer.go builds its own stco/stsz/stts
// tables in reverse - this package is that construction run backward,
// against the same box layouts.
package sampletable

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/isobmff"
)

// Resolve builds the full sample-position list for one non-fragmented
// track from its stbl children (stts, ctts, stsc, stsz/stz2,
// stco/co64, stss), per spec.md §4.C.
func Resolve(stblChildren []Box) ([]transcode.SamplePosition, error) {
	stts, err := requireStts(stblChildren)
	if err != nil {
		return nil, err
	}
	stsz, err := requireStsz(stblChildren)
	if err != nil {
		return nil, err
	}
	stsc, err := requireStsc(stblChildren)
	if err != nil {
		return nil, err
	}
	chunkOffsets, err := requireChunkOffsets(stblChildren)
	if err != nil {
		return nil, err
	}
	ctts := optionalCtts(stblChildren)
	stss := optionalStss(stblChildren)

	sampleCount := int(stsz.SampleCount)

	sizes, err := expandSizes(stsz, sampleCount)
	if err != nil {
		return nil, err
	}
	deltas, err := expandDeltas(stts, sampleCount)
	if err != nil {
		return nil, err
	}
	ctsOffsets := expandCtts(ctts, sampleCount)
	chunkOfSample, sampleInChunkStart, err := expandChunkMap(stsc, sampleCount, len(chunkOffsets))
	if err != nil {
		return nil, err
	}
	keyframes := expandKeyframes(stss, sampleCount)

	positions := make([]transcode.SamplePosition, sampleCount)
	var dts uint64
	offsetWithinChunk := make(map[int]int64)
	for i := 0; i < sampleCount; i++ {
		chunkIdx := chunkOfSample[i]
		if i == sampleInChunkStart[i] {
			offsetWithinChunk[chunkIdx] = 0
		}
		fileOffset := int64(chunkOffsets[chunkIdx]) + offsetWithinChunk[chunkIdx]

		pos := transcode.SamplePosition{
			FileOffset: uint64(fileOffset),
			Size:       sizes[i],
			DTS:        int64(dts),
			CTS:        int64(dts) + int64(ctsOffsets[i]),
			Duration:   deltas[i],
			IsKeyframe: keyframes[i],
		}
		if err := pos.Validate(); err != nil {
			return nil, fmt.Errorf("%w: sample %d: %v", transcode.ErrMalformedContainer, i, err)
		}
		positions[i] = pos

		offsetWithinChunk[chunkIdx] += int64(sizes[i])
		dts += uint64(deltas[i])
	}

	return positions, nil
}

// Box is a narrowed view of isobmff.Box, kept to avoid an import
// cycle concern today but structurally identical - callers pass
// isobmff.Box.Children directly.
type Box = isobmff.Box
