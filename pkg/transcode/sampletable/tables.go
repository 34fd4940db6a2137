package sampletable

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/isobmff"
)

func findChild(boxes []Box, t isobmff.Type) (Box, bool) {
	for _, b := range boxes {
		if b.Type == t {
			return b, true
		}
	}
	return Box{}, false
}

func requireStts(stbl []Box) (*isobmff.Stts, error) {
	b, ok := findChild(stbl, isobmff.TypeStts)
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stts", transcode.ErrMalformedContainer)
	}
	v, ok := b.Body.(*isobmff.Stts)
	if !ok {
		return nil, fmt.Errorf("%w: stts not decoded", transcode.ErrMalformedContainer)
	}
	return v, nil
}

func requireStsz(stbl []Box) (*isobmff.Stsz, error) {
	b, ok := findChild(stbl, isobmff.TypeStsz)
	if !ok {
		b, ok = findChild(stbl, isobmff.TypeStz2)
	}
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stsz/stz2", transcode.ErrMalformedContainer)
	}
	v, ok := b.Body.(*isobmff.Stsz)
	if !ok {
		return nil, fmt.Errorf("%w: stsz not decoded", transcode.ErrMalformedContainer)
	}
	return v, nil
}

func requireStsc(stbl []Box) (*isobmff.Stsc, error) {
	b, ok := findChild(stbl, isobmff.TypeStsc)
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stsc", transcode.ErrMalformedContainer)
	}
	v, ok := b.Body.(*isobmff.Stsc)
	if !ok {
		return nil, fmt.Errorf("%w: stsc not decoded", transcode.ErrMalformedContainer)
	}
	return v, nil
}

func requireChunkOffsets(stbl []Box) ([]uint64, error) {
	if b, ok := findChild(stbl, isobmff.TypeStco); ok {
		v, ok := b.Body.(*isobmff.Stco)
		if !ok {
			return nil, fmt.Errorf("%w: stco not decoded", transcode.ErrMalformedContainer)
		}
		return v.ChunkOffset, nil
	}
	if b, ok := findChild(stbl, isobmff.TypeCo64); ok {
		v, ok := b.Body.(*isobmff.Stco)
		if !ok {
			return nil, fmt.Errorf("%w: co64 not decoded", transcode.ErrMalformedContainer)
		}
		return v.ChunkOffset, nil
	}
	return nil, fmt.Errorf("%w: stbl missing stco/co64", transcode.ErrMalformedContainer)
}

func optionalCtts(stbl []Box) *isobmff.Ctts {
	b, ok := findChild(stbl, isobmff.TypeCtts)
	if !ok {
		return nil
	}
	v, _ := b.Body.(*isobmff.Ctts)
	return v
}

func optionalStss(stbl []Box) *isobmff.Stss {
	b, ok := findChild(stbl, isobmff.TypeStss)
	if !ok {
		return nil
	}
	v, _ := b.Body.(*isobmff.Stss)
	return v
}

func expandSizes(stsz *isobmff.Stsz, sampleCount int) ([]uint32, error) {
	sizes := make([]uint32, sampleCount)
	if stsz.SampleSize != 0 {
		for i := range sizes {
			sizes[i] = stsz.SampleSize
		}
		return sizes, nil
	}
	if len(stsz.EntrySize) != sampleCount {
		return nil, fmt.Errorf("%w: stsz entry count %d does not match sample_count %d",
			transcode.ErrMalformedContainer, len(stsz.EntrySize), sampleCount)
	}
	copy(sizes, stsz.EntrySize)
	return sizes, nil
}

func expandDeltas(stts *isobmff.Stts, sampleCount int) ([]uint32, error) {
	deltas := make([]uint32, 0, sampleCount)
	for _, e := range stts.Entries {
		for i := uint32(0); i < e.SampleCount; i++ {
			deltas = append(deltas, e.SampleDelta)
		}
	}
	if len(deltas) != sampleCount {
		return nil, fmt.Errorf("%w: stts run-length total %d does not match sample_count %d",
			transcode.ErrMalformedContainer, len(deltas), sampleCount)
	}
	return deltas, nil
}

func expandCtts(ctts *isobmff.Ctts, sampleCount int) []int32 {
	offsets := make([]int32, sampleCount)
	if ctts == nil {
		return offsets
	}
	i := 0
	for _, e := range ctts.Entries {
		for j := uint32(0); j < e.SampleCount && i < sampleCount; j++ {
			offsets[i] = e.SampleOffset
			i++
		}
	}
	return offsets
}

// expandChunkMap returns, per sample, the 0-based index of the chunk
// it belongs to, and the index of the first sample of that chunk (so
// callers can detect "start of a new chunk" and reset their
// within-chunk byte offset).
func expandChunkMap(stsc *isobmff.Stsc, sampleCount, chunkCount int) ([]int, []int, error) {
	chunkOfSample := make([]int, sampleCount)
	sampleInChunkStart := make([]int, sampleCount)

	if len(stsc.Entries) == 0 {
		return nil, nil, fmt.Errorf("%w: stsc has no entries", transcode.ErrMalformedContainer)
	}

	sampleIdx := 0
	for entryIdx, e := range stsc.Entries {
		firstChunk := int(e.FirstChunk) - 1
		var lastChunk int
		if entryIdx+1 < len(stsc.Entries) {
			lastChunk = int(stsc.Entries[entryIdx+1].FirstChunk) - 1
		} else {
			lastChunk = chunkCount
		}
		for chunk := firstChunk; chunk < lastChunk; chunk++ {
			chunkStart := sampleIdx
			for s := uint32(0); s < e.SamplesPerChunk; s++ {
				if sampleIdx >= sampleCount {
					return nil, nil, fmt.Errorf("%w: stsc describes more samples than sample_count",
						transcode.ErrMalformedContainer)
				}
				chunkOfSample[sampleIdx] = chunk
				sampleInChunkStart[sampleIdx] = chunkStart
				sampleIdx++
			}
		}
	}
	if sampleIdx != sampleCount {
		return nil, nil, fmt.Errorf("%w: stsc covers %d samples, expected %d",
			transcode.ErrMalformedContainer, sampleIdx, sampleCount)
	}
	return chunkOfSample, sampleInChunkStart, nil
}

func expandKeyframes(stss *isobmff.Stss, sampleCount int) []bool {
	keyframes := make([]bool, sampleCount)
	if stss == nil {
		// No stss: ISO/IEC 14496-12 says every sample is a sync sample.
		for i := range keyframes {
			keyframes[i] = true
		}
		return keyframes
	}
	for _, n := range stss.SampleNumber {
		idx := int(n) - 1
		if idx >= 0 && idx < sampleCount {
			keyframes[idx] = true
		}
	}
	return keyframes
}
