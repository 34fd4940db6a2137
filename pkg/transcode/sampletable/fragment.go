package sampletable

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/isobmff"
)

// TrackDefaults are a track's trex defaults from the moov's mvex box,
// consulted whenever a tfhd/trun entry omits a field.
type TrackDefaults struct {
	SampleDescriptionIndex uint32
	SampleDuration         uint32
	SampleSize             uint32
	SampleFlags            uint32
}

// ResolveDefaultDuration returns the sample duration to use for a
// trun entry that specifies none, falling through tfhd's
// default-duration override to the track's trex default. Named and
// tested independently because "what happens when nothing in the
// fragment specifies a duration" is exactly the ambiguity flagged for
// this parser: some encoders emit a trex with defaultSampleDuration
// of 0 and expect every trun to carry its own, so when tfhd has no
// default and trex's is 0 this returns a malformed error rather than silently
// producing zero-length samples.
func ResolveDefaultDuration(tfhd *isobmff.Tfhd, trex TrackDefaults) (uint32, error) {
	if tfhd.HasDefaultDuration {
		return tfhd.DefaultSampleDuration, nil
	}
	if trex.SampleDuration != 0 {
		return trex.SampleDuration, nil
	}
	return 0, fmt.Errorf("%w: no sample duration available from trun, tfhd, or trex", transcode.ErrMalformedContainer)
}

func resolveDefaultSize(tfhd *isobmff.Tfhd, trex TrackDefaults) uint32 {
	if tfhd.HasDefaultSize {
		return tfhd.DefaultSampleSize
	}
	return trex.SampleSize
}

func resolveDefaultFlags(tfhd *isobmff.Tfhd, trex TrackDefaults) uint32 {
	if tfhd.HasDefaultFlags {
		return tfhd.DefaultSampleFlags
	}
	return trex.SampleFlags
}

// MoofFragment is one parsed moof's contribution for a single track:
// the traf matching that track plus the moof's own file offset
// (trun's data_offset is relative to either moof start or, if tfhd's
// base-data-offset-present flag is set, to that explicit offset).
type MoofFragment struct {
	MoofOffset int64
	Tfhd       *isobmff.Tfhd
	Tfdt       *isobmff.Tfdt
	Trun       *isobmff.Trun
}

// ResolveFragment expands one track fragment run into sample
// positions, seeding the running DTS from tfdt.baseMediaDecodeTime
// and the running file offset from trun's data_offset (falling back
// to tfhd's base_data_offset, then to the moof's own start), per
// spec.md §4.C's fragmented-MP4 resolution rules.
func ResolveFragment(frag MoofFragment, trex TrackDefaults) ([]transcode.SamplePosition, error) {
	if frag.Tfdt == nil {
		return nil, fmt.Errorf("%w: track fragment missing tfdt", transcode.ErrMalformedContainer)
	}
	if frag.Trun == nil {
		return nil, fmt.Errorf("%w: track fragment missing trun", transcode.ErrMalformedContainer)
	}

	baseOffset := frag.MoofOffset
	if frag.Tfhd.HasBaseDataOffset {
		baseOffset = int64(frag.Tfhd.BaseDataOffset)
	}
	dataOffset := baseOffset
	if frag.Trun.HasDataOffset {
		dataOffset = baseOffset + int64(frag.Trun.DataOffset)
	}

	dts := frag.Tfdt.BaseMediaDecodeTime
	fileOffset := dataOffset

	positions := make([]transcode.SamplePosition, 0, len(frag.Trun.Entries))
	for i, e := range frag.Trun.Entries {
		duration, err := resolveEntryDuration(e, frag.Trun, frag.Tfhd, trex)
		if err != nil {
			return nil, err
		}
		size := resolveEntrySize(e, resolveDefaultSize(frag.Tfhd, trex))
		flags := resolveEntryFlags(i, e, frag.Trun, frag.Tfhd, trex)
		var cts int64
		if e.HasCTSOffset {
			cts = int64(dts) + int64(e.CTSOffset)
		} else {
			cts = int64(dts)
		}

		pos := transcode.SamplePosition{
			FileOffset: uint64(fileOffset),
			Size:       size,
			DTS:        int64(dts),
			CTS:        cts,
			Duration:   duration,
			IsKeyframe: isobmffSampleFlagsIsKeyframe(flags),
		}
		if err := pos.Validate(); err != nil {
			return nil, fmt.Errorf("%w: fragment sample %d: %v", transcode.ErrMalformedContainer, i, err)
		}
		positions = append(positions, pos)

		dts += uint64(duration)
		fileOffset += int64(size)
	}

	return positions, nil
}

func resolveEntryDuration(e isobmff.TrunEntry, trun *isobmff.Trun, tfhd *isobmff.Tfhd, trex TrackDefaults) (uint32, error) {
	if e.HasDuration {
		return e.Duration, nil
	}
	return ResolveDefaultDuration(tfhd, trex)
}

func resolveEntrySize(e isobmff.TrunEntry, fallback uint32) uint32 {
	if e.HasSize {
		return e.Size
	}
	return fallback
}

// resolveEntryFlags applies the fallback chain from spec.md §4.C:
// trun per-sample flags, else trun's firstSampleFlags for sample 0,
// else tfhd's default, else trex's default.
func resolveEntryFlags(index int, e isobmff.TrunEntry, trun *isobmff.Trun, tfhd *isobmff.Tfhd, trex TrackDefaults) uint32 {
	if e.HasFlags {
		return e.Flags
	}
	if index == 0 && trun.HasFirstFlags {
		return trun.FirstSampleFlags
	}
	return resolveDefaultFlags(tfhd, trex)
}

func isobmffSampleFlagsIsKeyframe(flags uint32) bool {
	return (flags>>16)&1 == 0
}
