package sampletable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videopipe/transcodecore/pkg/transcode/isobmff"
)

func boxWithBody(t isobmff.Type, body interface{}) Box {
	return Box{Type: t, Body: body}
}

func TestResolveNonFragmentedSingleChunk(t *testing.T) {
	stbl := []Box{
		boxWithBody(isobmff.TypeStts, &isobmff.Stts{
			Entries: []isobmff.SttsEntry{{SampleCount: 3, SampleDelta: 1000}},
		}),
		boxWithBody(isobmff.TypeStsz, &isobmff.Stsz{SampleSize: 0, SampleCount: 3, EntrySize: []uint32{100, 200, 150}}),
		boxWithBody(isobmff.TypeStsc, &isobmff.Stsc{
			Entries: []isobmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 3, SampleDescriptionIndex: 1}},
		}),
		boxWithBody(isobmff.TypeStco, &isobmff.Stco{ChunkOffset: []uint64{1000}}),
		boxWithBody(isobmff.TypeStss, &isobmff.Stss{SampleNumber: []uint32{1}}),
	}

	positions, err := Resolve(stbl)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	require.Equal(t, uint64(1000), positions[0].FileOffset)
	require.Equal(t, uint32(100), positions[0].Size)
	require.True(t, positions[0].IsKeyframe)

	require.Equal(t, uint64(1100), positions[1].FileOffset)
	require.Equal(t, uint32(200), positions[1].Size)
	require.False(t, positions[1].IsKeyframe)
	require.Equal(t, int64(1000), positions[1].DTS)

	require.Equal(t, uint64(1300), positions[2].FileOffset)
	require.Equal(t, int64(2000), positions[2].DTS)
}

func TestResolveMissingStssMarksAllKeyframes(t *testing.T) {
	stbl := []Box{
		boxWithBody(isobmff.TypeStts, &isobmff.Stts{Entries: []isobmff.SttsEntry{{SampleCount: 2, SampleDelta: 500}}}),
		boxWithBody(isobmff.TypeStsz, &isobmff.Stsz{SampleSize: 50, SampleCount: 2}),
		boxWithBody(isobmff.TypeStsc, &isobmff.Stsc{Entries: []isobmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2}}}),
		boxWithBody(isobmff.TypeStco, &isobmff.Stco{ChunkOffset: []uint64{0}}),
	}
	positions, err := Resolve(stbl)
	require.NoError(t, err)
	require.True(t, positions[0].IsKeyframe)
	require.True(t, positions[1].IsKeyframe)
}

func TestResolveUsesCttsOffset(t *testing.T) {
	stbl := []Box{
		boxWithBody(isobmff.TypeStts, &isobmff.Stts{Entries: []isobmff.SttsEntry{{SampleCount: 2, SampleDelta: 1000}}}),
		boxWithBody(isobmff.TypeCtts, &isobmff.Ctts{Entries: []isobmff.CttsEntry{{SampleCount: 2, SampleOffset: 2000}}}),
		boxWithBody(isobmff.TypeStsz, &isobmff.Stsz{SampleSize: 10, SampleCount: 2}),
		boxWithBody(isobmff.TypeStsc, &isobmff.Stsc{Entries: []isobmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2}}}),
		boxWithBody(isobmff.TypeStco, &isobmff.Stco{ChunkOffset: []uint64{0}}),
	}
	positions, err := Resolve(stbl)
	require.NoError(t, err)
	require.Equal(t, int64(0), positions[0].DTS)
	require.Equal(t, int64(2000), positions[0].CTS)
	require.Equal(t, int64(1000), positions[1].DTS)
	require.Equal(t, int64(3000), positions[1].CTS)
}

func TestResolveMismatchedSttsCountIsMalformed(t *testing.T) {
	stbl := []Box{
		boxWithBody(isobmff.TypeStts, &isobmff.Stts{Entries: []isobmff.SttsEntry{{SampleCount: 1, SampleDelta: 1000}}}),
		boxWithBody(isobmff.TypeStsz, &isobmff.Stsz{SampleSize: 10, SampleCount: 2}),
		boxWithBody(isobmff.TypeStsc, &isobmff.Stsc{Entries: []isobmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2}}}),
		boxWithBody(isobmff.TypeStco, &isobmff.Stco{ChunkOffset: []uint64{0}}),
	}
	_, err := Resolve(stbl)
	require.Error(t, err)
}

func TestResolveFragmentSeedsFromTfdtAndDataOffset(t *testing.T) {
	tfhd := &isobmff.Tfhd{TrackID: 1}
	tfdt := &isobmff.Tfdt{BaseMediaDecodeTime: 9000}
	trun := &isobmff.Trun{
		SampleCount:   2,
		DataOffset:    100,
		HasDataOffset: true,
		Entries: []isobmff.TrunEntry{
			{HasDuration: true, Duration: 1000, HasSize: true, Size: 500, HasFlags: true, Flags: 0},
			{HasDuration: true, Duration: 1000, HasSize: true, Size: 600, HasFlags: true, Flags: 1 << 16},
		},
	}
	frag := MoofFragment{MoofOffset: 2000, Tfhd: tfhd, Tfdt: tfdt, Trun: trun}

	positions, err := ResolveFragment(frag, TrackDefaults{})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, uint64(2100), positions[0].FileOffset)
	require.Equal(t, int64(9000), positions[0].DTS)
	require.True(t, positions[0].IsKeyframe)

	require.Equal(t, uint64(2600), positions[1].FileOffset)
	require.Equal(t, int64(10000), positions[1].DTS)
	require.False(t, positions[1].IsKeyframe)
}

func TestResolveDefaultDurationFallsThroughToTrex(t *testing.T) {
	tfhd := &isobmff.Tfhd{}
	d, err := ResolveDefaultDuration(tfhd, TrackDefaults{SampleDuration: 512})
	require.NoError(t, err)
	require.Equal(t, uint32(512), d)
}

func TestResolveDefaultDurationErrorsWhenNoneAvailable(t *testing.T) {
	tfhd := &isobmff.Tfhd{}
	_, err := ResolveDefaultDuration(tfhd, TrackDefaults{})
	require.Error(t, err)
}
