package isomux

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/video/mp4"
)

// rawBox wraps an already-marshaled box payload (e.g. an avcC record
// handed straight through from a demuxer's track descriptor) so it
// can sit as a child in a mp4.Boxes tree without being re-derived from
// structured fields.
type rawBox struct {
	boxType mp4.BoxType
	payload []byte
}

func (b *rawBox) Type() mp4.BoxType          { return b.boxType }
func (b *rawBox) Size() int                  { return len(b.payload) }
func (b *rawBox) Marshal(buf []byte, pos *int) { mp4.Write(buf, pos, b.payload) }

var avcCType = mp4.BoxType{'a', 'v', 'c', 'C'}

// generateTrak builds one track's full trak subtree, per the canonical
// shape trak{tkhd,edts{elst},mdia{mdhd,hdlr,minf{...}}}, generalizing
// nvr/pkg/video/mp4muxer/muxer.go's generateVideoTrak/generateAudioTrak
// into a single function driven by track kind instead of two
// hand-written copies.
func generateTrak(st *trackState) (mp4.Boxes, error) {
	durationMovieTicks := uint32(transcode.MicrosToTimescale(st.lastEnd-st.firstTimestamp, movieTimescale))
	durationTrackTicks := uint32(transcode.MicrosToTimescale(st.lastEnd-st.firstTimestamp, st.track.Timescale))

	tkhd := &mp4.Tkhd{
		FullBox:    mp4.FullBox{Flags: [3]byte{0, 0, 3}},
		TrackID:    st.track.TrackID,
		DurationV0: durationMovieTicks,
		Matrix:     identityMatrix,
	}
	var hdlrType [4]byte
	var hdlrName string
	var minfChildren []mp4.Boxes
	var stsdChildren []mp4.Boxes

	switch st.track.Kind {
	case transcode.TrackVideo:
		tkhd.Width = uint32(st.track.DisplayAspectWidth) << 16
		tkhd.Height = uint32(st.track.DisplayAspectHeight) << 16
		hdlrType = [4]byte{'v', 'i', 'd', 'e'}
		hdlrName = "VideoHandler"
		minfChildren = append(minfChildren, mp4.Boxes{Box: &mp4.Vmhd{}})

		avc1 := &mp4.Avc1{
			SampleEntry:     mp4.SampleEntry{DataReferenceIndex: 1},
			Width:           uint16(st.track.CodedWidth),
			Height:          uint16(st.track.CodedHeight),
			Horizresolution: 0x00480000,
			Vertresolution:  0x00480000,
			FrameCount:      1,
			Depth:           24,
			PreDefined3:     -1,
		}
		stsdChildren = append(stsdChildren, mp4.Boxes{
			Box: avc1,
			Children: []mp4.Boxes{
				{Box: &rawBox{boxType: avcCType, payload: st.track.VideoCodecPrivate}},
			},
		})
	case transcode.TrackAudio:
		tkhd.Volume = 0x0100
		hdlrType = [4]byte{'s', 'o', 'u', 'n'}
		hdlrName = "SoundHandler"
		minfChildren = append(minfChildren, mp4.Boxes{Box: &mp4.Smhd{}})

		mp4a := &mp4.Mp4a{
			SampleEntry:  mp4.SampleEntry{DataReferenceIndex: 1},
			ChannelCount: uint16(st.track.NumberOfChannels),
			SampleSize:   16,
			SampleRate:   uint32(st.track.SampleRate) << 16,
		}
		stsdChildren = append(stsdChildren, mp4.Boxes{
			Box: mp4a,
			Children: []mp4.Boxes{
				{Box: &mp4.Esds{DecoderConfig: st.track.AudioCodecPrivate}},
			},
		})
	default:
		return mp4.Boxes{}, fmt.Errorf("%w: isomux cannot write track kind %s", transcode.ErrUnsupportedCodec, st.track.Kind)
	}

	minfChildren = append(minfChildren,
		mp4.Boxes{
			Box: &mp4.Dinf{},
			Children: []mp4.Boxes{
				{
					Box: &mp4.Dref{EntryCount: 1},
					Children: []mp4.Boxes{
						{Box: &mp4.Url{FullBox: mp4.FullBox{Flags: [3]byte{0, 0, 1}}}},
					},
				},
			},
		},
		mp4.Boxes{
			Box: &mp4.Stbl{},
			Children: stblChildren(st, stsdChildren),
		},
	)

	elst := &mp4.Elst{
		EntryCount: 1,
		Entries: []mp4.ElstEntry{
			{SegmentDurationV0: durationMovieTicks, MediaTimeV0: 0, MediaRateInteger: 1},
		},
	}

	trak := mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: tkhd},
			{Box: &mp4.Edts{}, Children: []mp4.Boxes{{Box: elst}}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{
						Timescale:  st.track.Timescale,
						DurationV0: durationTrackTicks,
						Language:   [3]byte{'u', 'n', 'd'},
					}},
					{Box: &mp4.Hdlr{HandlerType: hdlrType, Name: hdlrName}},
					{Box: &mp4.Minf{}, Children: minfChildren},
				},
			},
		},
	}
	return trak, nil
}

func stblChildren(st *trackState, stsdChildren []mp4.Boxes) []mp4.Boxes {
	children := []mp4.Boxes{
		{Box: &mp4.Stsd{EntryCount: 1}, Children: stsdChildren},
		{Box: &mp4.Stts{EntryCount: uint32(len(st.stts)), Entries: st.stts}},
		{Box: &mp4.Stsc{EntryCount: uint32(len(st.stsc)), Entries: st.stsc}},
		{Box: &mp4.Stsz{SampleCount: uint32(len(st.stsz)), EntrySize: st.stsz}},
		{Box: &mp4.Stco{EntryCount: uint32(len(st.stco)), ChunkOffset: st.stco}},
	}
	if st.track.Kind == transcode.TrackVideo {
		children = append(children, mp4.Boxes{Box: &mp4.Stss{
			EntryCount:   uint32(len(st.stss)),
			SampleNumber: st.stss,
		}})
	}
	return children
}
