package webmmux

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/matroska"
)

// codecIDFor maps a track's codec to the CodecID string Matroska
// readers dispatch on, reusing matroska's own constant table instead
// of redeclaring the strings on the write side.
func codecIDFor(track transcode.Track) (string, error) {
	switch track.Kind {
	case transcode.TrackVideo:
		if track.VideoCodec != transcode.VideoCodecVP8 {
			return "", fmt.Errorf("%w: webmmux only writes vp8 video, got %s", transcode.ErrUnsupportedCodec, track.VideoCodec)
		}
		return matroska.CodecIDVP8, nil
	case transcode.TrackAudio:
		if track.AudioCodec != transcode.AudioCodecOpus {
			return "", fmt.Errorf("%w: webmmux only writes opus audio, got %s", transcode.ErrUnsupportedCodec, track.AudioCodec)
		}
		return matroska.CodecIDOpus, nil
	default:
		return "", fmt.Errorf("%w: webmmux cannot write track kind %s", transcode.ErrUnsupportedCodec, track.Kind)
	}
}

// buildTrackEntry assembles one TrackEntry element, per the canonical
// shape TrackEntry{TrackNumber,TrackUID,TrackType,CodecID,
// CodecPrivate?,Video{PixelWidth,PixelHeight,DisplayWidth,
// DisplayHeight}|Audio{SamplingFrequency,Channels}}.
func buildTrackEntry(st *trackState) []byte {
	t := st.track
	children := [][]byte{
		encodeUint(matroska.IDTrackNumber, uint64(t.TrackID)),
		encodeUint(matroska.IDTrackUID, uint64(t.TrackID)),
		encodeUint(matroska.IDTrackType, uint64(trackTypeFor(t.Kind))),
		encodeString(matroska.IDCodecID, st.codecID),
	}
	if len(t.VideoCodecPrivate) > 0 {
		children = append(children, encodeElement(matroska.IDCodecPrivate, t.VideoCodecPrivate))
	}
	if len(t.AudioCodecPrivate) > 0 {
		children = append(children, encodeElement(matroska.IDCodecPrivate, t.AudioCodecPrivate))
	}

	switch t.Kind {
	case transcode.TrackVideo:
		displayWidth := t.DisplayAspectWidth
		if displayWidth == 0 {
			displayWidth = t.CodedWidth
		}
		displayHeight := t.DisplayAspectHeight
		if displayHeight == 0 {
			displayHeight = t.CodedHeight
		}
		video := encodeMaster(matroska.IDVideoSettings,
			encodeUint(matroska.IDPixelWidth, uint64(t.CodedWidth)),
			encodeUint(matroska.IDPixelHeight, uint64(t.CodedHeight)),
			encodeUint(matroska.IDDisplayWidth, uint64(displayWidth)),
			encodeUint(matroska.IDDisplayHeight, uint64(displayHeight)),
		)
		children = append(children, video)
	case transcode.TrackAudio:
		audio := encodeMaster(matroska.IDAudioSettings,
			encodeFloat64(matroska.IDSamplingFrequency, float64(t.SampleRate)),
			encodeUint(matroska.IDChannels, uint64(t.NumberOfChannels)),
		)
		children = append(children, audio)
	}

	return encodeMaster(matroska.IDTrackEntry, children...)
}

func trackTypeFor(kind transcode.TrackKind) int {
	if kind == transcode.TrackAudio {
		return matroska.TrackTypeAudio
	}
	return matroska.TrackTypeVideo
}
