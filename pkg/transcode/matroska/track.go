package matroska

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
)

func findChild(children []Element, id uint32) (Element, bool) {
	for _, c := range children {
		if c.ID == id {
			return c, true
		}
	}
	return Element{}, false
}

func uintValue(children []Element, id uint32) (uint64, bool) {
	e, ok := findChild(children, id)
	if !ok {
		return 0, false
	}
	v, ok := e.Body.(uint64)
	return v, ok
}

func stringValue(children []Element, id uint32) (string, bool) {
	e, ok := findChild(children, id)
	if !ok {
		return "", false
	}
	v, ok := e.Body.(string)
	return v, ok
}

func floatValue(children []Element, id uint32) (float64, bool) {
	e, ok := findChild(children, id)
	if !ok {
		return 0, false
	}
	v, ok := e.Body.(float64)
	return v, ok
}

func bytesValue(children []Element, id uint32) ([]byte, bool) {
	e, ok := findChild(children, id)
	if !ok {
		return nil, false
	}
	v, ok := e.Body.([]byte)
	return v, ok
}

// BuildTrack maps one TrackEntry element's children to a
// transcode.Track, per spec.md §5.C's CodecID-to-codec table.
// Grounded on luispater-matroska-go/parser.go's parseTrackEntry,
// parseVideoTrack and parseAudioTrack, restructured around this
// package's Element tree instead of a raw byte cursor.
func BuildTrack(entryChildren []Element) (transcode.Track, error) {
	trackNum, ok := uintValue(entryChildren, IDTrackNumber)
	if !ok {
		return transcode.Track{}, fmt.Errorf("%w: TrackEntry missing TrackNumber", transcode.ErrMalformedContainer)
	}
	trackType, ok := uintValue(entryChildren, IDTrackType)
	if !ok {
		return transcode.Track{}, fmt.Errorf("%w: TrackEntry missing TrackType", transcode.ErrMalformedContainer)
	}
	codecID, ok := stringValue(entryChildren, IDCodecID)
	if !ok {
		return transcode.Track{}, fmt.Errorf("%w: TrackEntry missing CodecID", transcode.ErrMalformedContainer)
	}
	codecPrivate, _ := bytesValue(entryChildren, IDCodecPrivate)

	track := transcode.Track{TrackID: uint32(trackNum)}

	switch trackType {
	case TrackTypeVideo:
		track.Kind = transcode.TrackVideo
		videoEl, ok := findChild(entryChildren, IDVideoSettings)
		if !ok {
			return transcode.Track{}, fmt.Errorf("%w: video TrackEntry missing Video", transcode.ErrMalformedContainer)
		}
		if w, ok := uintValue(videoEl.Children, IDPixelWidth); ok {
			track.CodedWidth = int(w)
		}
		if h, ok := uintValue(videoEl.Children, IDPixelHeight); ok {
			track.CodedHeight = int(h)
		}
		track.DisplayAspectWidth = track.CodedWidth
		track.DisplayAspectHeight = track.CodedHeight
		if w, ok := uintValue(videoEl.Children, IDDisplayWidth); ok {
			track.DisplayAspectWidth = int(w)
		}
		if h, ok := uintValue(videoEl.Children, IDDisplayHeight); ok {
			track.DisplayAspectHeight = int(h)
		}
		if err := fillVideoCodec(&track, codecID, codecPrivate); err != nil {
			return transcode.Track{}, err
		}
	case TrackTypeAudio:
		track.Kind = transcode.TrackAudio
		audioEl, ok := findChild(entryChildren, IDAudioSettings)
		if !ok {
			return transcode.Track{}, fmt.Errorf("%w: audio TrackEntry missing Audio", transcode.ErrMalformedContainer)
		}
		if sr, ok := floatValue(audioEl.Children, IDSamplingFrequency); ok {
			track.SampleRate = int(sr)
		}
		if ch, ok := uintValue(audioEl.Children, IDChannels); ok {
			track.NumberOfChannels = int(ch)
		}
		if err := fillAudioCodec(&track, codecID, codecPrivate); err != nil {
			return transcode.Track{}, err
		}
	default:
		track.Kind = transcode.TrackOther
	}

	return track, nil
}

func fillVideoCodec(track *transcode.Track, codecID string, codecPrivate []byte) error {
	switch codecID {
	case CodecIDVP8:
		track.VideoCodec = transcode.VideoCodecVP8
		track.CodecString = "vp8"
	case CodecIDVP9:
		track.VideoCodec = transcode.VideoCodecVP9
		track.CodecString = "vp09.00.10.08"
	case CodecIDAV1:
		track.VideoCodec = transcode.VideoCodecAV1
		track.CodecString = "av01.0.00M.08"
	case CodecIDH264:
		track.VideoCodec = transcode.VideoCodecH264
		track.VideoCodecPrivate = codecPrivate
		track.CodecString = "avc1"
	default:
		return fmt.Errorf("%w: video CodecID %q", transcode.ErrUnsupportedCodec, codecID)
	}
	return nil
}

func fillAudioCodec(track *transcode.Track, codecID string, codecPrivate []byte) error {
	switch codecID {
	case CodecIDOpus:
		track.AudioCodec = transcode.AudioCodecOpus
		track.CodecString = "opus"
	case CodecIDVorbis:
		return fmt.Errorf("%w: audio CodecID %q", transcode.ErrUnsupportedCodec, codecID)
	case CodecIDAAC:
		track.AudioCodec = transcode.AudioCodecAAC
		track.AudioCodecPrivate = codecPrivate
		track.CodecString = "mp4a.40.2"
	default:
		return fmt.Errorf("%w: audio CodecID %q", transcode.ErrUnsupportedCodec, codecID)
	}
	return nil
}
