package pipeline

import (
	"fmt"
	"io"

	"github.com/videopipe/transcodecore/pkg/log"
	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/codecstage"
)

// DecoderFactory builds the decoder side of a transcode path for one
// source track. Returning an error here aborts the whole conversion -
// there's no partial-track fallback.
type DecoderFactory func(source transcode.Track) (codecstage.Decoder, error)

// EncoderFactory builds the encoder side of a transcode path for one
// source track, and returns the output track descriptor the encoder
// will actually produce (codec private data included - an encoder
// knows its own avcC/OpusHead as soon as it's configured, well before
// the first chunk, which is exactly when the muxer's AddTrack needs
// it).
type EncoderFactory func(source transcode.Track) (codecstage.Encoder, transcode.Track, error)

// Params configures one Convert call.
type Params struct {
	// Src is the input container's bytes.
	Src transcode.SourceReader

	// To selects the output container: "webm" or "mp4".
	To string
	// AllowMP4 gates the mp4+h264+aac combination, which isn't on the
	// fully-supported path yet (isomux has no fragmented-write support).
	AllowMP4 bool
	// VideoCodec/AudioCodec are the desired *output* codecs. Every
	// track whose source codec already matches is eligible for the
	// copy path; every other track is transcoded toward these.
	VideoCodec transcode.VideoCodec
	AudioCodec transcode.AudioCodec

	// OnVideoFrame, if set, is applied to every decoded video frame
	// before it reaches the encoder. Registering a hook forces every
	// video track through the transcode path even if its codec
	// already matches the output, since a copy path never decodes.
	OnVideoFrame func(transcode.Frame) (transcode.Frame, error)

	// OnProgress, if set, receives a State snapshot after every
	// written chunk. Coalescing under load is permitted - callers
	// should not assume every snapshot this package might produce
	// arrives, only that the latest one eventually does.
	OnProgress func(State)

	NewVideoDecoder DecoderFactory
	NewVideoEncoder EncoderFactory
	NewAudioDecoder DecoderFactory
	NewAudioEncoder EncoderFactory

	// Logger receives the conversion's lifecycle events (start,
	// per-track terminal errors, completion), the same way
	// nvr/pkg/video/path.go logs per-path start/stop/error instead of
	// just returning them. Nil disables logging, matching how the
	// teacher's own optional-dependency constructors (e.g. path.go's
	// alertDuration) treat their zero value as "feature off".
	Logger *log.Logger
}

// validate checks the (container, videoCodec, audioCodec) combination
// against the accepted matrix, before any I/O: webm+vp8+opus is the
// only fully-supported output; mp4+h264+aac is scoped but gated
// behind AllowMP4 pending full fragmented write support; anything
// else is rejected outright.
func (p Params) validate() error {
	switch p.To {
	case "webm":
		if p.VideoCodec != transcode.VideoCodecVP8 || p.AudioCodec != transcode.AudioCodecOpus {
			return fmt.Errorf("%w: webm output only supports vp8 video + opus audio, got %s/%s",
				transcode.ErrUnsupportedConfig, p.VideoCodec, p.AudioCodec)
		}
	case "mp4":
		if !p.AllowMP4 {
			return fmt.Errorf("%w: mp4 output requires Params.AllowMP4", transcode.ErrUnsupportedConfig)
		}
		if p.VideoCodec != transcode.VideoCodecH264 || p.AudioCodec != transcode.AudioCodecAAC {
			return fmt.Errorf("%w: mp4 output only supports h264 video + aac audio, got %s/%s",
				transcode.ErrUnsupportedConfig, p.VideoCodec, p.AudioCodec)
		}
	default:
		return fmt.Errorf("%w: unknown output container %q", transcode.ErrUnsupportedConfig, p.To)
	}
	if p.Src == nil {
		return fmt.Errorf("%w: Params.Src is required", transcode.ErrUnsupportedConfig)
	}
	return nil
}

// Result is the outcome of a successful Convert call.
type Result struct {
	output *transcode.MemoryWriter
	state  State
}

// Bytes returns the finalized output.
func (r *Result) Bytes() []byte {
	b, _ := r.output.Save()
	return b
}

// Save writes the finalized output to w.
func (r *Result) Save(w io.Writer) error {
	b, err := r.output.Save()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// State returns the final progress snapshot.
func (r *Result) State() State {
	return r.state
}
