package transcode

import "errors"

// Error taxonomy. Every error that terminates a conversion wraps one
// of these sentinels with fmt.Errorf("...: %w", ...) so callers can
// classify failures with errors.Is regardless of which package raised
// them, matching the sentinel-error convention used throughout
// pkg/video (ErrPathNoOnePublishing, ErrTrackNotExist, etc).
var (
	// ErrMalformedContainer is returned when a parser finds bytes it
	// cannot interpret as the expected box/element layout.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrUnsupportedCodec is returned when a muxer is asked to write
	// a codec it has no wire-format support for.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrUnsupportedConfig is returned by the pipeline controller
	// before any I/O when the requested (container, videoCodec,
	// audioCodec) triple isn't in the capability matrix.
	ErrUnsupportedConfig = errors.New("unsupported config")

	// ErrCodecFailure is returned when the external decoder/encoder
	// facility reports an error.
	ErrCodecFailure = errors.New("codec failure")

	// ErrWriterFailure is returned when the output writer rejects a
	// write or a deferred patch.
	ErrWriterFailure = errors.New("writer failure")

	// ErrAborted is returned when a conversion is cancelled via its
	// context.
	ErrAborted = errors.New("aborted")

	// ErrClosed is returned by a codec stage once Close has been
	// called and a further push is attempted.
	ErrClosed = errors.New("codec stage closed")
)
