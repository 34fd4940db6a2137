// Package ffmpegcodec implements codecstage.Decoder/Encoder on top of
// pkg/ffmpeg's subprocess wrapper: a whole-track batch of encoded
// chunks is written to a scratch file, run through one ffmpeg
// invocation, and the result is parsed back into frames or chunks.
// There is no streaming hand-off to the ffmpeg process (stdin/stdout
// piping isn't part of pkg/ffmpeg's Process abstraction, which is
// built around ffmpeg writing to a path - HLS segments, a named pipe
// - the same shape this package reuses for a temp file instead), so
// Decode/Encode only buffer; the actual subprocess runs once, on
// Flush, exactly like the codecstage.Stage calling convention wants.
package ffmpegcodec

import (
	"context"
	"fmt"
	"os"

	"github.com/videopipe/transcodecore/pkg/ffmpeg"
	"github.com/videopipe/transcodecore/pkg/log"
	"github.com/videopipe/transcodecore/pkg/transcode"
)

// Config names the ffmpeg binary and the ambient logger the codec
// factories attach to every subprocess they run, mirroring how
// nvr/pkg/video/path.go threads one *log.Logger through everything
// it starts.
type Config struct {
	// Bin is the ffmpeg binary path or name (passed to exec.LookPath
	// semantics via os/exec).
	Bin string
	// Logger receives one Info line per subprocess invocation, ffmpeg's
	// own stdout and stderr lines, and an Error line when a run fails;
	// may be nil.
	Logger *log.Logger
	// newProcess lets tests inject ffmpeg/ffmock instead of actually
	// spawning a binary. Defaults to ffmpeg.NewProcess.
	newProcess ffmpeg.NewProcessFunc
}

func (c Config) processFunc() ffmpeg.NewProcessFunc {
	if c.newProcess != nil {
		return c.newProcess
	}
	return ffmpeg.NewProcess
}

// WithProcessFunc returns a copy of c that spawns subprocesses via fn
// instead of the real ffmpeg.NewProcess - used by tests to exercise
// the factories without an ffmpeg binary on PATH.
func (c Config) WithProcessFunc(fn ffmpeg.NewProcessFunc) Config {
	c.newProcess = fn
	return c
}

func (c Config) bin() string {
	if c.Bin == "" {
		return "ffmpeg"
	}
	return c.Bin
}

// run executes one ffmpeg invocation to completion, with -y appended
// implicitly is not assumed - callers pass full arg lists - and the
// ambient logger (if any) attached to both stdout and stderr.
func (c Config) run(ctx context.Context, args []string, op string) error {
	ff := ffmpeg.New(c.bin())
	cmd := ff.Command(args...)
	proc := c.processFunc()(cmd)
	proc.SetPrefix(fmt.Sprintf("ffmpegcodec[%s] ", op))
	if c.Logger != nil {
		proc.SetStdoutLogger(c.Logger)
		proc.SetStderrLogger(c.Logger)
		c.Logger.Info().Src("ffmpegcodec").Msgf("running %s: %s %v", op, c.bin(), args)
	}
	if err := proc.Start(ctx); err != nil {
		if c.Logger != nil {
			c.Logger.Error().Src("ffmpegcodec").Msgf("%s failed: %v", op, err)
		}
		return fmt.Errorf("%w: ffmpeg %s: %v", transcode.ErrCodecFailure, op, err)
	}
	return nil
}

// scratchFile creates a temp file in os.TempDir with the given name
// suffix, for one decode/encode round-trip; the
// caller removes it once done reading or writing.
func scratchFile(suffix string) (*os.File, error) {
	f, err := os.CreateTemp("", "ffmpegcodec-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: create scratch file: %v", transcode.ErrCodecFailure, err)
	}
	return f, nil
}

func writeScratch(suffix string, data []byte) (path string, err error) {
	f, err := scratchFile(suffix)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write scratch file: %v", transcode.ErrCodecFailure, err)
	}
	return f.Name(), nil
}

func readScratch(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read scratch file: %v", transcode.ErrCodecFailure, err)
	}
	return data, nil
}
