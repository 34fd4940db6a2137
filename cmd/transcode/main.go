// Command transcode walks a directory for container files and
// remuxes each one into a target container, skipping whatever already
// has an up-to-date output next to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"

	nvrlog "github.com/videopipe/transcodecore/pkg/log"
	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/ffmpegcodec"
	"github.com/videopipe/transcodecore/pkg/transcode/pipeline"
)

const usage = `remux recordings into a target container
example: transcode -to webm ./storage/recordings`

func main() {
	if err := run(); err != nil {
		stdlog.Fatal(err)
	}
}

func run() error { //nolint:funlen
	to, root, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Println(usage)
		return err
	}
	if root == "" {
		fmt.Println(usage)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := nvrlog.NewMockLogger()
	go logger.Start(ctx)
	go logger.LogToStdout(ctx)

	var sources []string
	walkFunc := func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		if info.IsDir() || !hasContainerExt(path) {
			return nil
		}
		out := outputPath(path, to)
		if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
			return nil // already converted
		}
		sources = append(sources, path)
		return nil
	}
	if err := filepath.WalkDir(root, walkFunc); err != nil {
		return err
	}

	fmt.Printf("Found %v file(s) to convert.\n", len(sources))

	chResults := make(chan conversionResult, len(sources))
	for _, src := range sources {
		go func(src string) {
			chResults <- conversionResult{source: src, err: convertFile(src, to, logger)}
		}(src)
	}

	for i := 1; i <= len(sources); i++ {
		result := <-chResults
		if result.err != nil {
			fmt.Printf("[%v/%v][ERR] %v: %v\n", i, len(sources), result.source, result.err)
			continue
		}
		fmt.Printf("[%v/%v][OK] %v\n", i, len(sources), result.source)
	}
	return nil
}

type conversionResult struct {
	source string
	err    error
}

// parseArgs accepts `-to webm|mp4 <root>` in either argument order, to
// stay a flat positional CLI rather than pulling in a flag-parsing
// dependency the teacher's own utility commands never reach for
// either.
func parseArgs(args []string) (to string, root string, err error) {
	to = "webm"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-to":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("-to requires a value")
			}
			to = args[i+1]
			i++
		default:
			if root != "" {
				return "", "", fmt.Errorf("unexpected argument %q", args[i])
			}
			root = args[i]
		}
	}
	return to, root, nil
}

func hasContainerExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".webm", ".mkv":
		return true
	default:
		return false
	}
}

func outputPath(src, to string) string {
	ext := filepath.Ext(src)
	return src[:len(src)-len(ext)] + "." + to
}

// convertFile runs one source through the pipeline controller. For
// webm output, tracks that don't already match vp8+opus are routed
// through ffmpegcodec's ffmpeg-backed decoder/encoder pair instead of
// failing outright. mp4 output stays on the copy path only: h264's
// avcC depends on the encoder's actual emitted SPS/PPS, which an
// EncoderFactory can't produce ahead of the first encoded chunk the
// way vp8 (no codec-private data) and opus (OpusHead is derived from
// channel count alone, per RFC 7845) can.
func convertFile(src, to string, logger *nvrlog.Logger) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %v: %w", src, err)
	}

	videoCodec, audioCodec, allowMP4 := targetCodecs(to)
	params := pipeline.Params{
		Src:        transcode.NewMemorySource(data),
		To:         to,
		AllowMP4:   allowMP4,
		VideoCodec: videoCodec,
		AudioCodec: audioCodec,
		Logger:     logger,
	}
	if to == "webm" {
		cfg := ffmpegcodec.Config{Logger: logger}
		params.NewVideoDecoder = ffmpegcodec.NewVideoDecoderFactory(cfg)
		params.NewVideoEncoder = ffmpegcodec.NewVideoEncoderFactory(cfg)
		params.NewAudioDecoder = ffmpegcodec.NewAudioDecoderFactory(cfg)
		params.NewAudioEncoder = ffmpegcodec.NewAudioEncoderFactory(cfg)
	}

	controller := pipeline.New()
	result, err := controller.Convert(context.Background(), params)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	out := outputPath(src, to)
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %v: %w", out, err)
	}
	defer f.Close()

	if err := result.Save(f); err != nil {
		return fmt.Errorf("save %v: %w", out, err)
	}
	return nil
}

func targetCodecs(to string) (transcode.VideoCodec, transcode.AudioCodec, bool) {
	if to == "mp4" {
		return transcode.VideoCodecH264, transcode.AudioCodecAAC, true
	}
	return transcode.VideoCodecVP8, transcode.AudioCodecOpus, false
}
