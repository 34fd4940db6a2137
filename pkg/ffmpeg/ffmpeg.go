// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package ffmpeg wraps ffmpeg subprocess management: starting it with
// a cancelable context, forwarding its stdout/stderr to the ambient
// logger, and the stop-gracefully-then-kill shutdown sequence. The
// live-stream and HLS-segment-specific helpers the NVR used this
// package for (stream probing, keyframe-wait, mask images) aren't
// part of a file-in/file-out transcode core and were dropped with it.
package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/videopipe/transcodecore/pkg/log"
)

// Process interface only used for testing.
type Process interface {
	Start(ctx context.Context) error
	SetTimeout(time.Duration)
	SetPrefix(string)
	SetStdoutLogger(*log.Logger)
	SetStderrLogger(*log.Logger)
}

// process manages subprocesses.
type process struct {
	timeout time.Duration
	cmd     *exec.Cmd

	prefix       string
	stdoutLogger *log.Logger
	stderrLogger *log.Logger

	done chan struct{}
}

// NewProcessFunc is used for mocking.
type NewProcessFunc func(*exec.Cmd) Process

// NewProcess return process.
func NewProcess(cmd *exec.Cmd) Process {
	return &process{
		timeout: 1000 * time.Millisecond,
		cmd:     cmd,
	}
}

func (p *process) attachLogger(l *log.Logger, label string, stdPipe func() (io.ReadCloser, error)) error {
	pipe, err := stdPipe()
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(pipe)
	go func() {
		for scanner.Scan() {
			l.Info().Src(label).Msgf("%v%v", p.prefix, scanner.Text())
		}
	}()
	return nil
}

// Start starts process with context.
func (p *process) Start(ctx context.Context) error {
	if p.stdoutLogger != nil {
		if err := p.attachLogger(p.stdoutLogger, "stdout", p.cmd.StdoutPipe); err != nil {
			return err
		}
	}
	if p.stderrLogger != nil {
		if err := p.attachLogger(p.stderrLogger, "stderr", p.cmd.StderrPipe); err != nil {
			return err
		}
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.done = make(chan struct{})

	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.stop()
		}
	}()

	err := p.cmd.Wait()
	close(p.done)

	// FFmpeg seems to return 255 on normal exit.
	if err != nil && err.Error() == "exit status 255" {
		return nil
	}

	return err
}

// Note, canCommandContext to stop process as it would
// kill the process before it has a chance to exit on its own.
func (p *process) stop() {
	p.cmd.Process.Signal(os.Interrupt) //nolint:errcheck

	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.cmd.Process.Signal(os.Kill) //nolint:errcheck
		<-p.done
	}
}

func (p *process) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

func (p *process) SetPrefix(prefix string) {
	p.prefix = prefix
}

func (p *process) SetStdoutLogger(l *log.Logger) {
	p.stdoutLogger = l
}
func (p *process) SetStderrLogger(l *log.Logger) {
	p.stderrLogger = l
}

// MakePipe creates fifo pipe at specified location.
func MakePipe(path string) error {
	os.Remove(path)
	err := syscall.Mkfifo(path, 0600)
	if err != nil {
		return err
	}
	return nil
}

// FFMPEG stores ffmpeg binary location.
type FFMPEG struct {
	command func(...string) *exec.Cmd
}

// New returns FFMPEG.
func New(bin string) *FFMPEG {
	command := func(args ...string) *exec.Cmd {
		return exec.Command(bin, args...)
	}
	return &FFMPEG{command: command}
}

// Command builds the *exec.Cmd this FFMPEG instance would run for
// args, without starting it - the codec factories use this to get a
// cmd they can still adjust stdin/stdout on before handing it to
// NewProcess.
func (f *FFMPEG) Command(args ...string) *exec.Cmd {
	return f.command(args...)
}

// ParseArgs slices arguments.
func ParseArgs(args string) []string {
	return strings.Split(strings.TrimSpace(args), " ")
}
