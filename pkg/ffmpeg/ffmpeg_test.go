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

package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/videopipe/transcodecore/pkg/log"
)

func TestFakeProcess(t *testing.T) {
	if os.Getenv("GO_TEST_PROCESS") != "1" {
		return
	}
	if os.Getenv("SLEEP") == "1" {
		time.Sleep(1 * time.Hour)
	}

	fmt.Fprintf(os.Stdout, "%v", "out")
	fmt.Fprintf(os.Stderr, "%v", "err")

	os.Exit(0)
}

func fakeExecCommand(env ...string) *exec.Cmd {
	cs := []string{"-test.run=TestFakeProcess"}
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = []string{"GO_TEST_PROCESS=1"}
	cmd.Env = append(cmd.Env, env...)
	return cmd
}

func TestProcess(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := NewProcess(fakeExecCommand())
		err := p.Start(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("startWithLogger", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		logger := log.NewMockLogger()
		go logger.Start(ctx) //nolint:errcheck
		feed, unsub := logger.Subscribe()
		defer unsub()

		p := NewProcess(fakeExecCommand())
		p.SetTimeout(0)
		p.SetPrefix("test ")
		p.SetStdoutLogger(logger)
		p.SetStderrLogger(logger)

		if err := p.Start(ctx); err != nil {
			t.Fatalf("failed to start %v", err)
		}

		seen := map[string]bool{}
		for i := 0; i < 2; i++ {
			l := <-feed
			seen[l.Msg] = true
		}
		if !seen["test out"] || !seen["test err"] {
			t.Fatalf("unexpected log messages: %v", seen)
		}
	})
	t.Run("stdoutErr", func(t *testing.T) {
		_, pw, err := os.Pipe()
		if err != nil {
			t.Fatal("could not create pipe")
		}
		p := process{cmd: fakeExecCommand()}
		p.cmd.Stdout = pw
		p.SetStdoutLogger(log.NewMockLogger())

		if err := p.Start(context.Background()); err == nil {
			t.Fatalf("nil")
		}
	})
}

func TestMakePipe(t *testing.T) {
	t.Run("working", func(t *testing.T) {
		tempDir := t.TempDir()

		pipePath := tempDir + "/pipe.fifo"
		if err := MakePipe(pipePath); err != nil {
			t.Fatalf("could not create pipe: %v", err)
		}

		if _, err := os.Stat(pipePath); os.IsNotExist(err) {
			t.Fatal("pipe were not created")
		}
	})
	t.Run("MkfifoErr", func(t *testing.T) {
		if err := MakePipe(""); err == nil {
			t.Fatal("nil")
		}
	})
}

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"1", "1 2 3 4", []string{"1", "2", "3", "4"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actual := ParseArgs(tc.input)

			if !reflect.DeepEqual(actual, tc.expected) {
				t.Fatalf("expected: %v, got: %v", tc.expected, actual)
			}
		})
	}
}

func TestCommand(t *testing.T) {
	f := New("ffmpeg")
	cmd := f.Command("-version")
	if cmd.Args[0] != "ffmpeg" || cmd.Args[1] != "-version" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}
