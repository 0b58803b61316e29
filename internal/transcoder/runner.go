package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// stderrTailBytes caps how much diagnostic output is carried into errors.
const stderrTailBytes = 500

// Runner executes an external binary and returns its stdout. The media
// engine depends on this interface so ffmpeg/ffprobe can be swapped for a
// double returning canned output in tests.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as real subprocesses with an enforced wall-clock
// timeout. A subprocess that outlives the timeout or the context is killed.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

func (ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderrTail(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}

// stderrTail returns the last portion of diagnostic output, enough to see
// the actual failure without dumping full encode progress logs into errors.
func stderrTail(b []byte) string {
	if len(b) > stderrTailBytes {
		return "..." + string(b[len(b)-stderrTailBytes:])
	}
	return string(b)
}
