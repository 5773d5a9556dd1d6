// Package proc runs external executables with bounded lifetimes.
//
// A non-zero exit code is a normal Result, not an error: callers interpret
// exit codes themselves. Errors are reserved for processes that could not be
// started or that had to be killed at the deadline.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrTimeout reports that the child process was killed because the configured
// timeout elapsed. Check with errors.Is.
var ErrTimeout = errors.New("process timed out")

// LaunchError reports that the executable could not be started at all
// (missing binary, permission denied).
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Spec describes one external process invocation.
type Spec struct {
	Path    string
	Args    []string
	Dir     string        // working directory; empty = inherit
	Timeout time.Duration // 0 = no deadline beyond ctx
}

// Result captures the outcome of a completed process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Runner executes processes. The zero value is usable; Logger defaults to
// slog.Default.
type Runner struct {
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run blocks until the process exits, the timeout elapses, or ctx is
// cancelled. No retries happen at this layer.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger().Debug("running process", "path", spec.Path, "args", spec.Args, "dir", spec.Dir)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}

	if err != nil {
		// A killed process is only a timeout when the deadline actually
		// expired; a caller cancelling the context is its own condition.
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.logger().Warn("process killed at deadline", "path", spec.Path, "elapsed", elapsed)
			return res, fmt.Errorf("%w after %s: %s", ErrTimeout, elapsed.Round(time.Millisecond), spec.Path)
		case errors.Is(ctx.Err(), context.Canceled):
			r.logger().Warn("process killed on cancellation", "path", spec.Path, "elapsed", elapsed)
			return res, fmt.Errorf("%s killed after %s: %w", spec.Path, elapsed.Round(time.Millisecond), context.Canceled)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.logger().Debug("process exited non-zero", "path", spec.Path, "exit_code", res.ExitCode)
			return res, nil
		}

		return res, &LaunchError{Path: spec.Path, Err: err}
	}

	return res, nil
}
