// Package fetch materializes project sources into ephemeral local checkouts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qlscan/internal/proc"
)

// Cause classifies why a fetch failed. Network and timeout failures are
// retryable by the caller; auth and notFound are terminal for the project.
type Cause string

const (
	CauseAuth     Cause = "auth"
	CauseNetwork  Cause = "network"
	CauseNotFound Cause = "notFound"
	CauseTimeout  Cause = "timeout"
)

// Retryable reports whether a later attempt could plausibly succeed.
func (c Cause) Retryable() bool {
	return c == CauseNetwork || c == CauseTimeout
}

// Error is returned by Cloner.Fetch for any failed clone.
type Error struct {
	Cause Cause
	URL   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Cause, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result describes a completed fetch.
type Result struct {
	Path string
}

// Cloner fetches sources with shallow git clones.
type Cloner struct {
	Runner  *proc.Runner
	Token   string        // embedded into github.com HTTPS URLs when set
	Timeout time.Duration // per-clone deadline
	Logger  *slog.Logger
}

func (c *Cloner) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Fetch clones sourceRef into destDir (depth 1). destDir must not already
// exist; the parent is created as needed. On failure any partial checkout is
// removed before returning.
func (c *Cloner) Fetch(ctx context.Context, sourceRef, destDir string) (Result, error) {
	if _, err := os.Stat(destDir); err == nil {
		return Result{}, &Error{Cause: CauseNotFound, URL: sourceRef,
			Err: fmt.Errorf("destination already exists: %s", destDir)}
	}
	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return Result{}, &Error{Cause: CauseNetwork, URL: sourceRef, Err: err}
	}

	url := sourceRef
	if c.Token != "" && strings.HasPrefix(url, "https://github.com/") {
		url = strings.Replace(url, "https://github.com/", "https://"+c.Token+"@github.com/", 1)
	}

	c.logger().Info("cloning repository", "url", sourceRef, "dest", destDir)

	res, err := c.Runner.Run(ctx, proc.Spec{
		Path:    "git",
		Args:    []string{"clone", "--depth=1", url, destDir},
		Timeout: c.Timeout,
	})
	if err != nil {
		c.Release(destDir)
		if errors.Is(err, proc.ErrTimeout) {
			return Result{}, &Error{Cause: CauseTimeout, URL: sourceRef, Err: err}
		}
		return Result{}, &Error{Cause: CauseNetwork, URL: sourceRef, Err: err}
	}
	if res.ExitCode != 0 {
		c.Release(destDir)
		return Result{}, &Error{
			Cause: classifyStderr(res.Stderr),
			URL:   sourceRef,
			Err:   fmt.Errorf("git clone exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)),
		}
	}

	c.logger().Info("cloned repository", "url", sourceRef, "elapsed", res.Elapsed)
	return Result{Path: destDir}, nil
}

// Release removes a checkout. Idempotent and safe after a partial fetch;
// a missing path is not an error.
func (c *Cloner) Release(path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		c.logger().Warn("failed to remove checkout", "path", path, "error", err)
		return
	}
	c.logger().Debug("removed checkout", "path", path)
}

// classifyStderr maps git's failure chatter to a Cause. git is not precise
// about exit codes, so the stderr text is the only reliable signal.
func classifyStderr(stderr string) Cause {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "authentication failed"),
		strings.Contains(s, "could not read username"),
		strings.Contains(s, "permission denied"),
		strings.Contains(s, "403"):
		return CauseAuth
	case strings.Contains(s, "repository not found"),
		strings.Contains(s, "not found"),
		strings.Contains(s, "404"):
		return CauseNotFound
	default:
		return CauseNetwork
	}
}
