// Package codeql drives the CodeQL engine: building analysis databases from
// fetched sources and running queries against them.
package codeql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"qlscan/internal/proc"
)

// CLI wraps the codeql executable.
type CLI struct {
	Path    string // executable path, usually "codeql"
	Runner  *proc.Runner
	Threads int // 0 = engine default
	RAMMiB  int // 0 = engine default
	Logger  *slog.Logger
}

func (c *CLI) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *CLI) resourceArgs() []string {
	var args []string
	if c.Threads > 0 {
		args = append(args, fmt.Sprintf("--threads=%d", c.Threads))
	}
	if c.RAMMiB > 0 {
		args = append(args, fmt.Sprintf("--ram=%d", c.RAMMiB))
	}
	return args
}

// Version probes the engine. Used at startup to fail fast when the
// executable is missing or broken.
func (c *CLI) Version(ctx context.Context) (string, error) {
	res, err := c.Runner.Run(ctx, proc.Spec{
		Path:    c.Path,
		Args:    []string{"version", "--format=terse"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("codeql version: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("codeql version exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// createDatabase invokes `codeql database create`. The destination must not
// exist; the engine refuses to overwrite.
func (c *CLI) createDatabase(ctx context.Context, dbPath, sourceRoot, language string, timeout time.Duration) (proc.Result, error) {
	args := []string{
		"database", "create", dbPath,
		"--language=" + language,
		"--source-root=" + sourceRoot,
	}
	args = append(args, c.resourceArgs()...)

	c.logger().Info("creating analysis database",
		"path", dbPath, "language", language, "source", sourceRoot)

	return c.Runner.Run(ctx, proc.Spec{Path: c.Path, Args: args, Timeout: timeout})
}

// analyze invokes `codeql database analyze` for a single query, writing a
// SARIF report with snippets to outputPath.
func (c *CLI) analyze(ctx context.Context, dbPath, queryFile, outputPath string, timeout time.Duration) (proc.Result, error) {
	args := []string{
		"database", "analyze", dbPath, queryFile,
		"--format=sarifv2.1.0",
		"--output=" + outputPath,
		"--sarif-add-snippets",
	}
	args = append(args, c.resourceArgs()...)

	c.logger().Info("analyzing database", "path", dbPath, "query", queryFile)

	return c.Runner.Run(ctx, proc.Spec{Path: c.Path, Args: args, Timeout: timeout})
}
