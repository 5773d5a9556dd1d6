package proc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutput(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), Spec{
		Path: "sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	r := &Runner{}

	res, err := r.Run(context.Background(), Spec{
		Path: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	})

	require.NoError(t, err, "non-zero exit is a normal result")
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)
}

func TestRunMissingExecutable(t *testing.T) {
	r := &Runner{}

	_, err := r.Run(context.Background(), Spec{
		Path: "definitely-not-a-real-binary-qlscan",
	})

	require.Error(t, err)
	var launchErr *LaunchError
	assert.ErrorAs(t, err, &launchErr)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	r := &Runner{}

	start := time.Now()
	_, err := r.Run(context.Background(), Spec{
		Path:    "sleep",
		Args:    []string{"10"},
		Timeout: 100 * time.Millisecond,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "want ErrTimeout, got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second, "process should be killed at the deadline")
}

func TestRunCancelledContext(t *testing.T) {
	r := &Runner{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Spec{Path: "sleep", Args: []string{"10"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "want context.Canceled, got %v", err)
	assert.False(t, errors.Is(err, ErrTimeout), "caller cancellation is not a timeout")
}

func TestRunCancelledMidFlight(t *testing.T) {
	r := &Runner{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Run(ctx, Spec{Path: "sleep", Args: []string{"10"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "want context.Canceled, got %v", err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 5*time.Second, "process should be killed on cancellation")
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	res, err := r.Run(context.Background(), Spec{
		Path: "pwd",
		Dir:  dir,
	})

	require.NoError(t, err)
	assert.Equal(t, dir+"\n", res.Stdout)
}
