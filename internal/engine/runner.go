// Package engine runs the external QUAL2K executable.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/q2k"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
)

// DefaultExecutable is the engine binary shipped with the template files.
const DefaultExecutable = "q2kfortran2_12.exe"

// ErrExecutableMissing is wrapped by an InvocationError when the engine
// binary does not exist.
var ErrExecutableMissing = errors.New("engine executable not found")

// InvocationError reports a failed engine run.
type InvocationError struct {
	Path    string
	Reason  string
	Timeout bool
	Err     error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("engine %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Runner invokes the engine synchronously. A zero Timeout means no limit
// beyond the caller's context.
type Runner struct {
	Executable string
	Timeout    time.Duration
	WaitDelay  time.Duration
	Logger     *slog.Logger
}

// NewRunner returns a runner for executable. A relative name is resolved
// inside the working directory of each run.
func NewRunner(executable string, timeout time.Duration) *Runner {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &Runner{
		Executable: executable,
		Timeout:    timeout,
		WaitDelay:  2 * time.Second,
		Logger:     logger.Component("engine"),
	}
}

// Path returns the executable path used for a run in dir.
func (r *Runner) Path(dir string) string {
	if filepath.IsAbs(r.Executable) {
		return r.Executable
	}
	return filepath.Join(dir, r.Executable)
}

// Run executes the engine with dir as its working directory and checks that
// the report named in paths was produced.
func (r *Runner) Run(ctx context.Context, dir string, paths q2k.Paths) error {
	exe := r.Path(dir)
	if _, err := os.Stat(exe); err != nil {
		return &InvocationError{Path: exe, Reason: "cannot start", Err: fmt.Errorf("%w: %v", ErrExecutableMissing, err)}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe)
	cmd.Dir = dir
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &InvocationError{
			Path:    exe,
			Reason:  fmt.Sprintf("aborted after %s", elapsed.Round(time.Millisecond)),
			Timeout: errors.Is(ctxErr, context.DeadlineExceeded),
			Err:     ctxErr,
		}
	}
	if err != nil {
		reason := "run failed"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		if tail := lastLine(stderr.Bytes()); tail != "" {
			reason += " (" + tail + ")"
		}
		return &InvocationError{Path: exe, Reason: reason, Err: err}
	}

	if _, err := os.Stat(paths.Report); err != nil {
		return &InvocationError{Path: exe, Reason: "no report at " + paths.Report, Err: err}
	}

	if r.Logger != nil {
		r.Logger.Debug("engine finished", "dir", dir, "duration", elapsed)
	}
	return nil
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
