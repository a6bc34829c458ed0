package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/q2k"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func script(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a POSIX shell")
	}
	path := filepath.Join(dir, "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return "engine.sh"
}

func paths(t *testing.T, dir string) q2k.Paths {
	t.Helper()
	p, err := q2k.PathsFor(dir, "River")
	require.NoError(t, err)
	return p
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(script(t, dir, `echo "**Hydraulics Summary**" > River.out`), 10*time.Second)
	require.NoError(t, r.Run(context.Background(), dir, paths(t, dir)))

	_, err := os.Stat(filepath.Join(dir, "River.out"))
	assert.NoError(t, err, "engine runs inside its directory")
}

func TestRunMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner("", time.Second)
	err := r.Run(context.Background(), dir, paths(t, dir))

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.True(t, errors.Is(err, ErrExecutableMissing))
	assert.Equal(t, filepath.Join(dir, DefaultExecutable), inv.Path)
}

func TestRunNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(script(t, dir, "echo boom >&2\nexit 3"), 10*time.Second)
	err := r.Run(context.Background(), dir, paths(t, dir))

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "exit status 3")
	assert.Contains(t, inv.Reason, "boom")
	assert.False(t, inv.Timeout)
}

func TestRunWithoutReport(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(script(t, dir, "exit 0"), 10*time.Second)
	err := r.Run(context.Background(), dir, paths(t, dir))

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, inv.Reason, "no report")
}

func TestRunTimeout(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(script(t, dir, "exec sleep 10"), 200*time.Millisecond)

	start := time.Now()
	err := r.Run(context.Background(), dir, paths(t, dir))
	assert.Less(t, time.Since(start), 5*time.Second)

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.True(t, inv.Timeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(script(t, dir, "exec sleep 10"), 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	err := r.Run(ctx, dir, paths(t, dir))

	var inv *InvocationError
	require.ErrorAs(t, err, &inv)
	assert.False(t, inv.Timeout)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPathAbsolute(t *testing.T) {
	r := NewRunner("/opt/q2k/engine", time.Second)
	assert.Equal(t, "/opt/q2k/engine", r.Path("/tmp/x"))
}
