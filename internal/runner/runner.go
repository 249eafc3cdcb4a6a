// Package runner executes a single external command with a resolved
// working directory, combined output capture, an optional timeout, and an
// output size limit.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bigdouble/exbuild/internal/buildlog"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxOutput caps captured output when MaxOutput is unset.
const DefaultMaxOutput = 1 << 20 // 1 MB

// WaitDelay bounds how long Run waits for the output pipes to close after
// the child has been killed.
const WaitDelay = 2 * time.Second

// Runner executes commands relative to a workspace directory.
type Runner struct {
	// Workspace is the base for relative working directories. Empty means
	// the process's current directory.
	Workspace string
	// Timeout bounds a run. Zero waits for the child indefinitely.
	Timeout time.Duration
	// MaxOutput is the combined output cap in bytes.
	MaxOutput int
	// Confine rejects working directories outside Workspace.
	Confine bool
	// Log receives the start and result records. Nil discards them.
	Log logrus.FieldLogger
}

// Run executes argv in cwd and blocks until it exits. The first element of
// argv is the executable (resolved via PATH), the rest are arguments.
// label only appears in log records.
//
// A non-zero exit is not an error: it is reported in Result.ExitCode. A
// child killed because ctx ended or Timeout elapsed is reported the same
// way, with Result.TimedOut or Result.Canceled set. An error means the
// process could not be spawned or cwd could not be resolved.
func (r *Runner) Run(ctx context.Context, label string, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.ResolveDir(cwd)
	if err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	log := r.logger()
	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = WaitDelay
	killGroup(cmd)

	// Stderr is merged into stdout through the same writer.
	out := &limitWriter{limit: maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	log.Infof("%s @@ %s", label, dir)
	start := time.Now()
	log.Infof("%s invoked at %s", label, start.Format(time.ANSIC))

	runErr := cmd.Run()
	end := time.Now()

	exitCode := 0
	var timedOut, canceled bool
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case cmd.ProcessState != nil && ctx.Err() != nil:
			// Killed on cancellation; the exit status is whatever the
			// signal left behind.
			exitCode = -1
			timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
			canceled = !timedOut
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			// Binary not found, bad directory, permission denied.
			return nil, fmt.Errorf("executing %s: %w", argv[0], runErr)
		}
	}

	res := &Result{
		RunID:     runID,
		Argv:      append([]string(nil), argv...),
		Dir:       dir,
		ExitCode:  exitCode,
		Output:    out.String(),
		Truncated: out.truncated(),
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		TimedOut:  timedOut,
		Canceled:  canceled,
	}

	switch {
	case timedOut:
		log.Warnf("%s killed after %.3f (timeout %s)", label, res.Duration.Seconds(), r.Timeout)
	case canceled:
		log.Warnf("%s killed after %.3f (interrupted)", label, res.Duration.Seconds())
	}

	log.Infof("%s @@ TOOK: %.3f %s\nOUTPUT [%d]\n%s", label, res.Duration.Seconds(), dir, res.ExitCode, res.Output)
	return res, nil
}

// ResolveDir resolves cwd relative to the workspace. An empty cwd is the
// workspace itself and absolute paths are kept as given. With Confine set,
// the result must stay inside the workspace.
func (r *Runner) ResolveDir(cwd string) (string, error) {
	workspace, err := r.workspace()
	if err != nil {
		return "", err
	}
	if cwd == "" {
		return workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Join(workspace, cwd)
	}

	if !r.Confine {
		return dir, nil
	}

	rel, err := filepath.Rel(workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, workspace)
	}
	return dir, nil
}

func (r *Runner) workspace() (string, error) {
	if r.Workspace != "" {
		return filepath.Abs(r.Workspace)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining workspace: %w", err)
	}
	return wd, nil
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	return buildlog.Discard()
}

// limitWriter keeps up to limit bytes and silently discards the rest.
type limitWriter struct {
	mu      sync.Mutex
	buf     strings.Builder
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.dropped = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *limitWriter) truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}
