// Package build drives one example build: it invokes the compiler once
// through a CommandRunner, logs the timeline, and produces a run record.
// It is consumed by both the CLI and the MCP server.
package build

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigdouble/exbuild/internal/buildlog"
	"github.com/bigdouble/exbuild/internal/config"
	"github.com/bigdouble/exbuild/internal/metrics"
	"github.com/bigdouble/exbuild/internal/report"
	"github.com/bigdouble/exbuild/internal/runner"
	"github.com/bigdouble/exbuild/internal/vcs"
	"github.com/sirupsen/logrus"
)

// CommandRunner executes one command. Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, label string, argv []string, cwd string) (*runner.Result, error)
}

// Engine holds the dependencies of a build.
type Engine struct {
	Invocation config.Invocation
	Runner     CommandRunner
	Log        logrus.FieldLogger

	// Optional.
	Store   report.Store
	Metrics *metrics.Collector
}

// Result holds the outcome of a build.
type Result struct {
	RunResult *report.RunResult
	Exec      *runner.Result
}

// Exit statuses for builds that did not run to completion.
const (
	ExitTimeout     = 124 // the compiler was killed after the timeout
	ExitInterrupted = 130 // the build was interrupted, e.g. by SIGINT
)

// ExitStatus maps the compiler's exit code to the process exit status.
// With failOpen, a failed compile still exits 0. A killed build never
// does: it reports ExitTimeout or ExitInterrupted.
func (r *Result) ExitStatus(failOpen bool) int {
	switch {
	case r.Exec.TimedOut:
		return ExitTimeout
	case r.Exec.Canceled:
		return ExitInterrupted
	case failOpen:
		return 0
	case r.Exec.ExitCode < 0:
		// Killed by a signal we did not send.
		return 1
	}
	return r.Exec.ExitCode
}

// Build runs the compiler once and logs the start, the compiler result,
// the artifact hint and the total time, in that order.
//
// A compiler that exits non-zero is a successful Build call; inspect
// Result.Exec.ExitCode. An error means the compiler could not be spawned,
// in which case nothing after the start record is logged.
func (e *Engine) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := e.logger()
	inv := e.Invocation

	log.Infof("Started at %.6f", float64(start.UnixNano())/1e9)

	if _, err := ResolveCompiler(inv.Executable); err != nil {
		return nil, err
	}

	res, err := e.Runner.Run(ctx, inv.Label, inv.Argv(), inv.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inv.Label, err)
	}

	log.Infof("Build artifact located next to %s", inv.Source)
	elapsed := time.Since(start)
	log.Infof("Finished building in %.6f", elapsed.Seconds())

	rr := &report.RunResult{
		ID:         res.RunID,
		Label:      inv.Label,
		Argv:       res.Argv,
		Dir:        res.Dir,
		ExitCode:   res.ExitCode,
		Output:     res.Output,
		Truncated:  res.Truncated,
		StartedAt:  res.StartTime,
		FinishedAt: res.EndTime,
		Seconds:    res.Duration.Seconds(),
		Elapsed:    elapsed.Seconds(),
		Artifact:   ExpectedArtifact(inv),
	}
	switch {
	case res.TimedOut:
		rr.Killed = report.KilledTimeout
	case res.Canceled:
		rr.Killed = report.KilledInterrupted
	}
	if rev, err := vcs.Revision(res.Dir); err != nil {
		log.Debugf("no revision for %s: %v", res.Dir, err)
	} else {
		rr.Revision = rev
	}

	if e.Metrics != nil {
		e.Metrics.Observe(rr)
	}
	if e.Store != nil {
		if err := e.Store.Save(rr); err != nil {
			log.Warnf("saving run %s: %v", rr.ID, err)
		}
	}

	return &Result{RunResult: rr, Exec: res}, nil
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return buildlog.Discard()
}

// artifactExt maps dart compile target kinds to the output file extension.
var artifactExt = map[string]string{
	"exe":          ".exe",
	"aot-snapshot": ".aot",
	"jit-snapshot": ".jit",
	"kernel":       ".dill",
	"js":           ".js",
	"wasm":         ".wasm",
}

// ExpectedArtifact returns where dart compile writes its output by default:
// next to the source, with the target's extension. The path is relative to
// the invocation's working directory and is never checked on disk.
func ExpectedArtifact(inv config.Invocation) string {
	ext, ok := artifactExt[inv.Target]
	if !ok {
		return inv.Source
	}
	return strings.TrimSuffix(inv.Source, filepath.Ext(inv.Source)) + ext
}

// ResolveCompiler returns the path of the compiler launcher. Bare names are
// looked up on PATH; names containing a path separator are returned as is
// and resolved by the runner against its working directory.
func ResolveCompiler(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return name, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", NewErrCompilerUnavailable(name)
	}
	return path, nil
}
