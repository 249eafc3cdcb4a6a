// Package report persists and retrieves build run records by run ID.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no record exists for a run ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run records.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the record of one build run.
type RunResult struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Argv       []string  `json:"argv"`
	Dir        string    `json:"dir"`
	Revision   string    `json:"revision,omitempty"` // git HEAD of the workspace
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output"`
	Truncated  bool      `json:"truncated,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Seconds    float64   `json:"seconds"`  // compiler wall time
	Elapsed    float64   `json:"elapsed"`  // whole build, including setup
	Artifact   string    `json:"artifact"` // where the artifact is expected, not verified

	// Killed is KilledTimeout or KilledInterrupted when the compiler was
	// stopped before it finished.
	Killed string `json:"killed,omitempty"`
}

// Reasons a run was cut short.
const (
	KilledTimeout     = "timeout"
	KilledInterrupted = "interrupted"
)

// Success reports whether the compiler exited with code 0.
func (r *RunResult) Success() bool {
	return r.ExitCode == 0 && r.Killed == ""
}

// Status returns "pass" or "fail".
func (r *RunResult) Status() string {
	if r.Success() {
		return "pass"
	}
	return "fail"
}

// String renders the record for humans: status, command, timing, output.
func (r *RunResult) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(r.Status()))
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Argv, " "))
	fmt.Fprintf(&b, "Directory: %s\n", r.Dir)
	if r.Revision != "" {
		fmt.Fprintf(&b, "Revision: %s\n", r.Revision)
	}
	fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	if r.Killed != "" {
		fmt.Fprintf(&b, "Killed: %s\n", r.Killed)
	}
	fmt.Fprintf(&b, "Duration: %.3fs\n", r.Seconds)
	if r.Success() {
		fmt.Fprintf(&b, "Artifact: %s (expected location, not verified)\n", r.Artifact)
	}
	fmt.Fprintln(&b)

	output := strings.TrimRight(r.Output, "\n")
	if output == "" {
		fmt.Fprintln(&b, "Output: (none)")
	} else {
		fmt.Fprintln(&b, "Output:")
		fmt.Fprintln(&b, output)
	}
	if r.Truncated {
		fmt.Fprintln(&b, "(output truncated)")
	}

	return b.String()
}
