package runner

import "time"

// Result holds the outcome of a command execution.
type Result struct {
	RunID     string        // unique identifier for this run
	Argv      []string      // executable and arguments as invoked
	Dir       string        // absolute working directory
	ExitCode  int           // process exit code
	Output    string        // combined stdout and stderr (may be truncated)
	Truncated bool          // true if output exceeded the size cap
	StartTime time.Time     // wall clock at spawn
	EndTime   time.Time     // wall clock at exit
	Duration  time.Duration // monotonic elapsed time, never negative
	TimedOut  bool          // killed because the timeout elapsed
	Canceled  bool          // killed because the caller's context ended
}

// Success reports whether the process exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.Killed()
}

// Killed reports whether the run was cut short by a timeout or cancellation.
func (r *Result) Killed() bool {
	return r.TimedOut || r.Canceled
}
