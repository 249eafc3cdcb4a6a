//go:build !unix

package runner

import "os/exec"

// killGroup keeps the default cancellation, which kills the direct child.
// WaitDelay still bounds the wait for pipes held by its descendants.
func killGroup(cmd *exec.Cmd) {}
