//go:build !unix

package git

import "os/exec"

// killProcessGroupOnCancel keeps the default Cancel, which kills only the
// direct child; WaitDelay still bounds the wait for its descendants.
func killProcessGroupOnCancel(cmd *exec.Cmd) {}
