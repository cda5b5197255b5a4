//go:build unix

package shell

import (
	"os/exec"
	"syscall"
)

// detach moves the child into its own session so a terminal hangup
// does not take it down with us.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
