//go:build windows

package shell

import (
	"os/exec"
	"syscall"
)

// createNewProcessGroup keeps Ctrl-C in our console from reaching the child.
const createNewProcessGroup = 0x00000200

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
