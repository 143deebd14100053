//go:build !windows

package player

import (
	"os/exec"
	"syscall"
)

// setupPlayerProcess puts the engine in its own process group so terminal signals aimed at marquee do not reach it
func setupPlayerProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// socketIsFile reports whether the IPC endpoint is a filesystem entry that must exist before dialling
const socketIsFile = true
