//go:build windows

package player

import (
	"os/exec"
	"syscall"
)

// setupPlayerProcess detaches the engine from marquee's console
func setupPlayerProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | syscall.DETACHED_PROCESS,
	}
}

// Named pipes do not appear on the filesystem
const socketIsFile = false
