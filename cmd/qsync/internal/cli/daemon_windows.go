//go:build windows

package cli

import "syscall"

// daemonSysProcAttr starts the daemon in its own process group so console
// interrupts aimed at the CLI do not reach it.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
