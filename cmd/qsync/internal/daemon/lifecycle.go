package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// File names inside the workspace state directory.
const (
	SocketName = "daemon.sock"
	PIDName    = "daemon.pid"
	LogName    = "daemon.log"
)

// Paths locates one workspace daemon's files.
type Paths struct {
	Dir    string
	Socket string
	PID    string
	Log    string
}

// WorkspacePaths returns the daemon files under a workspace state
// directory, such as <root>/.qsync.
func WorkspacePaths(stateDir string) *Paths {
	return &Paths{
		Dir:    stateDir,
		Socket: filepath.Join(stateDir, SocketName),
		PID:    filepath.Join(stateDir, PIDName),
		Log:    filepath.Join(stateDir, LogName),
	}
}

// EnsureDir creates the state directory.
func (p *Paths) EnsureDir() error {
	return os.MkdirAll(p.Dir, 0o700)
}

// WritePID records the current process as the daemon.
func (p *Paths) WritePID() error {
	if err := p.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(p.PID, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID returns the recorded daemon process ID.
func (p *Paths) ReadPID() (int, error) {
	data, err := os.ReadFile(p.PID)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// Cleanup removes the PID file and socket. Missing files are fine.
func (p *Paths) Cleanup() error {
	var errs []error
	if err := os.Remove(p.PID); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove PID file: %w", err))
	}
	if err := os.Remove(p.Socket); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove socket: %w", err))
	}
	return errors.Join(errs...)
}

// IsProcessRunning reports whether pid names a live process.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// Status is what the PID file says about the daemon.
type Status struct {
	Running    bool
	PID        int
	SocketPath string
	// Stale is set when a PID file names a dead process.
	Stale bool
}

// GetStatus reads the daemon status. A nil paths means not running.
func GetStatus(paths *Paths) *Status {
	if paths == nil {
		return &Status{}
	}
	status := &Status{SocketPath: paths.Socket}
	pid, err := paths.ReadPID()
	if err != nil {
		return status
	}
	status.PID = pid
	if IsProcessRunning(pid) {
		status.Running = true
	} else {
		status.Stale = true
	}
	return status
}

// CleanupStale removes files left by a daemon that is no longer running,
// including a socket without a PID file. It reports whether anything was
// removed.
func CleanupStale(paths *Paths) (bool, error) {
	if paths == nil {
		return false, nil
	}
	status := GetStatus(paths)
	if status.Running {
		return false, nil
	}
	if !status.Stale {
		if _, err := os.Stat(paths.Socket); err != nil {
			return false, nil
		}
	}
	if err := paths.Cleanup(); err != nil {
		return false, err
	}
	return true, nil
}

// StopProcess asks a process to terminate.
func StopProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	return process.Signal(syscall.SIGTERM)
}

// KillProcess kills a process.
func KillProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	return process.Signal(syscall.SIGKILL)
}

// WaitForExit polls until pid exits or timeout passes. It reports whether
// the process is gone.
func WaitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !IsProcessRunning(pid)
}
