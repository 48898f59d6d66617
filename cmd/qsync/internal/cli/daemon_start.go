package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
	"github.com/albertocavalcante/qsync/internal/log"
)

// startTimeout bounds how long start waits for a background daemon to
// write its PID file and listen.
const startTimeout = 5 * time.Second

var daemonStartFlags struct {
	foreground bool
	logFile    string
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon process",
	Long: `Start the qsync daemon for this workspace.

By default, the daemon runs in the background. Use --foreground to run
in the foreground for debugging.

The daemon restores the last sync on startup and listens on
<workspace>/.qsync/daemon.sock. Multiple clients can connect simultaneously.

Examples:
  qsync daemon start              # Start in background
  qsync daemon start --foreground # Run in foreground (Ctrl+C to stop)`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlags.foreground, "foreground", false,
		"Run in foreground (don't daemonize)")
	daemonStartCmd.Flags().StringVar(&daemonStartFlags.logFile, "log", "",
		"Log file path (default: <workspace>/.qsync/daemon.log)")

	daemonCmd.AddCommand(daemonStartCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths := ws.daemonPaths()
	out := cmd.OutOrStdout()

	// Check if daemon is already running
	status := daemon.GetStatus(paths)
	if status.Running {
		fmt.Fprintf(out, "Daemon already running (PID: %d)\n", status.PID)
		return nil
	}

	// Clean up stale files if needed
	if status.Stale {
		if _, err := daemon.CleanupStale(paths); err != nil {
			log.Warn("failed to clean up stale files", "error", err)
		}
	}

	if daemonStartFlags.foreground {
		return runDaemonForeground(out, ws, paths)
	}
	return runDaemonBackground(out, ws, paths)
}

// runDaemonForeground serves until shutdown.
func runDaemonForeground(out io.Writer, ws *workspace, paths *daemon.Paths) error {
	fmt.Fprintf(out, "Starting daemon in foreground (PID: %d)\n", os.Getpid())
	fmt.Fprintf(out, "Workspace: %s\n", ws.root)
	fmt.Fprintf(out, "Socket: %s\n", paths.Socket)
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out)

	ctx := context.Background()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	server := daemon.NewServer(daemon.ServerConfig{
		Paths:   paths,
		Version: Version,
		Service: sess,
	})

	// Run server (blocks until shutdown)
	return server.Start(ctx)
}

// runDaemonBackground re-executes qsync in foreground mode as a detached
// process logging to the daemon log.
func runDaemonBackground(out io.Writer, ws *workspace, paths *daemon.Paths) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if err := paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}

	logPath := paths.Log
	if daemonStartFlags.logFile != "" {
		logPath = daemonStartFlags.logFile
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd := exec.Command(executable, backgroundArgs(ws.root)...)
	cmd.Dir = ws.root
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	// Detach from parent process
	cmd.SysProcAttr = daemonSysProcAttr()

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Close log file in parent (child keeps its own handle)
	_ = logFile.Close()
	_ = cmd.Process.Release()

	if !waitForDaemon(paths, startTimeout) {
		return fmt.Errorf("daemon failed to start (check %s for details)", logPath)
	}

	status := daemon.GetStatus(paths)
	fmt.Fprintf(out, "Daemon started (PID: %d)\n", status.PID)
	fmt.Fprintf(out, "Socket: %s\n", paths.Socket)
	fmt.Fprintf(out, "Log: %s\n", logPath)
	return nil
}

// backgroundArgs are the arguments of the detached daemon process.
func backgroundArgs(root string) []string {
	args := []string{
		"--workspace", root,
		"--verbosity", strconv.Itoa(globalFlags.verbosity),
		"--log-format", globalFlags.logFormat,
	}
	if globalFlags.config != "" {
		args = append(args, "--config", globalFlags.config)
	}
	return append(args, "daemon", "start", "--foreground")
}

// waitForDaemon polls until the daemon answers on its socket.
func waitForDaemon(paths *daemon.Paths, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if daemon.IsRunningAt(paths) {
			if c, err := daemon.Connect(paths.Socket); err == nil {
				_ = c.Close()
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
