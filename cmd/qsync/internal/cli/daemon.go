package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
)

// daemonCmd is the parent command for daemon operations.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the workspace daemon",
	Long: `Manage the qsync background daemon for this workspace.

The daemon keeps the synced snapshot and the artifact cache in memory and
serves them over a Unix socket in the workspace state directory. The CLI,
editors and the watcher share one daemon per workspace.

Commands:
  start   - Start the daemon process
  stop    - Stop the running daemon
  status  - Show daemon status
  restart - Restart the daemon

Examples:
  qsync daemon start              # Start daemon in background
  qsync daemon start --foreground # Run daemon in foreground (for debugging)
  qsync daemon status             # Check if daemon is running
  qsync daemon stop               # Stop the daemon`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// stopDaemon asks the daemon to shut down and waits for it to exit. With
// force it falls back to SIGTERM and then SIGKILL.
func stopDaemon(paths *daemon.Paths, pid int, force bool) (stopped bool) {
	if err := tryGracefulShutdown(paths); err == nil {
		if daemon.WaitForExit(pid, 5*time.Second) {
			return true
		}
	}
	if !force {
		return false
	}
	_ = daemon.StopProcess(pid)
	if daemon.WaitForExit(pid, 2*time.Second) {
		_ = paths.Cleanup()
		return true
	}
	_ = daemon.KillProcess(pid)
	if daemon.WaitForExit(pid, 2*time.Second) {
		_ = paths.Cleanup()
		return true
	}
	return !daemon.IsProcessRunning(pid)
}

// tryGracefulShutdown attempts to stop the daemon via RPC.
func tryGracefulShutdown(paths *daemon.Paths) error {
	client, err := daemon.Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	_, err = client.Shutdown()
	return err
}
