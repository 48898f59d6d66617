package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
)

var daemonStopFlags struct {
	force bool
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Long: `Stop the qsync daemon for this workspace.

By default, sends a graceful shutdown request via the socket.
If the daemon doesn't respond within 5 seconds, use --force to
send SIGTERM and then SIGKILL.

Examples:
  qsync daemon stop         # Graceful shutdown
  qsync daemon stop --force # Force kill if graceful fails`,
	Args: cobra.NoArgs,
	RunE: runDaemonStop,
}

func init() {
	daemonStopCmd.Flags().BoolVar(&daemonStopFlags.force, "force", false,
		"Force kill if graceful shutdown fails")

	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths := ws.daemonPaths()
	out := cmd.OutOrStdout()

	status := daemon.GetStatus(paths)
	if status.Stale {
		fmt.Fprintln(out, "Daemon not running (cleaning up stale files)")
		_ = paths.Cleanup()
		return nil
	}
	if !status.Running {
		fmt.Fprintln(out, "Daemon not running")
		return nil
	}

	fmt.Fprintf(out, "Stopping daemon (PID: %d)...\n", status.PID)
	if !stopDaemon(paths, status.PID, daemonStopFlags.force) {
		if !daemonStopFlags.force {
			fmt.Fprintln(out, "Graceful shutdown timed out. Use --force to kill.")
			return errors.New("shutdown timed out")
		}
		return errors.New("failed to stop daemon")
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}
