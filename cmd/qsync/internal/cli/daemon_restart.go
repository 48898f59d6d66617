package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
)

var daemonRestartFlags struct {
	force bool
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	Long: `Restart the qsync daemon.

This is equivalent to running 'qsync daemon stop' followed by
'qsync daemon start'. The new daemon restores the last sync.

Examples:
  qsync daemon restart         # Restart the daemon
  qsync daemon restart --force # Force restart if graceful stop fails`,
	Args: cobra.NoArgs,
	RunE: runDaemonRestart,
}

func init() {
	daemonRestartCmd.Flags().BoolVar(&daemonRestartFlags.force, "force", false,
		"Force kill if graceful shutdown fails")

	daemonCmd.AddCommand(daemonRestartCmd)
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths := ws.daemonPaths()
	out := cmd.OutOrStdout()

	status := daemon.GetStatus(paths)
	switch {
	case status.Running:
		fmt.Fprintf(out, "Stopping daemon (PID: %d)...\n", status.PID)
		if !stopDaemon(paths, status.PID, daemonRestartFlags.force) {
			return errors.New("graceful shutdown timed out (use --force to kill)")
		}
		fmt.Fprintln(out, "Daemon stopped")
	case status.Stale:
		fmt.Fprintln(out, "Cleaning up stale files...")
		_ = paths.Cleanup()
	}

	// Small delay before starting
	time.Sleep(200 * time.Millisecond)

	fmt.Fprintln(out, "Starting daemon...")
	daemonStartFlags.foreground = false
	return runDaemonStart(cmd, args)
}
