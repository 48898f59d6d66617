package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
)

var daemonStatusFlags struct {
	jsonOutput bool
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the status of the qsync daemon for this workspace.

Displays whether the daemon is running, its PID, socket path, uptime,
whether it holds a synced snapshot and its watch status.

Examples:
  qsync daemon status        # Show status as text
  qsync daemon status --json # Show status as JSON`,
	Args: cobra.NoArgs,
	RunE: runDaemonStatus,
}

func init() {
	daemonStatusCmd.Flags().BoolVar(&daemonStatusFlags.jsonOutput, "json", false,
		"Output as JSON")

	daemonCmd.AddCommand(daemonStatusCmd)
}

// DaemonStatusOutput is the JSON output format for daemon status.
type DaemonStatusOutput struct {
	Running        bool     `json:"running"`
	PID            int      `json:"pid,omitempty"`
	SocketPath     string   `json:"socket_path"`
	Root           string   `json:"root,omitempty"`
	Version        string   `json:"version,omitempty"`
	Uptime         string   `json:"uptime,omitempty"`
	StartTime      string   `json:"start_time,omitempty"`
	Synced         bool     `json:"synced"`
	Watching       bool     `json:"watching"`
	WatchLanguages []string `json:"watch_languages,omitempty"`
	Builds         int      `json:"builds,omitempty"`
	Syncs          int      `json:"syncs,omitempty"`
	Errors         int      `json:"errors,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths := ws.daemonPaths()

	// Check basic status from PID file
	status := daemon.GetStatus(paths)

	output := DaemonStatusOutput{
		Running:    status.Running,
		PID:        status.PID,
		SocketPath: paths.Socket,
	}

	// If running, get detailed info from daemon
	if status.Running {
		if err := enrichStatusFromDaemon(paths, &output); err != nil {
			output.Error = err.Error()
		}
	} else if status.Stale {
		output.Error = "stale PID file (daemon crashed)"
	}

	out := cmd.OutOrStdout()
	if daemonStatusFlags.jsonOutput {
		return encode(out, formatJSON, output)
	}
	outputDaemonStatusText(out, output, status)
	return nil
}

// enrichStatusFromDaemon connects to the daemon to get detailed status.
func enrichStatusFromDaemon(paths *daemon.Paths, output *DaemonStatusOutput) error {
	client, err := daemon.Connect(paths.Socket)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = client.Close() }()

	ping, err := client.Ping()
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	output.Root = ping.Root
	output.Version = ping.Version
	output.Uptime = ping.Uptime
	output.StartTime = ping.StartTime
	output.Synced = ping.Synced

	watchStatus, err := client.WatchStatus()
	if err != nil {
		return fmt.Errorf("watch status failed: %w", err)
	}
	output.Watching = watchStatus.Watching
	output.WatchLanguages = watchStatus.Languages
	output.Builds = watchStatus.Builds
	output.Syncs = watchStatus.Syncs
	output.Errors = watchStatus.Errors
	return nil
}

// outputDaemonStatusText outputs status as human-readable text.
func outputDaemonStatusText(w io.Writer, output DaemonStatusOutput, status *daemon.Status) {
	if !output.Running {
		fmt.Fprintln(w, "Daemon: not running")
		if status.Stale {
			fmt.Fprintf(w, "  (stale PID file found for PID %d)\n", status.PID)
			fmt.Fprintln(w, "  Run 'qsync daemon start' to start the daemon")
		}
		return
	}

	fmt.Fprintf(w, "Daemon: running (PID: %d)\n", output.PID)
	fmt.Fprintf(w, "Socket: %s\n", output.SocketPath)
	if output.Root != "" {
		fmt.Fprintf(w, "Workspace: %s\n", output.Root)
	}
	if output.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", output.Version)
	}
	if output.Uptime != "" {
		fmt.Fprintf(w, "Uptime: %s\n", formatUptime(output.Uptime))
	}
	if output.Synced {
		fmt.Fprintln(w, "Synced: yes")
	} else {
		fmt.Fprintln(w, "Synced: no (run 'qsync sync')")
	}

	if output.Watching {
		fmt.Fprintln(w, "Watching: yes")
		if len(output.WatchLanguages) > 0 {
			fmt.Fprintf(w, "  Languages: %s\n", strings.Join(output.WatchLanguages, ", "))
		}
		fmt.Fprintf(w, "  Builds: %d, syncs: %d, errors: %d\n", output.Builds, output.Syncs, output.Errors)
	} else {
		fmt.Fprintln(w, "Watching: no")
	}

	if output.Error != "" {
		fmt.Fprintf(w, "Warning: %s\n", output.Error)
	}
}
