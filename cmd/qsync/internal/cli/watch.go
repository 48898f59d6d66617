package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
	"github.com/albertocavalcante/qsync/cmd/qsync/internal/watch"
)

var watchFlags struct {
	debounce  int
	languages []string
	autoSync  bool
	verbose   bool
	json      bool
	noColor   bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build artifacts for source files as they are saved",
	Long: `Watches the workspace for source file changes and builds the
artifacts of the targets that own them, keeping the artifact cache current
while you edit.

Changes to BUILD files make the synced graph stale. With --auto-sync they
trigger a new sync; otherwise they are reported.

When a daemon is running, watching is started inside the daemon and this
command streams its build events.

Example output:

  $ qsync watch

  qsync: watching /path/to/workspace (1247 targets)

  [14:32:15] ~ java/com/example/Foo.java
  [14:32:15] building java/com/example/Foo.java...
  [14:32:16] //java/com/example (2 updated, 0 removed, 1.2s)

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 0,
		"Debounce window in milliseconds (default from config)")
	watchCmd.Flags().StringSliceVar(&watchFlags.languages, "languages", nil,
		"Only watch specific languages (comma-separated)")
	watchCmd.Flags().BoolVar(&watchFlags.autoSync, "auto-sync", false,
		"Re-sync when BUILD files change")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	debounce := watchFlags.debounce
	if debounce <= 0 {
		debounce = ws.cfg.Watch.DebounceMS
	}
	languages := watchFlags.languages
	if len(languages) == 0 {
		languages = ws.cfg.GetEnabledLanguages()
	}

	if c := ws.client(); c != nil {
		defer func() { _ = c.Close() }()
		return watchViaDaemon(cmd.OutOrStdout(), ws, c, &daemon.WatchStartParams{
			Languages: languages,
			Debounce:  debounce,
			AutoSync:  watchFlags.autoSync,
		})
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := commandContext()
	defer cancel()

	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	w, err := watch.New(watch.Config{
		Root:      ws.root,
		Languages: languages,
		Debounce:  debounce,
		AutoSync:  watchFlags.autoSync,
		Verbose:   watchFlags.verbose,
		NoColor:   watchFlags.noColor,
		JSON:      watchFlags.json,
		Writer:    cmd.OutOrStdout(),
	}, sess)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	w.OnReady(func() int {
		if snap, err := sess.Snapshot(); err == nil {
			return snap.Graph().Len()
		}
		return 0
	})

	// Run watch loop
	return w.Run(ctx)
}

// watchViaDaemon starts watching in the daemon and prints its build events
// until interrupted. A second connection carries the event stream.
func watchViaDaemon(out io.Writer, ws *workspace, c *daemon.Client, params *daemon.WatchStartParams) error {
	res, err := c.WatchStart(params)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "qsync: daemon %s %s\n", res.Status, res.Root)

	events, err := daemon.Connect(ws.daemonPaths().Socket)
	if err != nil {
		return err
	}
	if err := events.Subscribe(); err != nil {
		_ = events.Close()
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = events.Close()
	}()

	err = events.Listen(func(n *daemon.Notification) {
		if n.Method != daemon.MethodBuildEvent {
			return
		}
		var ev daemon.BuildEventParams
		if json.Unmarshal(n.Params, &ev) != nil {
			return
		}
		if watchFlags.json {
			_ = json.NewEncoder(out).Encode(ev)
			return
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", ev.Timestamp, ev.Level, ev.Text)
	})
	if ctx.Err() != nil {
		fmt.Fprintln(out, "qsync: detached (the daemon keeps watching; stop it with `qsync daemon stop`)")
		return nil
	}
	return err
}
