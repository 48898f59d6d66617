package cli

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Query the workspace and rebuild the project structure",
	Long: `Queries the build graph for the directories in the project view,
derives the project structure and saves it as the current snapshot.

Without a project view (.bazelproject) the whole workspace is synced.
A failed sync keeps the previous snapshot.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	return syncWorkspace(cmd, ws)
}

// syncWorkspace syncs through the daemon when one is running.
func syncWorkspace(cmd *cobra.Command, ws *workspace) error {
	out := cmd.OutOrStdout()
	if c := ws.client(); c != nil {
		defer func() { _ = c.Close() }()
		res, err := c.Sync()
		if err != nil {
			return err
		}
		printMessages(out, res.Messages)
		return nil
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()
	_, err = sess.Sync(ctx, newWriterSink(out))
	return err
}
