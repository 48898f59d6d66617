package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/session"
)

var addFlags struct {
	noSync  bool
	suggest bool
}

var addCmd = &cobra.Command{
	Use:   "add <directory>",
	Short: "Add a directory to the project view and re-sync",
	Long: `Adds a directory to the directories section of the project view,
creating the project view if there is none, then runs a sync so the new
directory's targets become part of the project.

A directory that was excluded is re-included by dropping its exclusion.

With --suggest the project view is left alone; qsync lists the directories
that would bring the given path into the project, nearest first, with the
number of Bazel packages each would add.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addFlags.noSync, "no-sync", false,
		"Only edit the project view")
	addCmd.Flags().BoolVar(&addFlags.suggest, "suggest", false,
		"List directories that would include the path instead of adding it")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	dir, err := ws.relativePath(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	if addFlags.suggest {
		defer func() { _ = sess.Close() }()
		return suggestDirectories(ctx, cmd.OutOrStdout(), sess, dir)
	}
	changed, err := sess.AddDirectory(dir)
	_ = sess.Close()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintf(out, "%s is already in the project\n", dir)
		return nil
	}
	fmt.Fprintf(out, "Added %s to %s\n", dir, ws.cfg.Sync.ProjectView)
	if addFlags.noSync {
		return nil
	}
	return syncWorkspace(cmd, ws)
}

func suggestDirectories(ctx context.Context, out io.Writer, sess *session.Session, path string) error {
	candidates, err := sess.Candidates(ctx, path)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no Bazel packages contain %s", path)
	}
	for _, c := range candidates {
		fmt.Fprintf(out, "%s\t%d packages\n", displayDir(c.Dir), c.Packages)
	}
	return nil
}
