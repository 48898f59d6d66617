package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
	"github.com/albertocavalcante/qsync/pkg/artifact"
)

var artifactsFlags struct {
	format string
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List the cached build artifacts",
	Args:  cobra.NoArgs,
	RunE:  runArtifacts,
}

var artifactsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the artifact cache",
	Long: `Removes every entry from the artifact cache. The next build of each
target records its artifacts again.

The cache is owned by the daemon while it runs, so stop the daemon first.`,
	Args: cobra.NoArgs,
	RunE: runArtifactsClear,
}

func init() {
	artifactsCmd.Flags().StringVarP(&artifactsFlags.format, "format", "o", formatText,
		"Output format (text, json, yaml)")

	artifactsCmd.AddCommand(artifactsClearCmd)
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	var list *daemon.ArtifactListResult
	if c := ws.client(); c != nil {
		defer func() { _ = c.Close() }()
		if list, err = c.Artifacts(); err != nil {
			return err
		}
	} else {
		ctx, cancel := commandContext()
		defer cancel()
		sess, err := ws.session(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()
		list = artifactList(sess.Artifacts())
	}

	out := cmd.OutOrStdout()
	if artifactsFlags.format != formatText {
		return encode(out, artifactsFlags.format, list)
	}
	return printArtifacts(out, list.Artifacts)
}

func artifactList(entries []artifact.Entry) *daemon.ArtifactListResult {
	res := &daemon.ArtifactListResult{Artifacts: make([]daemon.ArtifactInfo, 0, len(entries))}
	for _, e := range entries {
		res.Artifacts = append(res.Artifacts, daemon.ArtifactInfo{
			Target:    e.Key.Target.String(),
			Role:      string(e.Key.Role),
			Name:      e.Key.Name,
			Path:      e.Path,
			Digest:    e.Digest,
			BuildTime: e.BuildTime,
		})
	}
	return res
}

func printArtifacts(w io.Writer, infos []daemon.ArtifactInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No cached artifacts")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tROLE\tNAME\tDIGEST")
	for _, a := range infos {
		digest := a.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Target, a.Role, a.Name, digest)
	}
	return tw.Flush()
}

func runArtifactsClear(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	if daemon.IsRunningAt(ws.daemonPaths()) {
		return errors.New("the daemon is running; stop it with `qsync daemon stop` before clearing the cache")
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	n := len(sess.Artifacts())
	if err := sess.ClearArtifacts(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d artifacts\n", n)
	return nil
}
