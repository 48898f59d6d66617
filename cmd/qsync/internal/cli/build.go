package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
)

var buildCmd = &cobra.Command{
	Use:   "build <file>...",
	Short: "Build the artifacts for source files",
	Long: `Resolves each file to the target that owns it, builds those targets
and records the artifacts they produced in the artifact cache.

Every file must be owned by a target in the last synced snapshot; if any
is not, nothing is built. A build that fails part way still records the
artifacts that were produced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths, err := ws.relativePaths(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if c := ws.client(); c != nil {
		defer func() { _ = c.Close() }()
		res, err := c.BuildFiles(paths)
		if err != nil {
			return explain(err)
		}
		printMessages(out, res.Messages)
		printBuildSummary(out, res)
		if res.Warning != "" {
			return errors.New(res.Warning)
		}
		return nil
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	start := time.Now()
	outcome, err := sess.BuildFiles(ctx, newWriterSink(out), paths)
	var buildFail *artifactbuild.BuildFailureError
	if err != nil && !errors.As(err, &buildFail) {
		return explain(err)
	}
	if outcome == nil {
		return errors.New("build returned no outcome")
	}
	res := &daemon.BuildFilesResult{
		ExitCode: outcome.ExitCode,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	for _, t := range outcome.Targets {
		res.Targets = append(res.Targets, t.String())
	}
	if outcome.Update != nil {
		res.Updated = len(outcome.Update.Updated)
		res.Removed = len(outcome.Update.Removed)
	}
	printBuildSummary(out, res)
	return err
}

func printBuildSummary(w io.Writer, res *daemon.BuildFilesResult) {
	fmt.Fprintf(w, "Built %s: %d artifacts updated, %d removed (%s)\n",
		strings.Join(res.Targets, ", "), res.Updated, res.Removed, res.Duration)
}
