package cli

import (
	"fmt"

	"github.com/bazelbuild/bazel-gazelle/label"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/session"
	"github.com/albertocavalcante/qsync/pkg/graph"
)

var depsFlags struct {
	transitive bool
}

var rdepsFlags struct {
	transitive bool
}

var depsCmd = &cobra.Command{
	Use:   "deps <label>",
	Short: "List the dependencies of a target",
	Long: `Lists the compile and runtime dependencies of a target in the last
synced build graph. External dependencies are listed but not expanded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphQuery(cmd, args[0], func(g *graph.Data, t *graph.Target) []label.Label {
			if depsFlags.transitive {
				return g.TransitiveDeps(t.Label)
			}
			return t.AllDeps()
		})
	},
}

var rdepsCmd = &cobra.Command{
	Use:   "rdeps <label>",
	Short: "List the targets that depend on a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphQuery(cmd, args[0], func(g *graph.Data, t *graph.Target) []label.Label {
			if rdepsFlags.transitive {
				return g.TransitiveReverseDeps(t.Label)
			}
			return g.ReverseDeps(t.Label)
		})
	},
}

func init() {
	depsCmd.Flags().BoolVarP(&depsFlags.transitive, "transitive", "t", false,
		"Follow dependencies transitively")
	rdepsCmd.Flags().BoolVarP(&rdepsFlags.transitive, "transitive", "t", false,
		"Follow reverse dependencies transitively")

	rootCmd.AddCommand(depsCmd, rdepsCmd)
}

// runGraphQuery prints the labels query returns for one target of the last
// synced graph. It always runs in-process: the graph is not served over
// the daemon protocol.
func runGraphQuery(cmd *cobra.Command, arg string, query func(*graph.Data, *graph.Target) []label.Label) error {
	l, err := session.ParseLabel(arg)
	if err != nil {
		return err
	}
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	snap, err := sess.Snapshot()
	if err != nil {
		return explain(err)
	}
	g := snap.Graph()
	t, ok := g.Target(l)
	if !ok {
		return fmt.Errorf("no target %s in the synced graph", l)
	}

	out := cmd.OutOrStdout()
	for _, dep := range query(g, t) {
		fmt.Fprintln(out, dep)
	}
	return nil
}
