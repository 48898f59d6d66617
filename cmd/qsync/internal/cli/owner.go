package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ownerCmd = &cobra.Command{
	Use:   "owner <file>...",
	Short: "Show the target that owns each source file",
	Long: `Prints the build target that owns each file in the last synced snapshot.

When several targets list the same file, the owner is the one with the
smallest label, so the answer is stable across syncs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOwner,
}

func init() {
	rootCmd.AddCommand(ownerCmd)
}

func runOwner(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths, err := ws.relativePaths(args)
	if err != nil {
		return err
	}

	lookup, done, err := ownerLookup(ws)
	if err != nil {
		return err
	}
	defer done()

	out := cmd.OutOrStdout()
	var missing int
	for _, p := range paths {
		target, ok, err := lookup(p)
		if err != nil {
			return explain(err)
		}
		if !ok {
			missing++
			fmt.Fprintf(out, "%s\t(no owner)\n", p)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", p, target)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d files have no owning target", missing, len(paths))
	}
	return nil
}

// ownerLookup returns an owner query against the daemon or a local
// session restored from the last sync.
func ownerLookup(ws *workspace) (func(string) (string, bool, error), func(), error) {
	if c := ws.client(); c != nil {
		lookup := func(p string) (string, bool, error) {
			res, err := c.Owner(p)
			if err != nil {
				return "", false, err
			}
			return res.Target, res.Found, nil
		}
		return lookup, func() { _ = c.Close() }, nil
	}

	ctx, cancel := commandContext()
	defer cancel()
	sess, err := ws.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	lookup := func(p string) (string, bool, error) {
		l, ok, err := sess.Owner(p)
		if err != nil || !ok {
			return "", ok, err
		}
		return l.String(), true, nil
	}
	return lookup, func() { _ = sess.Close() }, nil
}
