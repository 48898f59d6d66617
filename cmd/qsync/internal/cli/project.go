package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/pkg/project"
)

var projectFlags struct {
	format string
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Print the project structure of the last sync",
	Long: `Prints the IDE project structure: content roots with their source
folders and excludes, external libraries with the jars the artifact cache
holds for them, and generated source roots.`,
	Args: cobra.NoArgs,
	RunE: runProject,
}

func init() {
	projectCmd.Flags().StringVarP(&projectFlags.format, "format", "o", formatText,
		"Output format (text, json, yaml)")

	rootCmd.AddCommand(projectCmd)
}

func runProject(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	var p *project.Project
	if c := ws.client(); c != nil {
		defer func() { _ = c.Close() }()
		p, err = c.Project()
	} else {
		ctx, cancel := commandContext()
		defer cancel()
		sess, serr := ws.session(ctx)
		if serr != nil {
			return serr
		}
		defer func() { _ = sess.Close() }()
		p, err = sess.Project()
	}
	if err != nil {
		return explain(err)
	}

	out := cmd.OutOrStdout()
	if projectFlags.format != formatText {
		return encode(out, projectFlags.format, p)
	}
	printProject(out, p)
	return nil
}

func printProject(w io.Writer, p *project.Project) {
	for _, cr := range p.ContentRoots {
		fmt.Fprintf(w, "root %s\n", displayDir(cr.Path))
		for _, sf := range cr.SourceFolders {
			var tags string
			if sf.IsTest {
				tags += " [test]"
			}
			if sf.IsGenerated {
				tags += " [generated]"
			}
			if sf.PackagePrefix != "" {
				fmt.Fprintf(w, "  src %s (%s)%s\n", displayDir(sf.Path), sf.PackagePrefix, tags)
			} else {
				fmt.Fprintf(w, "  src %s%s\n", displayDir(sf.Path), tags)
			}
		}
		for _, ex := range cr.Excludes {
			fmt.Fprintf(w, "  exclude %s\n", ex)
		}
	}
	for _, g := range p.GeneratedSourceRoots {
		fmt.Fprintf(w, "generated %s\n", g)
	}
	for _, lib := range p.Libraries {
		fmt.Fprintf(w, "library %s (%d jars)\n", lib.Name, len(lib.ClassJars))
	}
}

// displayDir shows the workspace root as ".".
func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
