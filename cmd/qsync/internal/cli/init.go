package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/detect"
	"github.com/albertocavalcante/qsync/pkg/config"
	"github.com/albertocavalcante/qsync/pkg/projectview"
)

var initFlags struct {
	languages []string
	check     bool
	dryRun    bool
}

var initCmd = &cobra.Command{
	Use:   "init [directory...]",
	Short: "Create a project view and qsync config for a workspace",
	Long: `Initializes a workspace for qsync.

This command will:
1. Detect the languages used in the workspace
2. Create .bazelproject including the given directories (default: all)
3. Create .qsync/config.toml enabling the detected languages

Existing files are never overwritten.
Use --check to verify configuration without making changes (useful for CI).
Use --dry-run to preview changes without applying them.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringSliceVarP(&initFlags.languages, "languages", "l", nil,
		"Languages to enable (auto-detected if not specified)")
	initCmd.Flags().BoolVar(&initFlags.check, "check", false,
		"Check if the workspace is initialized (exit 1 if not)")
	initCmd.Flags().BoolVar(&initFlags.dryRun, "dry-run", false,
		"Show what would change without applying")

	rootCmd.AddCommand(initCmd)
}

// initPlan is what init writes.
type initPlan struct {
	viewFile   string
	viewBody   []byte
	configFile string
	configBody []byte
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot(globalFlags.workspace)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	languages := initFlags.languages
	if len(languages) == 0 {
		detected, err := detect.Languages(root)
		if err != nil {
			return fmt.Errorf("failed to detect languages: %w", err)
		}
		languages = detect.Supported(detected, config.AllLanguages)
	}
	if len(languages) == 0 {
		fmt.Fprintln(out, "No supported languages detected. Use --languages to specify manually.")
		return nil
	}
	fmt.Fprintf(out, "Languages: %s\n", strings.Join(languages, ", "))

	dirs := make([]string, 0, len(args))
	for _, a := range args {
		dirs = append(dirs, filepath.ToSlash(filepath.Clean(a)))
	}
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	plan, err := planInit(root, dirs, languages)
	if err != nil {
		return err
	}

	switch {
	case initFlags.check:
		return checkInit(out, plan)
	case initFlags.dryRun:
		dryRunInit(out, plan)
		return nil
	}
	return applyInit(out, plan)
}

func planInit(root string, dirs, languages []string) (*initPlan, error) {
	view := projectview.New(dirs...)

	var buf bytes.Buffer
	buf.WriteString("# qsync project configuration\n\n")
	err := toml.NewEncoder(&buf).Encode(struct {
		Languages config.LanguagesConfig `toml:"languages"`
	}{config.LanguagesConfig{Enabled: languages, Disabled: []string{}}})
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return &initPlan{
		viewFile:   filepath.Join(root, projectview.DefaultFile),
		viewBody:   view.Format(),
		configFile: config.GetProjectConfigPaths(root)[0],
		configBody: buf.Bytes(),
	}, nil
}

func checkInit(w io.Writer, plan *initPlan) error {
	var issues []string
	if !fileExists(plan.viewFile) {
		issues = append(issues, fmt.Sprintf("project view not found at %s", plan.viewFile))
	} else if _, err := projectview.Load(plan.viewFile); err != nil {
		issues = append(issues, err.Error())
	}
	if fileExists(plan.configFile) {
		if _, err := config.LoadFile(plan.configFile); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if len(issues) > 0 {
		fmt.Fprintln(w, "Workspace configuration issues:")
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
		fmt.Fprintln(w, "\nRun 'qsync init' to fix")
		return errors.New("workspace is not initialized")
	}

	fmt.Fprintln(w, "Workspace is properly configured")
	return nil
}

func dryRunInit(w io.Writer, plan *initPlan) {
	for _, f := range []struct {
		path string
		body []byte
	}{{plan.viewFile, plan.viewBody}, {plan.configFile, plan.configBody}} {
		if fileExists(f.path) {
			fmt.Fprintf(w, "%s exists (would not modify)\n", f.path)
			continue
		}
		fmt.Fprintf(w, "Would create %s:\n", f.path)
		fmt.Fprintln(w, string(f.body))
	}
}

func applyInit(w io.Writer, plan *initPlan) error {
	if fileExists(plan.viewFile) {
		fmt.Fprintf(w, "%s already exists (skipping)\n", filepath.Base(plan.viewFile))
	} else {
		if err := os.WriteFile(plan.viewFile, plan.viewBody, 0o644); err != nil {
			return fmt.Errorf("failed to write project view: %w", err)
		}
		fmt.Fprintf(w, "Created %s\n", plan.viewFile)
	}

	if fileExists(plan.configFile) {
		fmt.Fprintf(w, "%s already exists (skipping)\n", plan.configFile)
	} else {
		if err := os.MkdirAll(filepath.Dir(plan.configFile), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(plan.configFile, plan.configBody, 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(w, "Created %s\n", plan.configFile)
	}

	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Edit .bazelproject to narrow the directories")
	fmt.Fprintln(w, "  2. Run 'qsync sync' to build the project structure")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
