package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albertocavalcante/qsync/pkg/config"
	"github.com/albertocavalcante/qsync/pkg/projectview"
)

func TestPlanInit(t *testing.T) {
	root := t.TempDir()

	plan, err := planInit(root, []string{"java", "proto"}, []string{"java", "proto"})
	if err != nil {
		t.Fatalf("planInit: %v", err)
	}
	if plan.viewFile != filepath.Join(root, ".bazelproject") {
		t.Errorf("viewFile = %q", plan.viewFile)
	}
	if plan.configFile != filepath.Join(root, ".qsync", "config.toml") {
		t.Errorf("configFile = %q", plan.configFile)
	}

	view, err := projectview.Parse(strings.NewReader(string(plan.viewBody)))
	if err != nil {
		t.Fatalf("generated project view does not parse: %v", err)
	}
	if got := strings.Join(view.Include, ","); got != "java,proto" {
		t.Errorf("view includes = %q, want java,proto", got)
	}
	if !view.DeriveTargets {
		t.Error("generated view should derive targets from directories")
	}

	cfgPath := filepath.Join(root, "config.toml")
	if err := os.WriteFile(cfgPath, plan.configBody, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if got := strings.Join(cfg.Languages.Enabled, ","); got != "java,proto" {
		t.Errorf("enabled languages = %q", got)
	}
}

func TestInit_CreatesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "MODULE.bazel", "")
	writeFile(t, root, "src/Main.java", "package app;\n")
	writeFile(t, root, "src/util.kt", "package app\n")

	out, err := run(t, "--workspace", root, "init")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Languages: java, kotlin") {
		t.Errorf("init output = %q", out)
	}
	for _, f := range []string{".bazelproject", ".qsync/config.toml"} {
		if !fileExists(filepath.Join(root, f)) {
			t.Errorf("%s not created", f)
		}
	}

	// A second run leaves existing files alone.
	writeFile(t, root, ".bazelproject", "directories:\n  src\n")
	out, err = run(t, "--workspace", root, "init")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if !strings.Contains(out, "already exists (skipping)") {
		t.Errorf("second init output = %q", out)
	}
	data, _ := os.ReadFile(filepath.Join(root, ".bazelproject"))
	if string(data) != "directories:\n  src\n" {
		t.Errorf("project view overwritten:\n%s", data)
	}
}

func TestInit_DryRun(t *testing.T) {
	root := t.TempDir()

	out, err := run(t, "--workspace", root, "init", "--dry-run", "--languages", "java")
	if err != nil {
		t.Fatalf("init --dry-run: %v", err)
	}
	if !strings.Contains(out, "Would create") {
		t.Errorf("dry-run output = %q", out)
	}
	if fileExists(filepath.Join(root, ".bazelproject")) {
		t.Error("dry run wrote the project view")
	}
}

func TestInit_Check(t *testing.T) {
	root := t.TempDir()

	out, err := run(t, "--workspace", root, "init", "--check", "--languages", "java")
	if err == nil {
		t.Fatal("check passed on an empty workspace")
	}
	if !strings.Contains(out, "project view not found") {
		t.Errorf("check output = %q", out)
	}

	writeFile(t, root, ".bazelproject", "directories:\n  .\n")
	out, err = run(t, "--workspace", root, "init", "--check", "--languages", "java")
	if err != nil {
		t.Fatalf("check after init: %v\n%s", err, out)
	}
}

func TestInit_NoLanguages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "")

	out, err := run(t, "--workspace", root, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "No supported languages detected") {
		t.Errorf("output = %q", out)
	}
}
