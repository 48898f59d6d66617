package runner_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/runner"
	"github.com/albertocavalcante/qsync/pkg/artifact"
)

const queryOutput = `{"type":"SOURCE_FILE","sourceFile":{"name":"//pkg:A.java"}}
{"type":"RULE","rule":{"name":"//pkg:a","ruleClass":"java_library","attribute":[{"name":"srcs","type":"LABEL_LIST","stringListValue":["//pkg:A.java"]}]}}
`

const bepOutput = `{"id":{"namedSet":{"id":"0"}},"namedSetOfFiles":{"files":[{"name":"pkg/liba.jar","pathPrefix":["bazel-out","k8-fastbuild","bin"]},{"name":"pkg/liba-src.jar","uri":"file:///abs/pkg/liba-src.jar"}]}}
{"id":{"targetCompleted":{"label":"//pkg:a"}},"completed":{"success":true,"outputGroup":[{"name":"default","fileSets":[{"id":"0"}]}]}}
{"id":{"buildFinished":{}},"finished":{"exitCode":{"name":"SUCCESS","code":0}}}
`

// fakeBazel writes a shell script standing in for bazel. It prints
// fixtures/query.json for queries and copies fixtures/bep.json to the
// requested build event file for builds, exiting with the given codes.
func fakeBazel(t *testing.T, queryExit, buildExit int, withBEP bool) (root, bazel string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake bazel is a shell script")
	}
	root = t.TempDir()
	fixtures := filepath.Join(root, "fixtures")
	if err := os.MkdirAll(fixtures, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(fixtures, "query.json"), queryOutput, 0o644)
	if withBEP {
		writeFile(t, filepath.Join(fixtures, "bep.json"), bepOutput, 0o644)
	}
	script := fmt.Sprintf(`#!/bin/sh
bep=""
for arg in "$@"; do
  case "$arg" in
    --build_event_json_file=*) bep="${arg#--build_event_json_file=}" ;;
  esac
done
echo "$@" > %[1]s/args
case "$1" in
  query) cat %[1]s/query.json; exit %[2]d ;;
  build) [ -f %[1]s/bep.json ] && cp %[1]s/bep.json "$bep"; exit %[3]d ;;
esac
exit 2
`, fixtures, queryExit, buildExit)
	bazel = filepath.Join(root, "bin", "bazel")
	if err := os.MkdirAll(filepath.Dir(bazel), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, bazel, script, 0o755)
	return root, bazel
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func lastArgs(t *testing.T, root string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "fixtures", "args"))
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(b))
}

func TestFindBazel(t *testing.T) {
	root := t.TempDir()
	explicit := filepath.Join(root, "my-bazel")
	writeFile(t, explicit, "", 0o755)

	r := runner.New(root, runner.WithBinary(explicit))
	got, err := r.FindBazel()
	if err != nil || got != explicit {
		t.Errorf("FindBazel() = %q, %v; want %q", got, err, explicit)
	}

	wrapper := filepath.Join(root, "tools", "bazel")
	if err := os.MkdirAll(filepath.Dir(wrapper), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, wrapper, "", 0o755)
	t.Setenv(runner.EnvBazel, "")
	t.Setenv("PATH", t.TempDir())
	got, err = runner.New(root, runner.WithBinary(filepath.Join(root, "missing"))).FindBazel()
	if err != nil || got != wrapper {
		t.Errorf("FindBazel() = %q, %v; want workspace wrapper %q", got, err, wrapper)
	}
}

func TestFindBazel_Env(t *testing.T) {
	root := t.TempDir()
	fromEnv := filepath.Join(root, "env-bazel")
	writeFile(t, fromEnv, "", 0o755)
	t.Setenv(runner.EnvBazel, fromEnv)

	got, err := runner.New(root).FindBazel()
	if err != nil || got != fromEnv {
		t.Errorf("FindBazel() = %q, %v; want %q", got, err, fromEnv)
	}
}

func TestFindBazel_NotFound(t *testing.T) {
	t.Setenv(runner.EnvBazel, "")
	t.Setenv("PATH", t.TempDir())
	_, err := runner.New(t.TempDir()).FindBazel()
	if !errors.Is(err, runner.ErrBazelNotFound) {
		t.Errorf("FindBazel() error = %v, want ErrBazelNotFound", err)
	}
}

func TestQuery(t *testing.T) {
	root, bazel := fakeBazel(t, runner.ExitPartial, 0, true)
	r := runner.New(root, runner.WithBinary(bazel), runner.WithQueryFlags("--noimplicit_deps"))

	s, err := r.Query(context.Background(), []string{"pkg"}, []string{"pkg/old"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if s.RuleCount() != 1 || s.Rules[0].Label != "//pkg:a" {
		t.Errorf("Query() rules = %+v", s.Rules)
	}
	args := lastArgs(t, root)
	for _, want := range []string{"query", "//pkg/... - //pkg/old/...", "--output=streamed_jsonproto", "--noimplicit_deps"} {
		if !strings.Contains(args, want) {
			t.Errorf("query args %q missing %q", args, want)
		}
	}
}

func TestQuery_Failure(t *testing.T) {
	root, bazel := fakeBazel(t, 7, 0, true)
	_, err := runner.New(root, runner.WithBinary(bazel)).Query(context.Background(), []string{"pkg"}, nil)
	if err == nil || !strings.Contains(err.Error(), "code 7") {
		t.Errorf("Query() error = %v, want exit code 7", err)
	}
}

func TestBuild(t *testing.T) {
	root, bazel := fakeBazel(t, 0, 0, true)
	r := runner.New(root, runner.WithBinary(bazel), runner.WithOutputGroups("default", "srcs"), runner.WithBuildFlags("--config=ide"))

	out, err := r.Build(context.Background(), []label.Label{label.New("", "pkg", "a")})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.ExitCode != 0 || out.BuildFileErrors {
		t.Errorf("Build() = %+v", out)
	}
	want := []artifact.Artifact{
		{Target: label.New("", "pkg", "a"), Role: artifact.RoleSourceJar, Name: "pkg/liba-src.jar", Path: "/abs/pkg/liba-src.jar"},
		{Target: label.New("", "pkg", "a"), Role: artifact.RoleClassJar, Name: "pkg/liba.jar", Path: filepath.Join(root, "bazel-out", "k8-fastbuild", "bin", "pkg", "liba.jar")},
	}
	if len(out.Artifacts) != len(want) {
		t.Fatalf("Build() artifacts = %+v, want %+v", out.Artifacts, want)
	}
	for i := range want {
		if out.Artifacts[i] != want[i] {
			t.Errorf("artifact %d = %+v, want %+v", i, out.Artifacts[i], want[i])
		}
	}
	args := lastArgs(t, root)
	for _, want := range []string{"build", "--keep_going", "--output_groups=default,srcs", "--config=ide", "-- //pkg:a"} {
		if !strings.Contains(args, want) {
			t.Errorf("build args %q missing %q", args, want)
		}
	}
}

func TestBuild_BuildFileErrors(t *testing.T) {
	root, bazel := fakeBazel(t, 0, runner.ExitBuildFailed, false)
	out, err := runner.New(root, runner.WithBinary(bazel)).Build(context.Background(), []label.Label{label.New("", "pkg", "a")})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.ExitCode != runner.ExitBuildFailed || !out.BuildFileErrors || len(out.Artifacts) != 0 {
		t.Errorf("Build() = %+v, want build file errors", out)
	}
}

func TestBuild_PartialFailure(t *testing.T) {
	root, bazel := fakeBazel(t, 0, runner.ExitBuildFailed, true)
	partial := `{"id":{"namedSet":{"id":"0"}},"namedSetOfFiles":{"files":[{"name":"pkg/liba.jar","uri":"file:///abs/pkg/liba.jar"}]}}
{"id":{"targetCompleted":{"label":"//pkg:a"}},"completed":{"success":true,"outputGroup":[{"name":"default","fileSets":[{"id":"0"}]}]}}
{"id":{"targetCompleted":{"label":"//pkg:b"}},"completed":{"success":false}}
{"id":{"buildFinished":{}},"finished":{"exitCode":{"name":"BUILD_FAILURE","code":1}}}
`
	writeFile(t, filepath.Join(root, "fixtures", "bep.json"), partial, 0o644)

	targets := []label.Label{label.New("", "pkg", "a"), label.New("", "pkg", "b")}
	out, err := runner.New(root, runner.WithBinary(bazel)).Build(context.Background(), targets)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.BuildFileErrors {
		t.Error("a failed compile is not a BUILD file error")
	}
	if len(out.Failed) != 1 || out.Failed[0] != label.New("", "pkg", "b") {
		t.Errorf("Failed = %v, want [//pkg:b]", out.Failed)
	}
	if len(out.Artifacts) != 1 || out.Artifacts[0].Target != label.New("", "pkg", "a") {
		t.Errorf("Artifacts = %+v, want the jar of //pkg:a", out.Artifacts)
	}
}

func TestBuild_Interrupted(t *testing.T) {
	root, bazel := fakeBazel(t, 0, runner.ExitInterrupted, true)
	_, err := runner.New(root, runner.WithBinary(bazel)).Build(context.Background(), []label.Label{label.New("", "pkg", "a")})
	if err == nil {
		t.Error("Build() expected error for interrupted build")
	}
}

func TestBuild_Cancelled(t *testing.T) {
	root, bazel := fakeBazel(t, 0, 0, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.New(root, runner.WithBinary(bazel)).Build(ctx, []label.Label{label.New("", "pkg", "a")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}
