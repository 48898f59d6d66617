// Package runner locates bazel and runs queries and builds with it.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/artifact"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/bep"
	"github.com/albertocavalcante/qsync/pkg/query"
)

// ErrBazelNotFound is returned when no bazel binary can be located.
var ErrBazelNotFound = errors.New("bazel binary not found (install bazelisk or set bazel.binary)")

// EnvBazel overrides the bazel binary.
const EnvBazel = "QSYNC_BAZEL"

// Bazel exit codes the runner distinguishes.
const (
	ExitSuccess     = 0
	ExitBuildFailed = 1
	ExitPartial     = 3
	ExitInterrupted = 8
)

// interruptGrace is how long bazel gets to stop after an interrupt before
// it is killed.
const interruptGrace = 10 * time.Second

// Runner runs bazel inside one workspace. It implements
// artifactbuild.BuildSystem.
type Runner struct {
	binary       string
	root         string
	queryFlags   []string
	buildFlags   []string
	outputGroups []string
	lookPath     func(string) (string, error)
	getenv       func(string) string
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary sets the bazel binary, as a path or a name on PATH.
func WithBinary(binary string) Option {
	return func(r *Runner) { r.binary = binary }
}

// WithQueryFlags adds flags to every query.
func WithQueryFlags(flags ...string) Option {
	return func(r *Runner) { r.queryFlags = append(r.queryFlags, flags...) }
}

// WithBuildFlags adds flags to every build.
func WithBuildFlags(flags ...string) Option {
	return func(r *Runner) { r.buildFlags = append(r.buildFlags, flags...) }
}

// WithOutputGroups sets the output groups requested from builds.
func WithOutputGroups(groups ...string) Option {
	return func(r *Runner) { r.outputGroups = groups }
}

// New creates a runner for the workspace at root.
func New(root string, opts ...Option) *Runner {
	r := &Runner{root: root, lookPath: exec.LookPath, getenv: os.Getenv, outputGroups: []string{"default"}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindBazel locates bazel using, in order: the configured binary,
// $QSYNC_BAZEL, the workspace's tools/bazel wrapper, bazelisk on PATH and
// bazel on PATH.
func (r *Runner) FindBazel() (string, error) {
	for _, candidate := range []string{r.binary, r.getenv(EnvBazel)} {
		if candidate == "" {
			continue
		}
		if strings.ContainsRune(candidate, filepath.Separator) {
			if fileExists(candidate) {
				return candidate, nil
			}
			continue
		}
		if p, err := r.lookPath(candidate); err == nil {
			return p, nil
		}
	}
	if wrapper := filepath.Join(r.root, "tools", "bazel"); fileExists(wrapper) {
		return wrapper, nil
	}
	for _, name := range []string{"bazelisk", "bazel"} {
		if p, err := r.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrBazelNotFound
}

// Query loads every rule under the included directories.
func (r *Runner) Query(ctx context.Context, include, exclude []string) (*query.Summary, error) {
	bazel, err := r.FindBazel()
	if err != nil {
		return nil, err
	}
	expr := query.Expression(include, exclude)
	args := append([]string{"query", expr, "--output=streamed_jsonproto", "--keep_going"}, r.queryFlags...)

	cmd := r.command(ctx, bazel, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	log.Component("runner").Debugw("running query", "expr", expr)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bazel: %w", err)
	}
	summary, readErr := query.ReadStreamedJSON(stdout)
	if readErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code := exitCode(waitErr); code != ExitSuccess && code != ExitPartial {
		return nil, fmt.Errorf("bazel query exited with code %d: %s", code, lastLines(stderr.String(), 5))
	}
	if readErr != nil {
		return nil, readErr
	}
	return summary, nil
}

// Build builds targets and reports the artifacts each produced, read from
// the build event stream.
func (r *Runner) Build(ctx context.Context, targets []label.Label) (*artifactbuild.BuildOutput, error) {
	bazel, err := r.FindBazel()
	if err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp("", "qsync-bep-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	bepFile := filepath.Join(tmp, "bep.json")

	args := []string{
		"build",
		"--keep_going",
		"--build_event_json_file=" + bepFile,
		"--output_groups=" + strings.Join(r.outputGroups, ","),
	}
	args = append(args, r.buildFlags...)
	args = append(args, "--")
	for _, t := range targets {
		args = append(args, t.String())
	}

	cmd := r.command(ctx, bazel, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	start := time.Now()
	runErr := cmd.Run()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code := exitCode(runErr)
	if code < 0 {
		return nil, fmt.Errorf("run bazel: %w", runErr)
	}
	if code == ExitInterrupted {
		return nil, errors.New("bazel build was interrupted")
	}
	log.Component("runner").Debugw("build finished", "exit_code", code, "duration", time.Since(start))

	out := &artifactbuild.BuildOutput{ExitCode: code}
	res, err := bep.ReadFile(bepFile)
	if errors.Is(err, os.ErrNotExist) {
		out.BuildFileErrors = code != ExitSuccess
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if code == ExitBuildFailed && len(res.Succeeded) == 0 && len(res.Failed) == 0 {
		out.BuildFileErrors = true
	}
	for _, name := range res.Failed {
		l, err := label.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("build event target %q: %w", name, err)
		}
		out.Failed = append(out.Failed, l)
	}
	for _, f := range res.Files {
		l, err := label.Parse(f.Target)
		if err != nil {
			return nil, fmt.Errorf("build event target %q: %w", f.Target, err)
		}
		p := f.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.root, filepath.FromSlash(p))
		}
		out.Artifacts = append(out.Artifacts, artifact.Artifact{
			Target: l,
			Role:   artifact.RoleForFile(f.Name, f.OutputGroup),
			Name:   f.Name,
			Path:   p,
		})
	}
	return out, nil
}

// command prepares bazel to run in the workspace. Cancelling ctx sends an
// interrupt so bazel can stop cleanly, then kills it.
func (r *Runner) command(ctx context.Context, bazel string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bazel, args...)
	cmd.Dir = r.root
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptGrace
	return cmd
}

// exitCode returns the process exit code, or -1 when it did not run.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
