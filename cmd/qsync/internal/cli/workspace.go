package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/daemon"
	"github.com/albertocavalcante/qsync/cmd/qsync/internal/session"
	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/artifactbuild"
	"github.com/albertocavalcante/qsync/pkg/config"
)

// errNotWorkspace is returned when no workspace root can be found.
var errNotWorkspace = errors.New("not inside a Bazel workspace (no MODULE.bazel or WORKSPACE found); use --workspace")

// workspace is the resolved root and configuration for one command.
type workspace struct {
	root string
	cfg  *config.Config
}

// openWorkspace resolves the workspace root from flags or the current
// directory and loads its configuration.
func openWorkspace() (*workspace, error) {
	root, err := workspaceRoot(globalFlags.workspace)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root, globalFlags.config)
	if err != nil {
		return nil, err
	}
	return &workspace{root: root, cfg: cfg}, nil
}

// workspaceRoot returns dir made absolute, or the workspace enclosing the
// current directory when dir is empty.
func workspaceRoot(dir string) (string, error) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("invalid workspace %s: %w", dir, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("workspace must be a directory: %s", dir)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, ok := config.FindWorkspaceRoot(wd)
	if !ok {
		return "", errNotWorkspace
	}
	return root, nil
}

// loadConfig layers the project config for root and an optional extra file.
func loadConfig(root, extra string) (*config.Config, error) {
	cfg := config.LoadFrom(root)
	if extra != "" {
		override, err := config.LoadFile(extra)
		if err != nil {
			return nil, err
		}
		cfg.Merge(override)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stateDir is where the artifact cache, sync data and daemon files live.
func (w *workspace) stateDir() string {
	return filepath.Join(w.root, w.cfg.Artifacts.Dir)
}

func (w *workspace) daemonPaths() *daemon.Paths {
	return daemon.WorkspacePaths(w.stateDir())
}

// session opens an in-process session.
func (w *workspace) session(ctx context.Context) (*session.Session, error) {
	return session.Open(ctx, session.Options{Root: w.root, Config: w.cfg})
}

// client connects to the workspace daemon. It returns nil when --local is
// set or no daemon is reachable.
func (w *workspace) client() *daemon.Client {
	if globalFlags.local {
		return nil
	}
	paths := w.daemonPaths()
	if !daemon.IsRunningAt(paths) {
		return nil
	}
	c, err := daemon.Connect(paths.Socket)
	if err != nil {
		log.Component("cli").Debugw("daemon unreachable, running locally", "error", err)
		return nil
	}
	return c
}

// relativePath turns a command-line path into a slash-separated path
// relative to the workspace root.
func (w *workspace) relativePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the workspace %s", p, w.root)
	}
	return rel, nil
}

func (w *workspace) relativePaths(ps []string) ([]string, error) {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		rel, err := w.relativePath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

// commandContext is cancelled on interrupt, terminate or hangup.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

// explain adds a next step to errors users hit before their first sync.
func explain(err error) error {
	var rpcErr *daemon.RPCError
	if errors.Is(err, artifactbuild.ErrNoSnapshot) ||
		errors.As(err, &rpcErr) && rpcErr.Code == daemon.ErrCodeNoSnapshot {
		return fmt.Errorf("%w; run `qsync sync` first", err)
	}
	return err
}
