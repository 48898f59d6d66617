// Package pkgreader reads the package declared by JVM source files. The
// project converter uses the results to decide source folder prefixes.
//
// Three strategies are available, mirroring the config values of
// packages.reader:
//   - heuristic: line scanning with comment stripping (fast, no CGO)
//   - treesitter: AST-based (accurate, needs CGO)
//   - hybrid: runs both, logs disagreements, returns the heuristic result
package pkgreader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/config"
)

// Reader returns the package declared by a source file, or "" when the
// file declares none (the default package).
type Reader interface {
	Name() string
	ReadPackage(ctx context.Context, path string) (string, error)
	Close() error
}

// New creates a reader for the configured strategy. Asking for tree-sitter
// in a build without CGO falls back to the heuristic reader with a warning.
func New(kind string) (Reader, error) {
	switch kind {
	case "", config.ReaderHeuristic:
		return NewHeuristic(), nil
	case config.ReaderTreeSitter:
		r, err := NewTreeSitter()
		if err != nil {
			log.Component("pkgreader").Warnw("tree-sitter unavailable, using heuristic reader", "error", err)
			return NewHeuristic(), nil
		}
		return r, nil
	case config.ReaderHybrid:
		r, err := NewHybrid()
		if err != nil {
			log.Component("pkgreader").Warnw("tree-sitter unavailable, using heuristic reader", "error", err)
			return NewHeuristic(), nil
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown package reader %q", kind)
	}
}

// readSource reads a file, honoring cancellation before the read.
func readSource(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// HybridReader runs both strategies and compares them.
type HybridReader struct {
	heuristic  *HeuristicReader
	treesitter *TreeSitterReader
}

// NewHybrid creates a hybrid reader. It requires tree-sitter support.
func NewHybrid() (*HybridReader, error) {
	ts, err := NewTreeSitter()
	if err != nil {
		return nil, fmt.Errorf("create tree-sitter for hybrid: %w", err)
	}
	return &HybridReader{heuristic: NewHeuristic(), treesitter: ts}, nil
}

func (r *HybridReader) Name() string { return config.ReaderHybrid }

func (r *HybridReader) ReadPackage(ctx context.Context, path string) (string, error) {
	hPkg, hErr := r.heuristic.ReadPackage(ctx, path)
	tsPkg, tsErr := r.treesitter.ReadPackage(ctx, path)

	if hErr == nil && tsErr == nil && hPkg != tsPkg {
		log.V(3).Debugw("package reader diff", "path", path, "heuristic", hPkg, "treesitter", tsPkg)
	}
	if hErr != nil {
		log.V(3).Debugw("heuristic reader failed, using tree-sitter", "path", path, "error", hErr)
		return tsPkg, tsErr
	}
	return hPkg, nil
}

func (r *HybridReader) Close() error {
	return errors.Join(r.heuristic.Close(), r.treesitter.Close())
}

// WorkspaceResolvingReader resolves workspace-relative paths against the
// effective workspace root before delegating. The effective root is the
// VCS snapshot path when one is set, otherwise the workspace root.
type WorkspaceResolvingReader struct {
	Root     string
	Delegate Reader
}

// NewWorkspaceResolving wraps r so that it accepts workspace-relative paths.
func NewWorkspaceResolving(root, snapshotPath string, r Reader) *WorkspaceResolvingReader {
	if snapshotPath != "" {
		root = snapshotPath
	}
	return &WorkspaceResolvingReader{Root: root, Delegate: r}
}

func (r *WorkspaceResolvingReader) Name() string { return r.Delegate.Name() }

func (r *WorkspaceResolvingReader) ReadPackage(ctx context.Context, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Root, filepath.FromSlash(path))
	}
	return r.Delegate.ReadPackage(ctx, path)
}

func (r *WorkspaceResolvingReader) Close() error { return r.Delegate.Close() }
