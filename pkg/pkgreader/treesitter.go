package pkgreader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/config"
	"github.com/albertocavalcante/qsync/pkg/treesitter"
)

// TreeSitterReader reads packages from the syntax tree.
type TreeSitterReader struct {
	extractor *treesitter.Extractor
}

// NewTreeSitter creates an AST-based reader.
func NewTreeSitter() (*TreeSitterReader, error) {
	e, err := treesitter.NewExtractor()
	if err != nil {
		return nil, fmt.Errorf("create tree-sitter extractor: %w", err)
	}
	return &TreeSitterReader{extractor: e}, nil
}

func (r *TreeSitterReader) Name() string { return config.ReaderTreeSitter }

func (r *TreeSitterReader) ReadPackage(ctx context.Context, path string) (string, error) {
	lang, ok := treesitter.LanguageForExtension(filepath.Ext(path))
	if !ok {
		return "", &treesitter.UnsupportedLanguageError{Language: treesitter.Language(filepath.Ext(path))}
	}
	src, err := readSource(ctx, path)
	if err != nil {
		return "", err
	}
	decl, err := r.extractor.Package(ctx, lang, src)
	if err != nil {
		return "", fmt.Errorf("read package of %s: %w", path, err)
	}
	if decl.HasErrors {
		log.V(3).Debugw("syntax errors in source", "path", path, "package", decl.Package)
	}
	return decl.Package, nil
}

func (r *TreeSitterReader) Close() error { return r.extractor.Close() }
