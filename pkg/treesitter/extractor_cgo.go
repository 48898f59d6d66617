//go:build cgo

package treesitter

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/scala"
)

// maxIdleParsers bounds how many parsers each language keeps for reuse.
const maxIdleParsers = 8

// Extractor finds package declarations. It is safe for concurrent use;
// parsers are pooled per language since a parser serves one parse at a time.
type Extractor struct {
	mu     sync.Mutex
	idle   map[Language][]*sitter.Parser
	closed bool
}

// NewExtractor creates an extractor backed by smacker/go-tree-sitter.
func NewExtractor() (*Extractor, error) {
	return &Extractor{idle: map[Language][]*sitter.Parser{}}, nil
}

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case Java:
		return java.GetLanguage(), nil
	case Kotlin:
		return kotlin.GetLanguage(), nil
	case Scala:
		return scala.GetLanguage(), nil
	}
	return nil, &UnsupportedLanguageError{Language: lang}
}

func (e *Extractor) acquire(lang Language) (*sitter.Parser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if ps := e.idle[lang]; len(ps) > 0 {
		p := ps[len(ps)-1]
		e.idle[lang] = ps[:len(ps)-1]
		return p, nil
	}
	g, err := grammar(lang)
	if err != nil {
		return nil, err
	}
	p := sitter.NewParser()
	p.SetLanguage(g)
	return p, nil
}

func (e *Extractor) release(lang Language, p *sitter.Parser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(e.idle[lang]) >= maxIdleParsers {
		p.Close()
		return
	}
	p.Reset()
	e.idle[lang] = append(e.idle[lang], p)
}

// Package parses src and returns its package declaration. Only top-level
// nodes are inspected; a package statement nested anywhere else is not a
// declaration of the file.
func (e *Extractor) Package(ctx context.Context, lang Language, src []byte) (Declaration, error) {
	nodeType, ok := packageNodes[lang]
	if !ok {
		return Declaration{}, &UnsupportedLanguageError{Language: lang}
	}
	p, err := e.acquire(lang)
	if err != nil {
		return Declaration{}, err
	}
	defer e.release(lang, p)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return Declaration{}, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	decl := Declaration{HasErrors: root.HasError()}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n == nil || n.Type() != nodeType {
			continue
		}
		decl.Package = packageName(n.Content(src))
		decl.Line = int(n.StartPoint().Row) + 1
		break
	}
	return decl, nil
}

// Close releases pooled parsers. Later calls to Package fail with ErrClosed.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for lang, ps := range e.idle {
		for _, p := range ps {
			p.Close()
		}
		delete(e.idle, lang)
	}
	return nil
}
