//go:build !cgo

package treesitter

import "context"

// Extractor is unusable without CGO.
type Extractor struct{}

// NewExtractor always fails with ErrUnavailable.
func NewExtractor() (*Extractor, error) {
	return nil, ErrUnavailable
}

func (e *Extractor) Package(ctx context.Context, lang Language, src []byte) (Declaration, error) {
	return Declaration{}, ErrUnavailable
}

func (e *Extractor) Close() error { return nil }
