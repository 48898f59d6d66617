// Package treesitter extracts package declarations from JVM sources using
// tree-sitter grammars. Only builds with CGO can parse; without it
// NewExtractor fails with ErrUnavailable and callers use the heuristic
// package reader instead.
package treesitter

import (
	"errors"
	"fmt"
	"strings"
)

// Language is a grammar the extractor can parse.
type Language string

const (
	Java   Language = "java"
	Kotlin Language = "kotlin"
	Scala  Language = "scala"
)

// Languages lists every supported grammar.
func Languages() []Language {
	return []Language{Java, Kotlin, Scala}
}

// LanguageForExtension maps a file extension (with dot) to a Language.
func LanguageForExtension(ext string) (Language, bool) {
	switch ext {
	case ".java":
		return Java, true
	case ".kt", ".kts":
		return Kotlin, true
	case ".scala":
		return Scala, true
	}
	return "", false
}

var (
	// ErrUnavailable is returned when the binary was built without CGO.
	ErrUnavailable = errors.New("tree-sitter is not available: build with CGO_ENABLED=1 or use the heuristic package reader")

	// ErrClosed is returned by an Extractor after Close.
	ErrClosed = errors.New("tree-sitter extractor is closed")
)

// UnsupportedLanguageError reports a grammar the extractor has no parser for.
type UnsupportedLanguageError struct {
	Language Language
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("tree-sitter: unsupported language %q", e.Language)
}

// Declaration is what the extractor found in one file.
type Declaration struct {
	// Package is the dotted package name, "" for the default package.
	Package string
	// Line is the 1-based line of the package statement, 0 when absent.
	Line int
	// HasErrors is set when the file did not parse cleanly. The package is
	// still reported if its statement parsed.
	HasErrors bool
}

// packageNodes are the top-level grammar nodes holding a package statement.
var packageNodes = map[Language]string{
	Java:   "package_declaration",
	Kotlin: "package_header",
	Scala:  "package_clause",
}

// packageName turns the text of a package node ("package a.b;" or a Scala
// "package a.b {" block) into the dotted name.
func packageName(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "package"))
	if i := strings.IndexAny(text, ";{\n"); i >= 0 {
		text = text[:i]
	}
	return strings.ReplaceAll(strings.TrimSpace(text), "`", "")
}
