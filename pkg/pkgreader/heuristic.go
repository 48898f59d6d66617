package pkgreader

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/albertocavalcante/qsync/pkg/config"
)

// packageRegex matches Java, Kotlin and Scala package statements.
var packageRegex = regexp.MustCompile(`^\s*package\s+([\w.` + "`" + `]+)\s*;?`)

// declarationPrefixes end the header section; no package statement can follow them.
var declarationPrefixes = []string{
	"import ", "class ", "interface ", "enum ", "record ", "object ",
	"public ", "final ", "abstract ", "fun ", "val ", "var ",
	"trait ", "case ", "sealed ", "data ",
}

// HeuristicReader scans the header of a file line by line.
type HeuristicReader struct{}

// NewHeuristic creates a heuristic reader.
func NewHeuristic() *HeuristicReader { return &HeuristicReader{} }

func (r *HeuristicReader) Name() string { return config.ReaderHeuristic }

func (r *HeuristicReader) ReadPackage(ctx context.Context, path string) (string, error) {
	src, err := readSource(ctx, path)
	if err != nil {
		return "", err
	}
	return PackageFromSource(src), nil
}

func (r *HeuristicReader) Close() error { return nil }

// PackageFromSource extracts the package from source text, skipping
// comments. Kotlin backtick-quoted segments are unquoted.
func PackageFromSource(src []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inBlock := false
	for sc.Scan() {
		var line string
		line, inBlock = stripComments(sc.Text(), inBlock)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := packageRegex.FindStringSubmatch(trimmed); m != nil {
			return strings.ReplaceAll(m[1], "`", "")
		}
		for _, p := range declarationPrefixes {
			if strings.HasPrefix(trimmed, p) {
				return ""
			}
		}
	}
	return ""
}

// stripComments removes line (//) and block (/* */) comments from a line,
// while preserving content inside string literals. inBlock carries block
// comment state across lines.
func stripComments(line string, inBlock bool) (string, bool) {
	var out strings.Builder
	i := 0
	inString := false

	for i < len(line) {
		if inBlock {
			end := strings.Index(line[i:], "*/")
			if end == -1 {
				return out.String(), true
			}
			i += end + 2
			inBlock = false
			continue
		}

		ch := line[i]

		if ch == '"' && !inString {
			inString = true
			out.WriteByte(ch)
			i++
			continue
		}

		if inString {
			out.WriteByte(ch)
			if ch == '\\' && i+1 < len(line) {
				i++
				out.WriteByte(line[i])
			} else if ch == '"' {
				inString = false
			}
			i++
			continue
		}

		if strings.HasPrefix(line[i:], "/*") {
			inBlock = true
			i += 2
			continue
		}
		if strings.HasPrefix(line[i:], "//") {
			break
		}

		out.WriteByte(ch)
		i++
	}

	return out.String(), inBlock
}
