package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncluded(t *testing.T) {
	include := []string{"a", "a/b/c/"}
	exclude := []string{"a/b", "x"}
	tests := []struct {
		path string
		want bool
	}{
		{"a", true},
		{"a/file.java", true},
		{"a/b", false},
		{"a/b/file.java", false},
		{"a/b/c", true},
		{"a/b/c/d/file.java", true},
		{"ab/file.java", false},
		{"x", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Included(tt.path, include, exclude))
		})
	}

	assert.True(t, Included("any/dir", []string{"."}, nil))
	assert.False(t, Included("a/x", []string{"a"}, []string{"a"}), "exclude wins on equal specificity")
}

func TestExpression(t *testing.T) {
	tests := []struct {
		name             string
		include, exclude []string
		want             string
	}{
		{"single", []string{"java"}, nil, "//java/..."},
		{"exclude inside include", []string{"java/", "kotlin"}, []string{"java/legacy"}, "//java/... + //kotlin/... - //java/legacy/..."},
		{"root", []string{"."}, nil, "//..."},
		{"include inside exclude", []string{"a", "a/b/c"}, []string{"a/b"}, "//a/... - //a/b/... + //a/b/c/..."},
		{"exclude above every include", []string{"java/app"}, []string{"java"}, "//java/app/..."},
		{"same directory", []string{"a"}, []string{"a"}, "//a/... - //a/..."},
		{"nothing included", nil, []string{"a"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expression(tt.include, tt.exclude))
		})
	}
}

// evalExpression applies an Expression result to one package the way Bazel
// does: left to right, every operator with equal precedence.
func evalExpression(expr, pkg string) bool {
	in := false
	op := "+"
	for _, tok := range strings.Fields(expr) {
		if tok == "+" || tok == "-" {
			op = tok
			continue
		}
		dir := strings.TrimSuffix(strings.TrimPrefix(tok, "//"), "...")
		dir = strings.TrimSuffix(dir, "/")
		if under(pkg, dir) {
			in = op == "+"
		}
	}
	return in
}

func TestExpression_AgreesWithIncluded(t *testing.T) {
	include := []string{"a", "a/b/c", "d/e"}
	exclude := []string{"a/b", "a/b/c/d", "d"}
	expr := Expression(include, exclude)
	for _, pkg := range []string{"a", "a/x", "a/b", "a/b/y", "a/b/c", "a/b/c/z", "a/b/c/d", "a/b/c/d/w", "d", "d/e", "d/e/f", "d/g", "q"} {
		assert.Equal(t, Included(pkg, include, exclude), evalExpression(expr, pkg), "package %s in %q", pkg, expr)
	}
}
