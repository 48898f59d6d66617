package projectview

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# Project view for the app.
directories:
  java
  -java/legacy
  kotlin

targets:
  //java/...

workspace_type: java
additional_languages:
  kotlin
derive_targets_from_directories: false
import_run_configurations:
  tools/run.xml
`

func TestParse(t *testing.T) {
	v, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "kotlin"}, v.Include)
	assert.Equal(t, []string{"java/legacy"}, v.Exclude)
	assert.Equal(t, []string{"//java/..."}, v.Targets)
	assert.Equal(t, "java", v.WorkspaceType)
	assert.Equal(t, []string{"kotlin"}, v.AdditionalLanguages)
	assert.False(t, v.DeriveTargets)
	assert.Equal(t, sample, string(v.Format()), "formatting an unedited view is lossless")

	def := v.ToDefinition()
	assert.True(t, def.IsIncluded("java/com/A.java"))
	assert.False(t, def.IsIncluded("java/legacy/B.java"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name, input string
		line        int
	}{
		{"item without section", "  java\n", 1},
		{"no colon", "directories:\n  java\nbogus\n", 3},
		{"bad bool", "derive_targets_from_directories: maybe\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestAddDirectory(t *testing.T) {
	v, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.False(t, v.AddDirectory("java/com/example"), "already included")
	assert.True(t, v.AddDirectory("proto/"))
	assert.True(t, v.AddDirectory("java/legacy"))

	out := string(v.Format())
	assert.Contains(t, out, "directories:\n  java\n  kotlin\n  proto\n\ntargets:")
	assert.NotContains(t, out, "-java/legacy")
	reparsed, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "kotlin", "proto"}, reparsed.Include)
	assert.Empty(t, reparsed.Exclude)
	assert.True(t, reparsed.ToDefinition().IsIncluded("java/legacy/B.java"))
}

func TestAddDirectory_NoSection(t *testing.T) {
	v, err := Parse(strings.NewReader("workspace_type: java\n"))
	require.NoError(t, err)
	assert.True(t, v.AddDirectory("app"))
	assert.Equal(t, "workspace_type: java\n\ndirectories:\n  app\n", string(v.Format()))
}

func TestNewAndWrite(t *testing.T) {
	v := New("java", ".", "kotlin")
	assert.Equal(t, []string{"java", "."}, v.Include, "root includes everything after it")

	p := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, v.Write(p))
	loaded, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"java", "."}, loaded.Include)
	assert.True(t, loaded.DeriveTargets)

	_, err = os.Stat(p + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
