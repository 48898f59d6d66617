package bep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stream = `{"id":{"started":{}},"started":{"uuid":"x"}}
{"id":{"namedSet":{"id":"1"}},"namedSetOfFiles":{"files":[{"name":"pkg/liba-hjar.jar","uri":"file:///out/bin/pkg/liba-hjar.jar"}]}}
{"id":{"namedSet":{"id":"0"}},"namedSetOfFiles":{"files":[{"name":"pkg/liba.jar","uri":"file:///out/bin/pkg/liba.jar"}],"fileSets":[{"id":"1"},{"id":"1"}]}}
{"id":{"targetCompleted":{"label":"//pkg:a"}},"completed":{"success":true,"outputGroup":[{"name":"default","fileSets":[{"id":"0"}]}]}}
{"id":{"namedSet":{"id":"2"}},"namedSetOfFiles":{"files":[{"name":"pkg/libb-src.jar","pathPrefix":["bazel-out","k8-fastbuild","bin"]}]}}
{"id":{"targetCompleted":{"label":"//pkg:b"}},"completed":{"success":true,"outputGroup":[{"name":"srcs","fileSets":[{"id":"2"},{"id":"missing"}]}]}}
{"id":{"targetCompleted":{"label":"//pkg:c"}},"aborted":{"reason":"SKIPPED"}}
{"id":{"buildFinished":{}},"finished":{"exitCode":{"name":"BUILD_FAILURE","code":1}}}
`

func TestRead(t *testing.T) {
	res, err := Read(strings.NewReader(stream))
	require.NoError(t, err)

	assert.Equal(t, []File{
		{Target: "//pkg:a", OutputGroup: "default", Name: "pkg/liba-hjar.jar", Path: "/out/bin/pkg/liba-hjar.jar"},
		{Target: "//pkg:a", OutputGroup: "default", Name: "pkg/liba.jar", Path: "/out/bin/pkg/liba.jar"},
		{Target: "//pkg:b", OutputGroup: "srcs", Name: "pkg/libb-src.jar", Path: "bazel-out/k8-fastbuild/bin/pkg/libb-src.jar"},
	}, res.Files)
	assert.Equal(t, []string{"//pkg:a", "//pkg:b"}, res.Succeeded)
	assert.Equal(t, []string{"//pkg:c"}, res.Failed)
	assert.True(t, res.Finished)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "BUILD_FAILURE", res.ExitName)
}

func TestRead_Empty(t *testing.T) {
	res, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.False(t, res.Finished)
}

func TestRead_Malformed(t *testing.T) {
	_, err := Read(strings.NewReader("{\"id\":"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bep.json")
	require.NoError(t, os.WriteFile(p, []byte(stream), 0o644))
	res, err := ReadFile(p)
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
