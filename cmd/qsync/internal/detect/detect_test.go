package detect_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/detect"
)

func createFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLanguages(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{"empty", nil, []string{}},
		{"java", []string{"java/com/A.java"}, []string{"java"}},
		{"kotlin and proto", []string{"src/main/kotlin/Main.kt", "proto/api.proto"}, []string{"kotlin", "proto"}},
		{"android manifest", []string{"app/src/main/AndroidManifest.xml", "app/src/main/java/A.java"}, []string{"android", "java"}},
		{"ignored dirs", []string{"bazel-out/x/A.java", ".git/hooks/B.kt", "node_modules/x/c.cc"}, []string{}},
		{"unknown", []string{"README.md", "main.go"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				createFile(t, root, f)
			}
			got, err := detect.Languages(root)
			if err != nil {
				t.Fatalf("Languages() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Languages() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLanguages_Deterministic(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{"a.java", "b.kt", "c.proto", "d.scala", "e.h"} {
		createFile(t, root, f)
	}
	first, err := detect.Languages(root)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, _ := detect.Languages(root)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestLanguages_MissingRoot(t *testing.T) {
	if _, err := detect.Languages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestSupported(t *testing.T) {
	got := detect.Supported([]string{"cc", "java", "scala"}, []string{"java", "kotlin", "cc"})
	if want := []string{"cc", "java"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Supported() = %v, want %v", got, want)
	}
}
