package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	// Check defaults
	if !cfg.IsLanguageEnabled("java") {
		t.Error("java should be enabled by default")
	}
	if !cfg.IsLanguageEnabled("kotlin") {
		t.Error("kotlin should be enabled by default")
	}
	if cfg.IsLanguageEnabled("cc") {
		t.Error("cc should be disabled by default")
	}
	if cfg.Artifacts.Store != StoreJSON {
		t.Errorf("artifact store should be %q, got %q", StoreJSON, cfg.Artifacts.Store)
	}
	if cfg.Packages.Reader != ReaderHeuristic {
		t.Errorf("package reader should be %q, got %q", ReaderHeuristic, cfg.Packages.Reader)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestIsLanguageEnabled(t *testing.T) {
	cfg := NewConfig()

	cfg.Languages.Enabled = []string{"java", "cc"}
	if cfg.IsLanguageEnabled("cc") {
		t.Error("cc should stay disabled until sync.cc_enabled is set")
	}

	trueVal := true
	cfg.Sync.CCEnabled = &trueVal
	if !cfg.IsLanguageEnabled("cc") {
		t.Error("cc should be enabled")
	}

	// Test disabled takes precedence
	cfg.Languages.Disabled = []string{"java"}
	if cfg.IsLanguageEnabled("java") {
		t.Error("java should be disabled when in disabled list")
	}
}

func TestGetEnabledLanguages(t *testing.T) {
	cfg := NewConfig()
	enabled := cfg.GetEnabledLanguages()

	want := []string{"proto", "java", "kotlin"}
	if len(enabled) != len(want) {
		t.Fatalf("GetEnabledLanguages() = %v, want %v", enabled, want)
	}
	for i := range want {
		if enabled[i] != want[i] {
			t.Errorf("GetEnabledLanguages()[%d] = %q, want %q", i, enabled[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"sqlite store", func(c *Config) { c.Artifacts.Store = StoreSQLite }, true},
		{"unknown store", func(c *Config) { c.Artifacts.Store = "redis" }, false},
		{"unknown reader", func(c *Config) { c.Packages.Reader = "regex" }, false},
		{"unknown language", func(c *Config) { c.Languages.Enabled = []string{"cobol"} }, false},
		{"zero parallelism", func(c *Config) { c.Packages.Parallelism = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := NewConfig()
	trueVal := true
	other := &Config{
		Languages: LanguagesConfig{
			Enabled: []string{"java", "cc"},
		},
		Sync: SyncConfig{CCEnabled: &trueVal},
		Bazel: BazelConfig{
			Binary:     "bazelisk",
			BuildFlags: []string{"--config=ide"},
		},
		Packages: PackagesConfig{Reader: ReaderTreeSitter},
	}

	base.Merge(other)

	if !base.IsLanguageEnabled("cc") {
		t.Error("cc should be enabled after merge")
	}
	if base.Bazel.Binary != "bazelisk" {
		t.Errorf("bazel binary should be 'bazelisk', got %q", base.Bazel.Binary)
	}
	if base.Packages.Reader != ReaderTreeSitter {
		t.Errorf("package reader should be 'treesitter', got %q", base.Packages.Reader)
	}
	// Unset values keep defaults
	if base.Artifacts.Store != StoreJSON {
		t.Errorf("artifact store should remain %q, got %q", StoreJSON, base.Artifacts.Store)
	}
	if base.Watch.DebounceMS != 300 {
		t.Errorf("debounce should remain 300, got %d", base.Watch.DebounceMS)
	}

	base.Merge(nil)
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[languages]
enabled = ["java", "kotlin", "android"]
disabled = ["proto"]

[bazel]
binary = "bazelisk"
output_groups = ["compile_jars", "ide-info"]

[sync]
cc_enabled = true
project_view = "tools/ide/.bazelproject"

[artifacts]
store = "sqlite"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := loadConfigFile(configPath)
	if cfg == nil {
		t.Fatal("loadConfigFile returned nil")
	}

	if len(cfg.Languages.Enabled) != 3 {
		t.Errorf("expected 3 enabled languages, got %d", len(cfg.Languages.Enabled))
	}
	if len(cfg.Languages.Disabled) != 1 {
		t.Errorf("expected 1 disabled language, got %d", len(cfg.Languages.Disabled))
	}
	if len(cfg.Bazel.OutputGroups) != 2 {
		t.Errorf("expected 2 output groups, got %v", cfg.Bazel.OutputGroups)
	}
	if !cfg.CCEnabled() {
		t.Error("cc should be enabled")
	}
	if cfg.Sync.ProjectView != "tools/ide/.bazelproject" {
		t.Errorf("project view = %q", cfg.Sync.ProjectView)
	}
	if cfg.Artifacts.Store != StoreSQLite {
		t.Errorf("artifact store = %q, want sqlite", cfg.Artifacts.Store)
	}
}

func TestLoadFile_Error(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "broken.toml")
	if err := os.WriteFile(configPath, []byte("[sync\ncc_enabled = "), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFile(configPath); err == nil {
		t.Error("LoadFile should report parse errors")
	}
	if cfg := loadConfigFile(configPath); cfg != nil {
		t.Error("loadConfigFile should ignore broken files")
	}
}

func TestApplyEnvironmentVariables(t *testing.T) {
	cfg := NewConfig()

	t.Setenv("QSYNC_LANGUAGES_ENABLED", "java,cc")
	t.Setenv("QSYNC_CC_ENABLED", "yes")
	t.Setenv("QSYNC_BAZEL", "/opt/bazel")
	t.Setenv("QSYNC_PACKAGE_READER", "hybrid")
	t.Setenv("QSYNC_PACKAGE_PARALLELISM", "4")
	t.Setenv("QSYNC_WATCH_DEBOUNCE_MS", "not-a-number")

	applyEnvironmentVariables(cfg)

	if len(cfg.Languages.Enabled) != 2 {
		t.Errorf("expected 2 enabled languages, got %d", len(cfg.Languages.Enabled))
	}
	if !cfg.IsLanguageEnabled("cc") {
		t.Error("cc should be enabled via env var")
	}
	if cfg.Bazel.Binary != "/opt/bazel" {
		t.Errorf("bazel binary = %q", cfg.Bazel.Binary)
	}
	if cfg.Packages.Reader != ReaderHybrid {
		t.Errorf("package reader should be 'hybrid', got %q", cfg.Packages.Reader)
	}
	if cfg.Packages.Parallelism != 4 {
		t.Errorf("parallelism = %d, want 4", cfg.Packages.Parallelism)
	}
	if cfg.Watch.DebounceMS != 300 {
		t.Errorf("invalid debounce should be ignored, got %d", cfg.Watch.DebounceMS)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"go,kotlin,python", []string{"go", "kotlin", "python"}},
		{" go , kotlin , python ", []string{"go", "kotlin", "python"}},
		{"go", []string{"go"}},
		{"", []string{}},
		{" , , ", []string{}},
	}

	for _, tt := range tests {
		result := splitAndTrim(tt.input)
		if len(result) != len(tt.expected) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, result, tt.expected)
			continue
		}
		for i, v := range result {
			if v != tt.expected[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.expected[i])
			}
		}
	}
}

func TestProjectConfigSearch(t *testing.T) {
	// Create a temp directory structure
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, "project", "subdir")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}

	// Create .git marker at project root
	gitDir := filepath.Join(tmpDir, "project", ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("failed to create .git dir: %v", err)
	}

	// Create qsync.toml at project root
	configPath := filepath.Join(tmpDir, "project", "qsync.toml")
	configContent := `
[languages]
enabled = ["java", "kotlin"]
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// Load config from subdir
	cfg := loadProjectConfigFrom(projectDir)
	if cfg == nil {
		t.Fatal("loadProjectConfigFrom returned nil")
	}

	if len(cfg.Languages.Enabled) != 2 {
		t.Errorf("expected 2 enabled languages, got %d", len(cfg.Languages.Enabled))
	}
}

func TestWorkspaceRootDetection(t *testing.T) {
	tmpDir := t.TempDir()

	// Test .git
	gitDir := filepath.Join(tmpDir, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatalf("failed to create .git dir: %v", err)
	}
	if !isWorkspaceRoot(tmpDir) {
		t.Error("directory with .git should be workspace root")
	}

	// Test WORKSPACE
	tmpDir2 := t.TempDir()
	workspaceFile := filepath.Join(tmpDir2, "WORKSPACE")
	if err := os.WriteFile(workspaceFile, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to write WORKSPACE file: %v", err)
	}
	if !isWorkspaceRoot(tmpDir2) {
		t.Error("directory with WORKSPACE should be workspace root")
	}

	// Test MODULE.bazel
	tmpDir3 := t.TempDir()
	moduleFile := filepath.Join(tmpDir3, "MODULE.bazel")
	if err := os.WriteFile(moduleFile, []byte(""), 0o644); err != nil {
		t.Fatalf("failed to write MODULE.bazel file: %v", err)
	}
	if !isWorkspaceRoot(tmpDir3) {
		t.Error("directory with MODULE.bazel should be workspace root")
	}
}

func TestFindWorkspaceRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "MODULE.bazel"), nil, 0o644); err != nil {
		t.Fatalf("failed to write MODULE.bazel: %v", err)
	}
	nested := filepath.Join(tmpDir, "java", "com", "example")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	root, ok := FindWorkspaceRoot(nested)
	if !ok {
		t.Fatal("FindWorkspaceRoot should find MODULE.bazel")
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("FindWorkspaceRoot() = %q, want %q", root, want)
	}
}
