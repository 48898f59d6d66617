// Package config provides configuration management for qsync.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/qsync/config.toml)
//  3. Project config (.qsync/config.toml or qsync.toml)
//  4. Environment variables (QSYNC_*)
//  5. CLI flags (highest priority)
package config

import (
	"fmt"
	"slices"
)

// Config is the main configuration struct for qsync.
type Config struct {
	// Languages configures which rule families are managed by the IDE.
	Languages LanguagesConfig `toml:"languages"`

	// Bazel configures how the external build system is invoked.
	Bazel BazelConfig `toml:"bazel"`

	// Sync configures graph parsing and project conversion.
	Sync SyncConfig `toml:"sync"`

	// Artifacts configures the persistent artifact cache.
	Artifacts ArtifactsConfig `toml:"artifacts"`

	// Packages configures source package prefix reading.
	Packages PackagesConfig `toml:"packages"`

	// Watch configures the file watcher.
	Watch WatchConfig `toml:"watch"`
}

// LanguagesConfig specifies which languages to enable/disable.
type LanguagesConfig struct {
	// Enabled is the list of languages to enable (e.g., ["java", "kotlin"]).
	Enabled []string `toml:"enabled"`

	// Disabled is the list of languages to explicitly disable.
	// Takes precedence over Enabled.
	Disabled []string `toml:"disabled"`
}

// BazelConfig holds build system invocation settings.
type BazelConfig struct {
	// Binary is the bazel or bazelisk executable. Empty means search PATH.
	Binary string `toml:"binary"`

	// QueryFlags are extra flags passed to `bazel query`.
	QueryFlags []string `toml:"query_flags"`

	// BuildFlags are extra flags passed to `bazel build`.
	BuildFlags []string `toml:"build_flags"`

	// OutputGroups are the output groups requested when building artifacts.
	OutputGroups []string `toml:"output_groups"`
}

// SyncConfig holds graph and project settings.
type SyncConfig struct {
	// CCEnabled controls whether C/C++ rules are IDE-managed.
	CCEnabled *bool `toml:"cc_enabled"`

	// RequireAcyclic rejects dependency cycles instead of recording them.
	RequireAcyclic *bool `toml:"require_acyclic"`

	// Offline builds the query summary from BUILD files instead of bazel query.
	Offline *bool `toml:"offline"`

	// ProjectView is the project view file, relative to the workspace root.
	ProjectView string `toml:"project_view"`
}

// ArtifactsConfig holds artifact cache settings.
type ArtifactsConfig struct {
	// Store is the cache backend ("json" or "sqlite").
	Store string `toml:"store"`

	// Dir is the state directory, relative to the workspace root.
	Dir string `toml:"dir"`
}

// PackagesConfig holds package reader settings.
type PackagesConfig struct {
	// Reader is the parsing strategy ("heuristic", "treesitter", "hybrid").
	Reader string `toml:"reader"`

	// Parallelism bounds concurrent source file reads.
	Parallelism int `toml:"parallelism"`
}

// WatchConfig holds watcher settings.
type WatchConfig struct {
	// DebounceMS is the quiet period before a batch of saves triggers a build.
	DebounceMS int `toml:"debounce_ms"`
}

// Store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Package reader backends.
const (
	ReaderHeuristic  = "heuristic"
	ReaderTreeSitter = "treesitter"
	ReaderHybrid     = "hybrid"
)

// AllLanguages lists the supported languages in standard order.
var AllLanguages = []string{"proto", "java", "kotlin", "android", "cc"}

// NewConfig creates a new Config with built-in defaults.
// By default the JVM languages are managed and C/C++ is off.
func NewConfig() *Config {
	falseVal := false
	return &Config{
		Languages: LanguagesConfig{
			Enabled:  []string{"java", "kotlin", "proto"},
			Disabled: []string{},
		},
		Bazel: BazelConfig{
			OutputGroups: []string{"default"},
		},
		Sync: SyncConfig{
			CCEnabled:      &falseVal,
			RequireAcyclic: &falseVal,
			Offline:        &falseVal,
			ProjectView:    ".bazelproject",
		},
		Artifacts: ArtifactsConfig{
			Store: StoreJSON,
			Dir:   ConfigDirName,
		},
		Packages: PackagesConfig{
			Reader:      ReaderHeuristic,
			Parallelism: 8,
		},
		Watch: WatchConfig{
			DebounceMS: 300,
		},
	}
}

// IsLanguageEnabled checks if a language is enabled in the configuration.
func (c *Config) IsLanguageEnabled(lang string) bool {
	// Check explicit disabled list first (highest priority)
	if slices.Contains(c.Languages.Disabled, lang) {
		return false
	}
	if lang == "cc" && !c.CCEnabled() {
		return false
	}
	return slices.Contains(c.Languages.Enabled, lang)
}

// GetEnabledLanguages returns the list of enabled language names.
func (c *Config) GetEnabledLanguages() []string {
	var enabled []string
	for _, lang := range AllLanguages {
		if c.IsLanguageEnabled(lang) {
			enabled = append(enabled, lang)
		}
	}
	return enabled
}

// CCEnabled reports whether C/C++ rules are IDE-managed.
func (c *Config) CCEnabled() bool {
	return c.Sync.CCEnabled != nil && *c.Sync.CCEnabled
}

// RequireAcyclic reports whether dependency cycles fail a sync.
func (c *Config) RequireAcyclic() bool {
	return c.Sync.RequireAcyclic != nil && *c.Sync.RequireAcyclic
}

// Offline reports whether syncs read BUILD files directly.
func (c *Config) Offline() bool {
	return c.Sync.Offline != nil && *c.Sync.Offline
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Artifacts.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("artifacts.store: unknown backend %q (want %q or %q)", c.Artifacts.Store, StoreJSON, StoreSQLite)
	}
	switch c.Packages.Reader {
	case ReaderHeuristic, ReaderTreeSitter, ReaderHybrid:
	default:
		return fmt.Errorf("packages.reader: unknown backend %q", c.Packages.Reader)
	}
	for _, lang := range c.Languages.Enabled {
		if !slices.Contains(AllLanguages, lang) {
			return fmt.Errorf("languages.enabled: unknown language %q", lang)
		}
	}
	if c.Packages.Parallelism < 1 {
		return fmt.Errorf("packages.parallelism must be positive, got %d", c.Packages.Parallelism)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Merge languages config
	if len(other.Languages.Enabled) > 0 {
		c.Languages.Enabled = other.Languages.Enabled
	}
	if len(other.Languages.Disabled) > 0 {
		c.Languages.Disabled = append(c.Languages.Disabled, other.Languages.Disabled...)
	}

	// Merge bazel config
	if other.Bazel.Binary != "" {
		c.Bazel.Binary = other.Bazel.Binary
	}
	if len(other.Bazel.QueryFlags) > 0 {
		c.Bazel.QueryFlags = other.Bazel.QueryFlags
	}
	if len(other.Bazel.BuildFlags) > 0 {
		c.Bazel.BuildFlags = other.Bazel.BuildFlags
	}
	if len(other.Bazel.OutputGroups) > 0 {
		c.Bazel.OutputGroups = other.Bazel.OutputGroups
	}

	// Merge sync config
	if other.Sync.CCEnabled != nil {
		c.Sync.CCEnabled = other.Sync.CCEnabled
	}
	if other.Sync.RequireAcyclic != nil {
		c.Sync.RequireAcyclic = other.Sync.RequireAcyclic
	}
	if other.Sync.Offline != nil {
		c.Sync.Offline = other.Sync.Offline
	}
	if other.Sync.ProjectView != "" {
		c.Sync.ProjectView = other.Sync.ProjectView
	}

	// Merge artifacts config
	if other.Artifacts.Store != "" {
		c.Artifacts.Store = other.Artifacts.Store
	}
	if other.Artifacts.Dir != "" {
		c.Artifacts.Dir = other.Artifacts.Dir
	}

	// Merge packages config
	if other.Packages.Reader != "" {
		c.Packages.Reader = other.Packages.Reader
	}
	if other.Packages.Parallelism > 0 {
		c.Packages.Parallelism = other.Packages.Parallelism
	}

	// Merge watch config
	if other.Watch.DebounceMS > 0 {
		c.Watch.DebounceMS = other.Watch.DebounceMS
	}
}
