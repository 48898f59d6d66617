package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "qsync.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".qsync"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "qsync"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/qsync/config.toml)
//  3. Project config (.qsync/config.toml or qsync.toml)
//  4. Environment variables (QSYNC_*)
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config
	if projectCfg := loadProjectConfig(); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// LoadFrom loads configuration starting from a specific directory.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	if projectCfg := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// loadGlobalConfig loads the global user configuration from ~/.config/qsync/config.toml.
func loadGlobalConfig() *Config {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}

	configPath := filepath.Join(configDir, GlobalConfigDir, "config.toml")
	return loadConfigFile(configPath)
}

// loadProjectConfig looks for project configuration in the current directory and parents.
func loadProjectConfig() *Config {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return loadProjectConfigFrom(wd)
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) *Config {
	// Search up the directory tree for config files
	current := dir
	for {
		// Check for .qsync/config.toml first
		stateDir := filepath.Join(current, ConfigDirName, "config.toml")
		if cfg := loadConfigFile(stateDir); cfg != nil {
			return cfg
		}

		// Check for qsync.toml in project root
		projectToml := filepath.Join(current, ConfigFileName)
		if cfg := loadConfigFile(projectToml); cfg != nil {
			return cfg
		}

		// Stop at filesystem root or git/bazel workspace root
		if isWorkspaceRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil
}

// isWorkspaceRoot checks if the directory is a workspace root (has .git, WORKSPACE, or MODULE.bazel).
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file.
func loadConfigFile(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil
	}

	return &cfg
}

// applyEnvironmentVariables applies QSYNC_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	// QSYNC_LANGUAGES_ENABLED: comma-separated list of languages to enable
	if langs := os.Getenv("QSYNC_LANGUAGES_ENABLED"); langs != "" {
		cfg.Languages.Enabled = splitAndTrim(langs)
	}

	// QSYNC_LANGUAGES_DISABLED: comma-separated list of languages to disable
	if langs := os.Getenv("QSYNC_LANGUAGES_DISABLED"); langs != "" {
		cfg.Languages.Disabled = splitAndTrim(langs)
	}

	// Bazel settings
	if v := os.Getenv("QSYNC_BAZEL"); v != "" {
		cfg.Bazel.Binary = v
	}
	if v := os.Getenv("QSYNC_BUILD_FLAGS"); v != "" {
		cfg.Bazel.BuildFlags = splitAndTrim(v)
	}
	if v := os.Getenv("QSYNC_OUTPUT_GROUPS"); v != "" {
		cfg.Bazel.OutputGroups = splitAndTrim(v)
	}

	// Sync settings
	applyBoolEnv("QSYNC_CC_ENABLED", &cfg.Sync.CCEnabled)
	applyBoolEnv("QSYNC_REQUIRE_ACYCLIC", &cfg.Sync.RequireAcyclic)
	applyBoolEnv("QSYNC_OFFLINE", &cfg.Sync.Offline)
	if v := os.Getenv("QSYNC_PROJECT_VIEW"); v != "" {
		cfg.Sync.ProjectView = v
	}

	// Artifact and package settings
	if v := os.Getenv("QSYNC_ARTIFACT_STORE"); v != "" {
		cfg.Artifacts.Store = v
	}
	if v := os.Getenv("QSYNC_PACKAGE_READER"); v != "" {
		cfg.Packages.Reader = v
	}
	applyIntEnv("QSYNC_PACKAGE_PARALLELISM", &cfg.Packages.Parallelism)
	applyIntEnv("QSYNC_WATCH_DEBOUNCE_MS", &cfg.Watch.DebounceMS)
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// applyIntEnv applies a positive integer environment variable.
func applyIntEnv(envVar string, target *int) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			*target = n
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}

// LoadFile decodes a single TOML file, reporting parse errors.
// It is used for explicitly requested config files, where silent fallback
// would hide typos.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// FindWorkspaceRoot walks up from dir to the nearest directory holding a
// Bazel workspace marker (MODULE.bazel, WORKSPACE, WORKSPACE.bazel).
func FindWorkspaceRoot(dir string) (string, bool) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		for _, marker := range []string{"MODULE.bazel", "WORKSPACE", "WORKSPACE.bazel"} {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, true
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}
