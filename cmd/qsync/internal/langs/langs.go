// Package langs maps qsync's languages to source file extensions.
//
// The watcher and language detection both use this table.
package langs

import "slices"

// Extensions maps language names to their file extensions. Android
// sources are Java or Kotlin files and have no entry of their own.
var Extensions = map[string][]string{
	"java":   {".java"},
	"kotlin": {".kt", ".kts"},
	"scala":  {".scala", ".sc"},
	"proto":  {".proto"},
	"cc":     {".cc", ".cpp", ".cxx", ".c", ".h", ".hpp", ".hxx"},
}

// IgnoredDirs holds directory name prefixes skipped while scanning or
// watching. "bazel-" covers bazel-out, bazel-bin and friends.
var IgnoredDirs = []string{
	"bazel-",
	".",
	"node_modules",
	"target",
	"build",
	"out",
	"dist",
}

// LanguageForExtension returns the language a file extension belongs to.
func LanguageForExtension(ext string) (string, bool) {
	for _, lang := range Names() {
		if slices.Contains(Extensions[lang], ext) {
			return lang, true
		}
	}
	return "", false
}

// Names returns the known languages, sorted.
func Names() []string {
	out := make([]string, 0, len(Extensions))
	for lang := range Extensions {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// ExtensionSet returns every extension of the given languages. An empty
// list selects all languages. "android" selects Java and Kotlin.
func ExtensionSet(languages []string) map[string]bool {
	if len(languages) == 0 {
		languages = Names()
	}
	extensions := make(map[string]bool)
	for _, lang := range languages {
		names := []string{lang}
		if lang == "android" {
			names = []string{"java", "kotlin"}
		}
		for _, name := range names {
			for _, ext := range Extensions[name] {
				extensions[ext] = true
			}
		}
	}
	return extensions
}

// IsIgnoredDir reports whether a directory name should be skipped.
func IsIgnoredDir(name string) bool {
	for _, prefix := range IgnoredDirs {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
