// Package detect finds the languages a workspace uses.
//
// Detection is by file extension only, through the langs table, plus
// AndroidManifest.xml for Android. The result is sorted, so the same
// directory contents always produce the same list.
package detect

import (
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/albertocavalcante/qsync/cmd/qsync/internal/langs"
)

const androidManifest = "AndroidManifest.xml"

// Languages returns the sorted languages used under root.
func Languages(root string) ([]string, error) {
	found := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && langs.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == androidManifest {
			found["android"] = true
			return nil
		}
		if lang, ok := langs.LanguageForExtension(filepath.Ext(path)); ok {
			found[lang] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(found))
	for lang := range found {
		result = append(result, lang)
	}
	slices.Sort(result)
	return result, nil
}

// Supported filters detected languages down to those in supported,
// keeping the order of detected.
func Supported(detected, supported []string) []string {
	var out []string
	for _, lang := range detected {
		if slices.Contains(supported, lang) {
			out = append(out, lang)
		}
	}
	return out
}
