// Package projectview reads and edits .bazelproject files.
//
// The format is a sequence of sections. A list section is a "name:" line
// followed by indented items; a scalar section is "name: value". Lines
// starting with # are comments. Edits keep every other line intact.
package projectview

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/project"
)

// DefaultFile is the conventional project view file name.
const DefaultFile = ".bazelproject"

const (
	sectionDirectories   = "directories"
	sectionTargets       = "targets"
	sectionWorkspaceType = "workspace_type"
	sectionLanguages     = "additional_languages"
	sectionDerive        = "derive_targets_from_directories"
)

var listSections = map[string]bool{
	sectionDirectories: true,
	sectionTargets:     true,
	sectionLanguages:   true,
}

// View is a parsed project view.
type View struct {
	Include             []string
	Exclude             []string
	Targets             []string
	WorkspaceType       string
	AdditionalLanguages []string
	DeriveTargets       bool

	lines []string
	// lastDir is the line after which a new directory is inserted, or -1.
	lastDir int
}

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("project view line %d: %s", e.Line, e.Msg)
}

// Parse reads a project view.
func Parse(r io.Reader) (*View, error) {
	v := &View{lastDir: -1}
	section := ""
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		v.lines = append(v.lines, line)
		idx := len(v.lines) - 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if section == "" {
				return nil, &ParseError{Line: n, Msg: "item outside of a list section"}
			}
			v.addItem(section, trimmed)
			if section == sectionDirectories {
				v.lastDir = idx
			}
			continue
		}

		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, &ParseError{Line: n, Msg: fmt.Sprintf("expected section, got %q", trimmed)}
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		section = ""
		if value == "" {
			if !listSections[name] {
				log.Component("projectview").Debugw("ignoring section", "section", name, "line", n)
			}
			section = name
			if name == sectionDirectories {
				v.lastDir = idx
			}
			continue
		}
		if err := v.setScalar(name, value); err != nil {
			return nil, &ParseError{Line: n, Msg: err.Error()}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read project view: %w", err)
	}
	return v, nil
}

func (v *View) addItem(section, item string) {
	switch section {
	case sectionDirectories:
		if rest, ok := strings.CutPrefix(item, "-"); ok {
			v.Exclude = append(v.Exclude, strings.TrimSpace(rest))
		} else {
			v.Include = append(v.Include, item)
		}
	case sectionTargets:
		v.Targets = append(v.Targets, item)
	case sectionLanguages:
		v.AdditionalLanguages = append(v.AdditionalLanguages, item)
	}
}

func (v *View) setScalar(name, value string) error {
	switch name {
	case sectionWorkspaceType:
		v.WorkspaceType = value
	case sectionDerive:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", name, value)
		}
		v.DeriveTargets = b
	default:
		log.Component("projectview").Debugw("ignoring section", "section", name)
	}
	return nil
}

// Load parses the project view at path.
func Load(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// New creates a view including dirs that derives targets from them.
func New(dirs ...string) *View {
	v := &View{lastDir: -1}
	v.lines = []string{sectionDirectories + ":"}
	v.lastDir = 0
	for _, d := range dirs {
		v.AddDirectory(d)
	}
	v.lines = append(v.lines, "", sectionDerive+": true")
	v.DeriveTargets = true
	return v
}

// ToDefinition returns the project definition the view describes.
func (v *View) ToDefinition() project.Definition {
	return project.NewDefinition(v.Include, v.Exclude)
}

// AddDirectory includes dir by appending it to the last directories
// section. It reports false when dir is already included.
func (v *View) AddDirectory(dir string) bool {
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	if dir == "" {
		dir = "."
	}
	if len(v.Include) > 0 && v.ToDefinition().IsIncluded(dir) {
		return false
	}
	if v.removeExclude(dir) && v.ToDefinition().IsIncluded(dir) {
		return true
	}
	item := "  " + dir
	if v.lastDir < 0 {
		if len(v.lines) > 0 && strings.TrimSpace(v.lines[len(v.lines)-1]) != "" {
			v.lines = append(v.lines, "")
		}
		v.lines = append(v.lines, sectionDirectories+":")
		v.lastDir = len(v.lines) - 1
	}
	at := v.lastDir + 1
	v.lines = append(v.lines[:at], append([]string{item}, v.lines[at:]...)...)
	v.lastDir = at
	v.Include = append(v.Include, dir)
	return true
}

// removeExclude drops a "-dir" item from the directories sections.
func (v *View) removeExclude(dir string) bool {
	i := slices.Index(v.Exclude, dir)
	if i < 0 {
		return false
	}
	v.Exclude = slices.Delete(v.Exclude, i, i+1)
	for idx, l := range v.lines {
		item, ok := strings.CutPrefix(strings.TrimSpace(l), "-")
		if !ok || l == strings.TrimSpace(l) || strings.TrimSpace(item) != dir {
			continue
		}
		v.lines = slices.Delete(v.lines, idx, idx+1)
		if v.lastDir >= idx {
			v.lastDir--
		}
		break
	}
	return true
}

// Format renders the view, preserving comments and unknown sections.
func (v *View) Format() []byte {
	var buf bytes.Buffer
	for _, l := range v.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Write saves the view to path, replacing any existing file by rename.
func (v *View) Write(path string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, v.Format(), 0o644); err != nil {
		return fmt.Errorf("write project view: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace project view: %w", err)
	}
	return nil
}
