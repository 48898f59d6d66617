// Package project derives the IDE project structure from a build graph.
//
// A Project is a pure function of the graph, the project Definition and
// the artifacts currently known to be good. It is never mutated in place:
// transforms return fresh values.
package project

import "slices"

// Project is the IDE-facing description of the workspace.
type Project struct {
	ContentRoots         []ContentRoot `json:"content_roots" yaml:"content_roots"`
	Libraries            []Library     `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	GeneratedSourceRoots []string      `json:"generated_source_roots,omitempty" yaml:"generated_source_roots,omitempty"`
	Languages            []string      `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// ContentRoot is a top-level directory the IDE indexes.
type ContentRoot struct {
	Path          string         `json:"path" yaml:"path"`
	SourceFolders []SourceFolder `json:"source_folders,omitempty" yaml:"source_folders,omitempty"`
	Excludes      []string       `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// SourceFolder is a source root inside a content root.
type SourceFolder struct {
	Path          string `json:"path" yaml:"path"`
	PackagePrefix string `json:"package_prefix,omitempty" yaml:"package_prefix,omitempty"`
	IsTest        bool   `json:"is_test,omitempty" yaml:"is_test,omitempty"`
	IsGenerated   bool   `json:"is_generated,omitempty" yaml:"is_generated,omitempty"`
}

// Library is a dependency outside the project, consumed as compiled jars.
type Library struct {
	Name       string   `json:"name" yaml:"name"`
	ClassJars  []string `json:"class_jars,omitempty" yaml:"class_jars,omitempty"`
	SourceJars []string `json:"source_jars,omitempty" yaml:"source_jars,omitempty"`
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := &Project{
		GeneratedSourceRoots: slices.Clone(p.GeneratedSourceRoots),
		Languages:            slices.Clone(p.Languages),
	}
	for _, cr := range p.ContentRoots {
		out.ContentRoots = append(out.ContentRoots, ContentRoot{
			Path:          cr.Path,
			SourceFolders: slices.Clone(cr.SourceFolders),
			Excludes:      slices.Clone(cr.Excludes),
		})
	}
	for _, l := range p.Libraries {
		out.Libraries = append(out.Libraries, Library{
			Name:       l.Name,
			ClassJars:  slices.Clone(l.ClassJars),
			SourceJars: slices.Clone(l.SourceJars),
		})
	}
	return out
}

// Library returns the library with the given name.
func (p *Project) Library(name string) (Library, bool) {
	i, found := slices.BinarySearchFunc(p.Libraries, name, func(l Library, n string) int {
		switch {
		case l.Name < n:
			return -1
		case l.Name > n:
			return 1
		}
		return 0
	})
	if !found {
		return Library{}, false
	}
	return p.Libraries[i], true
}

// Transform produces a new project from an existing one.
// Implementations must not modify their input.
type Transform func(*Project) (*Project, error)

// Identity returns its input.
func Identity(p *Project) (*Project, error) { return p, nil }

// Compose applies transforms in order, stopping at the first error.
func Compose(ts ...Transform) Transform {
	return func(p *Project) (*Project, error) {
		var err error
		for _, t := range ts {
			if t == nil {
				continue
			}
			if p, err = t(p); err != nil {
				return nil, err
			}
		}
		return p, nil
	}
}
