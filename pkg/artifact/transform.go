package artifact

import (
	"slices"

	"github.com/albertocavalcante/qsync/pkg/project"
)

// ProjectTransform attaches cached jars to the project's libraries and
// adds generated source jars as generated source roots.
func ProjectTransform(s *State) project.Transform {
	return func(p *project.Project) (*project.Project, error) {
		out := p.Clone()
		if s == nil || out == nil {
			return out, nil
		}
		byTarget := map[string][]Entry{}
		for _, e := range s.Entries() {
			name := e.Key.Target.String()
			byTarget[name] = append(byTarget[name], e)
		}
		for i := range out.Libraries {
			lib := &out.Libraries[i]
			for _, e := range byTarget[lib.Name] {
				switch e.Key.Role {
				case RoleClassJar:
					lib.ClassJars = append(lib.ClassJars, e.Path)
				case RoleSourceJar:
					lib.SourceJars = append(lib.SourceJars, e.Path)
				}
			}
			slices.Sort(lib.ClassJars)
			lib.ClassJars = slices.Compact(lib.ClassJars)
			slices.Sort(lib.SourceJars)
			lib.SourceJars = slices.Compact(lib.SourceJars)
		}
		for _, e := range s.Entries() {
			if e.Key.Role == RoleGenSrcJar {
				out.GeneratedSourceRoots = append(out.GeneratedSourceRoots, e.Path)
			}
		}
		slices.Sort(out.GeneratedSourceRoots)
		out.GeneratedSourceRoots = slices.Compact(out.GeneratedSourceRoots)
		return out, nil
	}
}
