// Package bep reads the Build Event Protocol stream Bazel writes with
// --build_event_json_file and extracts the files each target produced.
package bep

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
)

type fileSetRef struct {
	ID string `json:"id"`
}

type file struct {
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	PathPrefix []string `json:"pathPrefix"`
}

type namedSet struct {
	Files    []file       `json:"files"`
	FileSets []fileSetRef `json:"fileSets"`
}

type outputGroup struct {
	Name     string       `json:"name"`
	FileSets []fileSetRef `json:"fileSets"`
}

type eventID struct {
	NamedSet        *fileSetRef `json:"namedSet"`
	TargetCompleted *struct {
		Label string `json:"label"`
	} `json:"targetCompleted"`
	BuildFinished *struct{} `json:"buildFinished"`
}

type event struct {
	ID              eventID   `json:"id"`
	NamedSetOfFiles *namedSet `json:"namedSetOfFiles"`
	Completed       *struct {
		Success     bool          `json:"success"`
		OutputGroup []outputGroup `json:"outputGroup"`
	} `json:"completed"`
	Aborted *struct {
		Reason      string `json:"reason"`
		Description string `json:"description"`
	} `json:"aborted"`
	Finished *struct {
		ExitCode *struct {
			Name string `json:"name"`
			Code int    `json:"code"`
		} `json:"exitCode"`
	} `json:"finished"`
}

// File is one output of a completed target.
type File struct {
	Target      string
	OutputGroup string
	// Name is the path relative to the output root, e.g. "java/app/libapp.jar".
	Name string
	// Path is the local file location.
	Path string
}

// Result is what a build reported.
type Result struct {
	Files []File
	// Failed lists targets that completed unsuccessfully or were aborted.
	Failed []string
	// Succeeded lists targets that completed successfully.
	Succeeded []string
	Finished  bool
	ExitCode  int
	ExitName  string
}

type completion struct {
	label   string
	success bool
	groups  []outputGroup
}

// Read parses a newline-delimited JSON event stream. Events it does not
// understand are skipped. Results are sorted.
func Read(r io.Reader) (*Result, error) {
	sets := map[string]*namedSet{}
	var completions []completion
	res := &Result{}

	dec := json.NewDecoder(bufio.NewReader(r))
	for {
		var ev event
		err := dec.Decode(&ev)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode build event: %w", err)
		}
		switch {
		case ev.ID.NamedSet != nil && ev.NamedSetOfFiles != nil:
			sets[ev.ID.NamedSet.ID] = ev.NamedSetOfFiles
		case ev.ID.TargetCompleted != nil:
			c := completion{label: ev.ID.TargetCompleted.Label}
			if ev.Completed != nil {
				c.success = ev.Completed.Success
				c.groups = ev.Completed.OutputGroup
			}
			completions = append(completions, c)
		case ev.ID.BuildFinished != nil && ev.Finished != nil:
			res.Finished = true
			if ev.Finished.ExitCode != nil {
				res.ExitCode = ev.Finished.ExitCode.Code
				res.ExitName = ev.Finished.ExitCode.Name
			}
		}
	}

	for _, c := range completions {
		if !c.success {
			res.Failed = append(res.Failed, c.label)
			continue
		}
		res.Succeeded = append(res.Succeeded, c.label)
		for _, g := range c.groups {
			for _, f := range expand(sets, g.FileSets) {
				res.Files = append(res.Files, File{
					Target:      c.label,
					OutputGroup: g.Name,
					Name:        f.Name,
					Path:        localPath(f),
				})
			}
		}
	}
	slices.Sort(res.Failed)
	res.Failed = slices.Compact(res.Failed)
	slices.Sort(res.Succeeded)
	res.Succeeded = slices.Compact(res.Succeeded)
	slices.SortFunc(res.Files, func(a, b File) int {
		if c := strings.Compare(a.Target, b.Target); c != 0 {
			return c
		}
		if c := strings.Compare(a.OutputGroup, b.OutputGroup); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return res, nil
}

// ReadFile parses the event file at path.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open build event file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// expand flattens nested file sets. A set referenced twice is visited once.
func expand(sets map[string]*namedSet, roots []fileSetRef) []file {
	seen := map[string]bool{}
	var out []file
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		s, ok := sets[ref.ID]
		if !ok {
			continue
		}
		out = append(out, s.Files...)
		queue = append(queue, s.FileSets...)
	}
	return out
}

func localPath(f file) string {
	if u, err := url.Parse(f.URI); err == nil && u.Scheme == "file" {
		return u.Path
	}
	if len(f.PathPrefix) > 0 {
		return strings.Join(append(slices.Clone(f.PathPrefix), f.Name), "/")
	}
	return f.Name
}
