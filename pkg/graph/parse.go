// Package graph builds and queries the dependency graph of a workspace.
//
// Parse turns a query.Summary into an immutable *Data. Targets of rule
// classes outside the handled set are kept as opaque nodes so that edges
// through them survive; only handled targets own source files.
package graph

import (
	"context"
	"time"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/internal/log"
	"github.com/albertocavalcante/qsync/pkg/query"
)

// Options controls how a summary is interpreted.
type Options struct {
	// HandledKinds maps rule classes to the kinds the IDE manages.
	HandledKinds map[string]Kind

	// CCEnabled is read once per parse. When false, C/C++ rules are opaque.
	CCEnabled bool

	// RequireAcyclic fails the parse on dependency cycles.
	RequireAcyclic bool
}

// checkEvery is how many rules are parsed between cancellation checks.
const checkEvery = 1024

// Parse builds the graph for a query summary. Structurally invalid input
// (duplicate labels, malformed labels or paths, and cycles when required)
// fails with a *GraphConstructionError.
func Parse(ctx context.Context, s *query.Summary, opts Options) (*Data, error) {
	start := time.Now()
	logger := log.Component("graph")

	p := &parser{
		opts:      opts,
		summary:   s,
		b:         NewBuilder().RequireAcyclic(opts.RequireAcyclic),
		generated: make(map[label.Label]bool),
		sources:   make(map[label.Label]bool),
	}
	if err := p.indexFiles(); err != nil {
		return nil, err
	}
	for i := range s.Rules {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := p.addRule(&s.Rules[i]); err != nil {
			return nil, err
		}
	}
	for _, pkg := range s.PackagesWithErrors {
		p.b.AddPackageError(pkg)
	}

	d, err := p.b.Build()
	if err != nil {
		return nil, err
	}
	diag := d.Diagnostics()
	logger.Debugw("parsed build graph",
		"targets", d.Len(),
		"files", len(d.owners),
		"external", len(d.external),
		"conflicts", len(diag.ConflictingOwners),
		"cycles", len(diag.Cycles),
		"duration", time.Since(start),
	)
	for file, owners := range diag.ConflictingOwners {
		logger.Debugw("file claimed by several targets", "file", file, "owner", owners[0].String(), "claimants", len(owners))
	}
	return d, nil
}

type parser struct {
	opts      Options
	summary   *query.Summary
	b         *Builder
	generated map[label.Label]bool
	sources   map[label.Label]bool
}

func (p *parser) indexFiles() error {
	for file, rule := range p.summary.GeneratedFiles {
		fl, err := parseLabel(file)
		if err != nil {
			return err
		}
		rl, err := parseLabel(rule)
		if err != nil {
			return err
		}
		p.generated[fl] = true
		p.b.AddGeneratedFile(fl, rl)
	}
	for _, file := range p.summary.SourceFiles {
		fl, err := parseLabel(file)
		if err != nil {
			return err
		}
		p.sources[fl] = true
	}
	return nil
}

func (p *parser) kind(ruleClass string) Kind {
	k, ok := p.opts.HandledKinds[ruleClass]
	if !ok {
		return KindOpaque
	}
	if k.IsCC() && !p.opts.CCEnabled {
		return KindOpaque
	}
	return k
}

// isSource decides whether a srcs entry is a checked-in file. Summaries
// without file records (hand-built or offline) treat every entry as one.
func (p *parser) isSource(l label.Label) bool {
	if p.generated[l] {
		return false
	}
	if len(p.sources) == 0 {
		return true
	}
	return p.sources[l]
}

func (p *parser) addRule(r *query.Rule) error {
	l, err := parseLabel(r.Label)
	if err != nil {
		return err
	}
	t := &Target{
		Label:     l,
		RuleClass: r.Kind,
		Kind:      p.kind(r.Kind),
		Tags:      r.Tags,
		TestOnly:  r.TestOnly,
	}
	for _, src := range r.Sources {
		sl, err := parseLabel(src)
		if err != nil {
			return err
		}
		if !p.isSource(sl) {
			t.GeneratedSources = append(t.GeneratedSources, sl)
			continue
		}
		fp, ok := query.FilePath(sl)
		if !ok {
			// files in external repositories are not part of the workspace
			continue
		}
		t.Sources = append(t.Sources, fp)
	}
	if t.Deps, err = parseLabels(r.Deps, r.Exports); err != nil {
		return err
	}
	if t.RuntimeDeps, err = parseLabels(r.RuntimeDeps); err != nil {
		return err
	}
	return p.b.Add(t)
}

func parseLabel(s string) (label.Label, error) {
	l, err := label.Parse(s)
	if err != nil {
		return label.NoLabel, constructionErrorf(ErrMalformedLabel, "%q: %v", s, err)
	}
	if l.Relative {
		return label.NoLabel, constructionErrorf(ErrMalformedLabel, "%q is relative", s)
	}
	return l, nil
}

// parseLabels parses and concatenates label lists, dropping duplicates
// while keeping first-seen order.
func parseLabels(lists ...[]string) ([]label.Label, error) {
	var out []label.Label
	seen := make(map[label.Label]bool)
	for _, list := range lists {
		for _, s := range list {
			l, err := parseLabel(s)
			if err != nil {
				return nil, err
			}
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out, nil
}
