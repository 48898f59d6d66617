package graph

import (
	"slices"

	"github.com/bazelbuild/bazel-gazelle/label"

	"github.com/albertocavalcante/qsync/pkg/util"
)

// findCycles returns one witness path per cyclic strongly connected
// component, e.g. [a b c a]. Components and witnesses are deterministic:
// each witness starts at the smallest label of its component and follows
// the smallest successors.
func findCycles(d *Data) [][]label.Label {
	n := len(d.labels)
	index := make(map[label.Label]int, n)
	for i, l := range d.labels {
		index[l] = i
	}
	adj := make([][]int, n)
	for i, l := range d.labels {
		for _, dep := range d.targets[l].AllDeps() {
			if j, ok := index[dep]; ok {
				adj[i] = append(adj[i], j)
			}
		}
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
	}

	var cycles [][]label.Label
	for _, comp := range stronglyConnected(adj) {
		if len(comp) == 1 && !slices.Contains(adj[comp[0]], comp[0]) {
			continue
		}
		cycles = append(cycles, witness(adj, comp, d.labels))
	}
	slices.SortFunc(cycles, func(a, b []label.Label) int { return util.CompareLabels(a[0], b[0]) })
	return cycles
}

// stronglyConnected is Tarjan's algorithm over node indices.
func stronglyConnected(adj [][]int) [][]int {
	n := len(adj)
	idx := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range idx {
		idx[i] = -1
	}
	var (
		stack []int
		comps [][]int
		next  int
	)
	var visit func(v int)
	visit = func(v int) {
		idx[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range adj[v] {
			if idx[w] == -1 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], idx[w])
			}
		}
		if low[v] != idx[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	for v := 0; v < n; v++ {
		if idx[v] == -1 {
			visit(v)
		}
	}
	return comps
}

// witness finds the shortest cycle through the smallest node of comp.
func witness(adj [][]int, comp []int, labels []label.Label) []label.Label {
	in := make(map[int]bool, len(comp))
	for _, v := range comp {
		in[v] = true
	}
	start := comp[0]
	parent := map[int]int{start: -1}
	queue := []int{start}
	last := -1
	for len(queue) > 0 && last == -1 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if !in[w] {
				continue
			}
			if w == start {
				last = v
				break
			}
			if _, seen := parent[w]; !seen {
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	var rev []int
	for v := last; v != -1; v = parent[v] {
		rev = append(rev, v)
	}
	out := make([]label.Label, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, labels[rev[i]])
	}
	return append(out, labels[start])
}
