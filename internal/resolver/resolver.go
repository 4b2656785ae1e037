// SPDX-License-Identifier: MPL-2.0

// Package resolver computes a package load order from declared dependency
// edges via Kahn's topological sort.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lane-core/pack.ksh/internal/issuekind"
	"github.com/lane-core/pack.ksh/internal/registry"
)

// Package is the resolver's view of one enabled declaration: just enough
// to build dependency edges without importing the registry's full Record.
type Package struct {
	Name    string
	Tag     string
	Depends []string
}

// Resolve computes a LoadOrder over pkgs and returns any dependency
// warnings accumulated along the way (unsatisfied edges, constraint
// mismatches). declared reports whether a name is declared and enabled,
// and its pinned tag; an undeclared and a disabled dependency get the same
// "not declared" warning. An empty tag means the dependency is not pinned to a tag, so a constraint
// (e.g. "name@v1") is never checked against a branch or commit pin.
func Resolve(pkgs []Package, declared func(name string) (tag string, ok bool)) ([]string, []error, error) {
	byName := make(map[string]Package, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}

	g := newGraph()
	for _, p := range pkgs {
		g.addNode(p.Name)
	}

	var warnings []error
	for _, p := range pkgs {
		for _, d := range p.Depends {
			bare, want := splitConstraint(d)

			tag, ok := declared(bare)
			if !ok {
				warnings = append(warnings, &issuekind.DependencyWarning{
					Dependent:  p.Name,
					Dependency: bare,
					Constraint: want,
					Message:    "not declared",
				})
				continue
			}
			if want != "" && tag != "" && tag != want {
				warnings = append(warnings, &issuekind.DependencyWarning{
					Dependent:  p.Name,
					Dependency: bare,
					Constraint: want,
					Message:    fmt.Sprintf("constraint unmet (declared tag %q)", tag),
				})
			}

			g.addEdge(bare, p.Name)
		}
	}

	order, err := g.topologicalSort()
	if err != nil {
		return nil, warnings, err
	}
	return order, warnings, nil
}

func splitConstraint(d string) (bare, want string) {
	if idx := strings.IndexByte(d, '@'); idx != -1 {
		return d[:idx], d[idx+1:]
	}
	return d, ""
}

// graph is a directed graph over dependency edges, generalized from the
// zero-in-degree queue in lexicographic order rather than insertion
// order, for deterministic output.
type graph struct {
	adjacency map[string][]string
	nodes     []string
	nodeSet   map[string]bool
}

func newGraph() *graph {
	return &graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

func (g *graph) addNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

func (g *graph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

func (g *graph) topologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	zero := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			zero = append(zero, node)
		}
	}
	sort.Strings(zero)

	queue := zero
	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		var freed []string
		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				freed = append(freed, neighbor)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(result) != len(g.nodes) {
		var cycle []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		sort.Strings(cycle)
		return nil, &issuekind.ResolutionError{Cycle: cycle}
	}

	return result, nil
}

// FromRegistry builds the resolver's Package slice from a Registry's
// enabled declarations, and returns a declared lookup closure bound to
// the same registry.
func FromRegistry(reg *registry.Registry) ([]Package, func(name string) (string, bool)) {
	var pkgs []Package
	reg.Each(registry.Enabled, func(rec registry.Record, cfg registry.Config) {
		pkgs = append(pkgs, Package{Name: rec.Name, Tag: rec.Ref.Value, Depends: cfg.Depends})
	})

	declared := func(name string) (string, bool) {
		rec, _, ok := reg.Lookup(name)
		if !ok || rec.Disabled {
			return "", false
		}
		if rec.Ref.Kind != registry.RefTag {
			return "", true
		}
		return rec.Ref.Value, true
	}
	return pkgs, declared
}
