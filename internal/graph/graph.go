// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"fmt"
	"sort"
)

// Graph owns every node created for a build and enforces URN uniqueness
// (spec.md §3 invariant 2) plus lineage/sibling/terminal-set/property
// queries (spec.md §2 component table).
type Graph struct {
	nodesByURN map[int]*Node
	roots      []*Node
	nextURN    int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodesByURN: make(map[int]*Node)}
}

// NextURN allocates the next unique urn. Builders must use this rather
// than picking urns themselves so uniqueness (invariant 2) holds across
// every rewrite pass.
func (g *Graph) NextURN() int {
	g.nextURN++
	return g.nextURN
}

// AddNode registers n in the graph. Returns an error if its URN is
// already taken (spec.md §3 invariant 2).
func (g *Graph) AddNode(n *Node) error {
	if _, exists := g.nodesByURN[n.URN]; exists {
		return fmt.Errorf("duplicate urn %d for node %q", n.URN, n.Name)
	}
	g.nodesByURN[n.URN] = n
	return nil
}

// AddRoot registers n as a root (branch head) of the graph.
func (g *Graph) AddRoot(n *Node) {
	g.roots = append(g.roots, n)
}

// Roots returns the branch-head nodes, in insertion order.
func (g *Graph) Roots() []*Node {
	return g.roots
}

// Node looks up a node by urn.
func (g *Graph) Node(urn int) (*Node, bool) {
	n, ok := g.nodesByURN[urn]
	return n, ok
}

// Nodes returns every node in the graph, ordered by urn for determinism.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodesByURN))
	for _, n := range g.nodesByURN {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URN < out[j].URN })
	return out
}

// NodesByGlobalURN groups every node (clone or not) sharing a global urn.
func (g *Graph) NodesByGlobalURN(gurn int) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.GlobalURN == gurn {
			out = append(out, n)
		}
	}
	return out
}

// Lineage returns the full set of transitive children of n (its
// dependency closure), ordered by urn.
func (g *Graph) Lineage(n *Node) []*Node {
	seen := map[int]bool{}
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if seen[c.URN] {
				continue
			}
			seen[c.URN] = true
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	sort.Slice(out, func(i, j int) bool { return out[i].URN < out[j].URN })
	return out
}

// Siblings returns the other children of every parent that has n as a
// child (nodes sharing at least one direct parent with n).
func (g *Graph) Siblings(n *Node) []*Node {
	seen := map[int]bool{n.URN: true}
	var out []*Node
	for _, candidate := range g.Nodes() {
		for _, c := range candidate.Children {
			if c.URN == n.URN {
				for _, sib := range candidate.Children {
					if !seen[sib.URN] {
						seen[sib.URN] = true
						out = append(out, sib)
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URN < out[j].URN })
	return out
}

// TerminalSet returns every node currently in a terminal status.
func (g *Graph) TerminalSet() []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Status.IsTerminal() {
			out = append(out, n)
		}
	}
	return out
}

// NonTerminalSet returns every node not yet in a terminal status.
func (g *Graph) NonTerminalSet() []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if !n.Status.IsTerminal() {
			out = append(out, n)
		}
	}
	return out
}

// FindByName returns every node with the given logical name (clones of a
// branch may legitimately share a name across branches only if they also
// share a global urn; callers needing a single node should also filter by
// branch).
func (g *Graph) FindByName(name string) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// PropertyLookup resolves a custom-property value by walking from n up
// through the chain of nodes that list it as a child, falling back to a
// zero value if no ancestor defines it. The Builder does not call it;
// it copies branch properties onto nodes directly.
func (g *Graph) PropertyLookup(n *Node, get func(CustomProperties) (string, bool)) (string, bool) {
	if v, ok := get(n.Custom); ok && v != "" {
		return v, true
	}
	for _, parent := range g.parentsOf(n) {
		if v, ok := g.PropertyLookup(parent, get); ok {
			return v, true
		}
	}
	return "", false
}

func (g *Graph) parentsOf(n *Node) []*Node {
	var out []*Node
	for _, candidate := range g.Nodes() {
		for _, c := range candidate.Children {
			if c.URN == n.URN {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}
