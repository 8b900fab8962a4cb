package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// NestingCycle reports a stateful location that contains itself through its
// children.
//
// A nesting cycle cannot be instantiated: creating the location would seed
// branches forever.
type NestingCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["shell", "tabs", "shell"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeNesting detects stateful nesting cycles in the catalog.
//
// The algorithm:
//  1. Build location → child edges from the children lists
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Unknown children are ignored here; ValidateCatalog reports them.
// Results are sorted by their first location for stable output.
func AnalyzeNesting(c *Catalog) []NestingCycle {
	graph := buildNestingGraph(c)
	if len(graph) == 0 {
		return nil
	}

	var cycles []NestingCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b NestingCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// nestingGraph maps location name → names of its children.
type nestingGraph map[string][]string

func buildNestingGraph(c *Catalog) nestingGraph {
	graph := make(nestingGraph, len(c.Locations))
	for _, l := range c.Locations {
		// Ensure node exists even without edges.
		graph[l.Name] = []string{}
	}
	for _, l := range c.Locations {
		for _, child := range l.Children {
			if _, ok := graph[child]; ok {
				graph[l.Name] = append(graph[l.Name], child)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph nestingGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so results do not depend on map
// iteration. Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph nestingGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// sccToCycle converts an SCC to a NestingCycle, starting the path at the
// alphabetically first member.
func sccToCycle(scc []string, graph nestingGraph) NestingCycle {
	members := slices.Clone(scc)
	slices.Sort(members)

	if len(members) == 1 {
		name := members[0]
		return NestingCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("stateful location lists itself as a child: %s → %s", name, name),
		}
	}

	path := reconstructCyclePath(members, graph)
	return NestingCycle{
		Path:    path,
		Message: fmt.Sprintf("stateful nesting cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Start at the first member, follow edges to other members, and stop on
// returning to the start.
func reconstructCyclePath(scc []string, graph nestingGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
