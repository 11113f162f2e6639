// Package graph builds the foreign-key dependency graph of a table set and
// derives a creation order that tolerates cycles.
package graph

import (
	"fmt"
	"slices"

	"github.com/tordrt/relschema/internal/schema"
)

// Graph maps each table to the tables it depends on
type Graph struct {
	nodes   []string            // input order
	index   map[string]int      // node -> input position
	parents map[string][]string // table -> dependencies, in input order
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		index:   make(map[string]int),
		parents: make(map[string][]string),
	}
}

// Build adds every table as a node and every resolvable foreign key as an
// edge. Self references and targets outside the set are skipped.
func Build(tables []schema.Table) *Graph {
	g := New()
	for _, t := range tables {
		g.AddNode(t.Name)
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.ForeignTable == t.Name {
				continue
			}
			if _, ok := g.index[fk.ForeignTable]; !ok {
				continue
			}
			_ = g.AddEdge(t.Name, fk.ForeignTable)
		}
	}
	return g
}

// AddNode adds a node; adding an existing node is a no-op
func (g *Graph) AddNode(id string) {
	if _, exists := g.index[id]; exists {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.parents[id] = []string{}
}

// AddEdge records that table depends on dependency. Dependencies are kept
// in input order whatever order their foreign keys were read in.
func (g *Graph) AddEdge(table, dependency string) error {
	if _, exists := g.index[table]; !exists {
		return fmt.Errorf("table node %q does not exist", table)
	}
	if _, exists := g.index[dependency]; !exists {
		return fmt.Errorf("dependency node %q does not exist", dependency)
	}
	if table == dependency {
		return fmt.Errorf("self-loop detected: %s", table)
	}

	deps := g.parents[table]
	i, found := slices.BinarySearchFunc(deps, dependency, func(dep, target string) int {
		return g.index[dep] - g.index[target]
	})
	if !found {
		g.parents[table] = slices.Insert(deps, i, dependency)
	}
	return nil
}

// Nodes returns table names in insertion order
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Dependencies returns the direct dependencies of a table in input order
func (g *Graph) Dependencies(table string) []string {
	return slices.Clone(g.parents[table])
}

// Map returns the graph as table -> dependencies, with an empty set for
// tables that depend on nothing
func (g *Graph) Map() map[string][]string {
	out := make(map[string][]string, len(g.nodes))
	for _, id := range g.nodes {
		out[id] = slices.Clone(g.parents[id])
	}
	return out
}

// EdgeCount returns the number of dependency edges
func (g *Graph) EdgeCount() int {
	count := 0
	for _, deps := range g.parents {
		count += len(deps)
	}
	return count
}

// Order returns every node exactly once with dependencies first, visiting
// roots and dependencies in input order. A dependency reached while it is
// still being visited closes a cycle: it is emitted at that point and the
// edge is not followed, so some edges may point forward (see DeferredEdges).
func (g *Graph) Order() []string {
	done := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)
	order := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if done[id] {
			return
		}
		if onStack[id] {
			done[id] = true
			order = append(order, id)
			return
		}

		onStack[id] = true
		for _, dep := range g.parents[id] {
			visit(dep)
		}
		onStack[id] = false

		if !done[id] {
			done[id] = true
			order = append(order, id)
		}
	}

	for _, id := range g.nodes {
		visit(id)
	}
	return order
}

// DeferredEdges lists the dependencies an order does not honor, i.e. those
// whose target appears after the dependent table. Their constraints have to
// be added once both tables exist.
func (g *Graph) DeferredEdges(order []string) []schema.DependencyEdge {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	var deferred []schema.DependencyEdge
	for _, id := range order {
		for _, dep := range g.parents[id] {
			if pos[dep] > pos[id] {
				deferred = append(deferred, schema.DependencyEdge{Table: id, DependsOn: dep})
			}
		}
	}
	return deferred
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path starting and ending at the same table
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var stack []string
	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true
		stack = append(stack, id)

		for _, dep := range g.parents[id] {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if recStack[dep] {
				start := slices.Index(stack, dep)
				cyclePath = append(slices.Clone(stack[start:]), dep)
				return true
			}
		}

		recStack[id] = false
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range g.nodes {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}
