// internal/dependency/graph.go
package dependency

import (
	"fmt"
	"strings"
)

// NodeID is the unique identifier for a node inside a dependency graph.
// Bootstrap steps use their configured name ("node", "postgres-auth").
type NodeID string

// NodeKind categorises nodes.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindTool
	KindConfigure
	KindService
)

func (k NodeKind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindConfigure:
		return "configure"
	case KindService:
		return "service"
	}
	return "unknown"
}

// Node represents a bootstrap step together with its dependency list.
//
// A node can depend on zero or more other nodes. Dependencies on IDs that are
// not in the graph (for example a step filtered out on this platform) are
// ignored when ordering.
type Node struct {
	ID           NodeID
	FriendlyName string
	Kind         NodeKind
	DependsOn    []NodeID
}

// Graph is a very small helper to answer dependency queries. It is *not*
// thread-safe by itself; callers must synchronise if they write concurrently.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph. Insertion order is kept and
// used to break ties when sorting.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	// Copy to avoid external mutations; duplicate edges are dropped.
	copied := n
	copied.DependsOn = nil
	seen := make(map[NodeID]bool, len(n.DependsOn))
	for _, dep := range n.DependsOn {
		if !seen[dep] {
			seen[dep] = true
			copied.DependsOn = append(copied.DependsOn, dep)
		}
	}
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		// Return a copy to avoid callers modifying internal slice.
		depsCopy := make([]NodeID, len(n.DependsOn))
		copy(depsCopy, n.DependsOn)
		return depsCopy
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on the given
// node, in insertion order.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var res []NodeID
	for _, nid := range g.order {
		for _, dep := range g.nodes[nid].DependsOn {
			if dep == id {
				res = append(res, nid)
				break
			}
		}
	}
	return res
}

// CycleError reports a dependency cycle.
type CycleError struct {
	Path []NodeID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, " -> "))
}

// TopologicalSort orders the nodes so every node comes after its
// dependencies. Among nodes whose dependencies are satisfied, the one added
// first comes first, so an already valid insertion order is returned as is.
func (g *Graph) TopologicalSort() ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(g.order))
	for _, id := range g.order {
		for _, dep := range g.nodes[id].DependsOn {
			if _, ok := g.nodes[dep]; ok {
				indegree[id]++
			}
		}
	}

	placed := make(map[NodeID]bool, len(g.order))
	result := make([]NodeID, 0, len(g.order))
	for len(result) < len(g.order) {
		next := NodeID("")
		for _, id := range g.order {
			if !placed[id] && indegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, &CycleError{Path: g.findCycle(placed)}
		}
		placed[next] = true
		result = append(result, next)
		for _, dependent := range g.Dependents(next) {
			indegree[dependent]--
		}
	}
	return result, nil
}

// findCycle walks unplaced nodes depth-first and returns one cycle.
func (g *Graph) findCycle(placed map[NodeID]bool) []NodeID {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[NodeID]int)
	var stack []NodeID
	var cycle []NodeID

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		state[id] = inStack
		stack = append(stack, id)
		for _, dep := range g.nodes[id].DependsOn {
			if _, ok := g.nodes[dep]; !ok || placed[dep] {
				continue
			}
			switch state[dep] {
			case inStack:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]NodeID(nil), stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if !placed[id] && state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// TransitiveDependents returns every node that depends on id directly or
// indirectly, in insertion order.
func (g *Graph) TransitiveDependents(id NodeID) []NodeID {
	seen := map[NodeID]bool{}
	queue := []NodeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.Dependents(cur) {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	var res []NodeID
	for _, nid := range g.order {
		if seen[nid] {
			res = append(res, nid)
		}
	}
	return res
}
