package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"
)

// DependencyGraph stores directed labeled edges between tasks.
// The edge set is kept acyclic: AddDependency refuses any edge that would
// close a cycle, so no later validation is needed.
type DependencyGraph struct {
	mu    sync.RWMutex
	edges []Dependency      // Insertion order
	byID  map[string]int    // Dependency ID -> index into edges
	pairs map[[2]string]int // (from, to) -> index into edges
	newID func() string
}

// NewDependencyGraph creates a graph seeded with existing edges.
// Seed edges that duplicate a pair or would close a cycle are skipped.
func NewDependencyGraph(deps ...Dependency) *DependencyGraph {
	g := &DependencyGraph{
		byID:  make(map[string]int),
		pairs: make(map[[2]string]int),
		newID: uuid.NewString,
	}
	for _, d := range deps {
		g.insert(d)
	}
	return g
}

// RejectReason says why an edge was refused. Empty means accepted.
type RejectReason string

const (
	RejectDuplicate   RejectReason = "duplicate"    // Pair already linked
	RejectCycle       RejectReason = "cycle"        // Edge would close a cycle
	RejectDuplicateID RejectReason = "duplicate id" // Seed edge reuses an ID
)

// insert adds d if it passes the duplicate and cycle checks.
// Caller must hold the write lock.
func (g *DependencyGraph) insert(d Dependency) RejectReason {
	if _, exists := g.pairs[[2]string{d.FromTaskID, d.ToTaskID}]; exists {
		return RejectDuplicate
	}
	if g.createsCycle(d.FromTaskID, d.ToTaskID) {
		return RejectCycle
	}
	if d.ID == "" {
		d.ID = g.newID()
	}
	if _, exists := g.byID[d.ID]; exists {
		return RejectDuplicateID
	}

	g.edges = append(g.edges, d)
	g.byID[d.ID] = len(g.edges) - 1
	g.pairs[[2]string{d.FromTaskID, d.ToTaskID}] = len(g.edges) - 1
	return ""
}

// AddDependency inserts an edge from -> to. Returns false, without error,
// when an edge for the pair already exists or the edge would create a cycle.
func (g *DependencyGraph) AddDependency(from, to string, typ DependencyType, lagDays int) (Dependency, bool) {
	d, reason := g.TryAddDependency(from, to, typ, lagDays)
	return d, reason == ""
}

// TryAddDependency is AddDependency reporting why an edge was refused.
// The checks and the insert happen under one lock.
func (g *DependencyGraph) TryAddDependency(from, to string, typ DependencyType, lagDays int) (Dependency, RejectReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := Dependency{
		ID:         g.newID(),
		FromTaskID: from,
		ToTaskID:   to,
		Type:       typ,
		LagDays:    lagDays,
	}
	if reason := g.insert(d); reason != "" {
		return Dependency{}, reason
	}
	return d, ""
}

// RemoveDependency deletes the edge with the given ID.
func (g *DependencyGraph) RemoveDependency(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[id]
	if !ok {
		return false
	}

	g.edges = append(g.edges[:idx], g.edges[idx+1:]...)
	g.reindex()
	return true
}

// UpdateDependencyType changes the relation of an existing edge.
func (g *DependencyGraph) UpdateDependencyType(id string, typ DependencyType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[id]
	if !ok {
		return false
	}
	g.edges[idx].Type = typ
	return true
}

// UpdateDependencyLag changes the lag of an existing edge.
func (g *DependencyGraph) UpdateDependencyLag(id string, lagDays int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byID[id]
	if !ok {
		return false
	}
	g.edges[idx].LagDays = lagDays
	return true
}

func (g *DependencyGraph) reindex() {
	g.byID = make(map[string]int, len(g.edges))
	g.pairs = make(map[[2]string]int, len(g.edges))
	for i, d := range g.edges {
		g.byID[d.ID] = i
		g.pairs[[2]string{d.FromTaskID, d.ToTaskID}] = i
	}
}

// Get returns the edge with the given ID.
func (g *DependencyGraph) Get(id string) (Dependency, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.byID[id]
	if !ok {
		return Dependency{}, false
	}
	return g.edges[idx], true
}

// Dependencies returns a copy of all edges in insertion order.
func (g *DependencyGraph) Dependencies() []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return append([]Dependency(nil), g.edges...)
}

// Len returns the number of edges.
func (g *DependencyGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.edges)
}

// HasDependency reports whether an edge from -> to exists.
func (g *DependencyGraph) HasDependency(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.pairs[[2]string{from, to}]
	return ok
}

// WouldCreateCycle reports whether adding from -> to would close a cycle.
func (g *DependencyGraph) WouldCreateCycle(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.createsCycle(from, to)
}

func (g *DependencyGraph) createsCycle(from, to string) bool {
	return createsCycle(g.edges, from, to)
}

// createsCycle builds an adjacency map of edges plus the candidate from -> to,
// then walks depth-first from to. Reaching from means the candidate closes a cycle.
func createsCycle(edges []Dependency, from, to string) bool {
	adj := make(map[string][]string, len(edges)+1)
	for _, d := range edges {
		adj[d.FromTaskID] = append(adj[d.FromTaskID], d.ToTaskID)
	}
	adj[from] = append(adj[from], to)

	visited := make(map[string]bool)
	stack := []string{to}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == from {
			return true
		}
		if visited[node] {
			continue
		}
		visited[node] = true
		stack = append(stack, adj[node]...)
	}
	return false
}

// Successors returns the direct outgoing edges of taskID.
func (g *DependencyGraph) Successors(taskID string) []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Dependency
	for _, d := range g.edges {
		if d.FromTaskID == taskID {
			out = append(out, d)
		}
	}
	return out
}

// Predecessors returns the direct incoming edges of taskID.
func (g *DependencyGraph) Predecessors(taskID string) []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Dependency
	for _, d := range g.edges {
		if d.ToTaskID == taskID {
			out = append(out, d)
		}
	}
	return out
}

// TransitiveSuccessors returns every task reachable from taskID, sorted.
func (g *DependencyGraph) TransitiveSuccessors(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return reachable(g.edges, taskID, true)
}

// TransitivePredecessors returns every task that can reach taskID, sorted.
func (g *DependencyGraph) TransitivePredecessors(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return reachable(g.edges, taskID, false)
}

// reachable does a breadth-first walk over edges, forward or backward.
// The start node is not part of the result.
func reachable(edges []Dependency, start string, forward bool) []string {
	adj := make(map[string][]string)
	for _, d := range edges {
		if forward {
			adj[d.FromTaskID] = append(adj[d.FromTaskID], d.ToTaskID)
		} else {
			adj[d.ToTaskID] = append(adj[d.ToTaskID], d.FromTaskID)
		}
	}

	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adj[node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	return out
}

// Order validates the edge set with a topological sort over taskIDs and the
// edge endpoints, and returns the sorted IDs. Edges naming tasks outside
// taskIDs are reported as errors.
func (g *DependencyGraph) Order(taskIDs []string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	known := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		known[id] = true
	}

	hasPred := make(map[string]bool)
	var edges []toposort.Edge
	for _, d := range g.edges {
		if !known[d.FromTaskID] {
			return nil, fmt.Errorf("dependency %s references unknown task %q", d.ID, d.FromTaskID)
		}
		if !known[d.ToTaskID] {
			return nil, fmt.Errorf("dependency %s references unknown task %q", d.ID, d.ToTaskID)
		}
		edges = append(edges, toposort.Edge{d.FromTaskID, d.ToTaskID})
		hasPred[d.ToTaskID] = true
	}
	for _, id := range taskIDs {
		if !hasPred[id] {
			// Root task: edge from nil keeps it in the result
			edges = append(edges, toposort.Edge{nil, id})
			hasPred[id] = true
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(known) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for id := range known {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// DownstreamTasks returns every task reachable from taskID over deps.
// Pure reachability; dates play no part.
func DownstreamTasks(deps []Dependency, taskID string) []string {
	return reachable(deps, taskID, true)
}

// UpstreamTasks returns every task that can reach taskID over deps.
func UpstreamTasks(deps []Dependency, taskID string) []string {
	return reachable(deps, taskID, false)
}

// WouldCreateCycle reports whether adding from -> to to deps would close a cycle.
func WouldCreateCycle(deps []Dependency, from, to string) bool {
	return createsCycle(deps, from, to)
}
