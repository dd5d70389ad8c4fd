package scheduler

import (
	"reflect"
	"strings"
	"testing"
)

// TestAddDependency tests edge insertion with duplicate and cycle rejection.
func TestAddDependency(t *testing.T) {
	tests := []struct {
		name     string
		seed     []Dependency
		from, to string
		wantOK   bool
	}{
		{
			name:   "first edge",
			from:   "A",
			to:     "B",
			wantOK: true,
		},
		{
			name:   "extends chain",
			seed:   []Dependency{fs("A", "B", 0)},
			from:   "B",
			to:     "C",
			wantOK: true,
		},
		{
			name:   "duplicate pair",
			seed:   []Dependency{fs("A", "B", 0)},
			from:   "A",
			to:     "B",
			wantOK: false,
		},
		{
			name:   "direct cycle",
			seed:   []Dependency{fs("A", "B", 0)},
			from:   "B",
			to:     "A",
			wantOK: false,
		},
		{
			name:   "transitive cycle",
			seed:   []Dependency{fs("Y", "Z", 0), fs("Z", "X", 0)},
			from:   "X",
			to:     "Y",
			wantOK: false,
		},
		{
			name:   "self loop",
			from:   "A",
			to:     "A",
			wantOK: false,
		},
		{
			name:   "diamond is not a cycle",
			seed:   []Dependency{fs("A", "B", 0), fs("A", "C", 0), fs("B", "D", 0)},
			from:   "C",
			to:     "D",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDependencyGraph(tt.seed...)
			before := g.Dependencies()

			d, ok := g.AddDependency(tt.from, tt.to, FinishToStart, 0)
			if ok != tt.wantOK {
				t.Fatalf("AddDependency(%s, %s) ok = %v, want %v", tt.from, tt.to, ok, tt.wantOK)
			}

			if !ok {
				if !reflect.DeepEqual(g.Dependencies(), before) {
					t.Errorf("rejected edge changed the graph: %v", g.Dependencies())
				}
				return
			}
			if d.ID == "" {
				t.Error("expected generated dependency ID")
			}
			if !g.HasDependency(tt.from, tt.to) {
				t.Errorf("expected edge %s -> %s to exist", tt.from, tt.to)
			}
			if g.Len() != len(tt.seed)+1 {
				t.Errorf("expected %d edges, got %d", len(tt.seed)+1, g.Len())
			}
		})
	}
}

// TestNewDependencyGraph_SkipsBadSeeds verifies cyclic and duplicate seeds are dropped.
func TestNewDependencyGraph_SkipsBadSeeds(t *testing.T) {
	g := NewDependencyGraph(
		fs("A", "B", 0),
		Dependency{ID: "dup", FromTaskID: "A", ToTaskID: "B"},
		fs("B", "A", 0),
		fs("B", "C", 0),
	)

	if g.Len() != 2 {
		t.Fatalf("expected 2 edges, got %d: %v", g.Len(), g.Dependencies())
	}
	if _, ok := g.Get("dup"); ok {
		t.Error("duplicate pair should have been skipped")
	}
}

// TestRemoveAndUpdateDependency verifies edits by ID.
func TestRemoveAndUpdateDependency(t *testing.T) {
	g := NewDependencyGraph(fs("A", "B", 0), fs("B", "C", 0))

	if !g.UpdateDependencyType("A->B", StartToStart) {
		t.Fatal("expected type update to succeed")
	}
	if !g.UpdateDependencyLag("A->B", 4) {
		t.Fatal("expected lag update to succeed")
	}
	d, _ := g.Get("A->B")
	if d.Type != StartToStart || d.LagDays != 4 {
		t.Errorf("unexpected edge after update: %+v", d)
	}

	if g.UpdateDependencyLag("missing", 1) || g.UpdateDependencyType("missing", FinishToFinish) {
		t.Error("updates of unknown IDs should fail")
	}

	if !g.RemoveDependency("A->B") {
		t.Fatal("expected removal to succeed")
	}
	if g.RemoveDependency("A->B") {
		t.Error("second removal should fail")
	}
	if g.HasDependency("A", "B") {
		t.Error("edge still present after removal")
	}

	// Index stays consistent after removal
	if d, ok := g.Get("B->C"); !ok || d.FromTaskID != "B" {
		t.Errorf("lookup after removal returned %+v, %v", d, ok)
	}

	// The pair is free again, and the reverse direction no longer cycles
	if _, ok := g.AddDependency("B", "A", FinishToStart, 0); !ok {
		t.Error("expected B -> A to be accepted after removing A -> B")
	}
}

// TestTryAddDependency verifies the rejection reason for each refusal.
func TestTryAddDependency(t *testing.T) {
	g := NewDependencyGraph(fs("A", "B", 0), fs("B", "C", 0))

	tests := []struct {
		from, to string
		want     RejectReason
	}{
		{"A", "B", RejectDuplicate},
		{"C", "A", RejectCycle},
		{"C", "C", RejectCycle},
		{"A", "C", ""},
	}
	for _, tt := range tests {
		d, reason := g.TryAddDependency(tt.from, tt.to, FinishToStart, 0)
		if reason != tt.want {
			t.Errorf("TryAddDependency(%s, %s) reason = %q, want %q", tt.from, tt.to, reason, tt.want)
		}
		if tt.want == "" && d.ID == "" {
			t.Errorf("accepted edge %s -> %s has no ID", tt.from, tt.to)
		}
	}
}

// TestTransitiveQueries verifies reachability in both directions.
func TestTransitiveQueries(t *testing.T) {
	deps := []Dependency{fs("A", "B", 0), fs("B", "C", 0), fs("A", "D", 0), fs("X", "C", 0)}
	g := NewDependencyGraph(deps...)

	if got, want := g.TransitiveSuccessors("A"), []string{"B", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TransitiveSuccessors(A) = %v, want %v", got, want)
	}
	if got, want := g.TransitivePredecessors("C"), []string{"A", "B", "X"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TransitivePredecessors(C) = %v, want %v", got, want)
	}
	if got := g.TransitiveSuccessors("C"); len(got) != 0 {
		t.Errorf("leaf should have no successors, got %v", got)
	}
	if got, want := DownstreamTasks(deps, "B"), []string{"C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("DownstreamTasks(B) = %v, want %v", got, want)
	}
	if got, want := UpstreamTasks(deps, "B"), []string{"A"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UpstreamTasks(B) = %v, want %v", got, want)
	}

	if n := len(g.Successors("A")); n != 2 {
		t.Errorf("expected 2 direct successors of A, got %d", n)
	}
	if n := len(g.Predecessors("C")); n != 2 {
		t.Errorf("expected 2 direct predecessors of C, got %d", n)
	}
}

// TestWouldCreateCycle tests the stateless cycle probe.
func TestWouldCreateCycle(t *testing.T) {
	deps := []Dependency{fs("A", "B", 0), fs("B", "C", 0)}

	if !WouldCreateCycle(deps, "C", "A") {
		t.Error("C -> A should close a cycle")
	}
	if WouldCreateCycle(deps, "A", "C") {
		t.Error("A -> C is a shortcut, not a cycle")
	}
	if !NewDependencyGraph(deps...).WouldCreateCycle("C", "B") {
		t.Error("C -> B should close a cycle")
	}
}

// TestOrder tests topological ordering of the graph.
func TestOrder(t *testing.T) {
	g := NewDependencyGraph(fs("A", "B", 0), fs("B", "C", 0), fs("A", "C", 0))

	order, err := g.Order([]string{"C", "B", "A", "D"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 tasks, got %v", order)
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, d := range g.Dependencies() {
		if pos[d.FromTaskID] > pos[d.ToTaskID] {
			t.Errorf("%s placed after %s in %v", d.FromTaskID, d.ToTaskID, order)
		}
	}

	_, err = g.Order([]string{"A", "B"})
	if err == nil || !strings.Contains(err.Error(), "unknown task") {
		t.Errorf("expected unknown task error, got %v", err)
	}
}
