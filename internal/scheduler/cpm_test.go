package scheduler

import (
	"reflect"
	"testing"
)

// TestCalculate tests forward and backward passes for each dependency type.
func TestCalculate(t *testing.T) {
	type timing struct {
		es, ef, ls, lf int
		total, free    int
		critical       bool
	}

	tests := []struct {
		name       string
		tasks      []Task
		deps       []Dependency
		want       map[string]timing
		projectEnd int
	}{
		{
			name:  "tight finish to start chain",
			tasks: []Task{task("A", 0, 5), task("B", 5, 9)},
			deps:  []Dependency{fs("A", "B", 0)},
			want: map[string]timing{
				"A": {es: 0, ef: 5, ls: 0, lf: 5, critical: true},
				"B": {es: 5, ef: 9, ls: 5, lf: 9, critical: true},
			},
			projectEnd: 9,
		},
		{
			name:  "stored start later than predecessor finish",
			tasks: []Task{task("A", 0, 5), task("B", 6, 10)},
			deps:  []Dependency{fs("A", "B", 0)},
			want: map[string]timing{
				"A": {es: 0, ef: 5, ls: 1, lf: 6, total: 1, free: 1},
				"B": {es: 6, ef: 10, ls: 6, lf: 10, critical: true},
			},
			projectEnd: 10,
		},
		{
			name:  "lag pushes successor",
			tasks: []Task{task("A", 0, 5), task("B", 0, 3)},
			deps:  []Dependency{fs("A", "B", 2)},
			want: map[string]timing{
				"A": {es: 0, ef: 5, ls: 0, lf: 5, critical: true},
				"B": {es: 7, ef: 10, ls: 7, lf: 10, critical: true},
			},
			projectEnd: 10,
		},
		{
			name:  "parallel branches merge",
			tasks: []Task{task("A", 0, 10), task("B", 0, 3), task("C", 10, 12)},
			deps:  []Dependency{fs("A", "C", 0), fs("B", "C", 0)},
			want: map[string]timing{
				"A": {es: 0, ef: 10, ls: 0, lf: 10, critical: true},
				"B": {es: 0, ef: 3, ls: 7, lf: 10, total: 7, free: 7},
				"C": {es: 10, ef: 12, ls: 10, lf: 12, critical: true},
			},
			projectEnd: 12,
		},
		{
			name:  "start to start with lag",
			tasks: []Task{task("A", 0, 10), task("B", 0, 4)},
			deps:  []Dependency{edge("A", "B", StartToStart, 2)},
			want: map[string]timing{
				"A": {es: 0, ef: 10, ls: 0, lf: 10, critical: true},
				"B": {es: 2, ef: 6, ls: 6, lf: 10, total: 4, free: 4},
			},
			projectEnd: 10,
		},
		{
			name:  "finish to finish",
			tasks: []Task{task("A", 0, 10), task("B", 0, 3)},
			deps:  []Dependency{edge("A", "B", FinishToFinish, 0)},
			want: map[string]timing{
				"A": {es: 0, ef: 10, ls: 0, lf: 10, critical: true},
				"B": {es: 10, ef: 13, ls: 10, lf: 13, critical: true},
			},
			projectEnd: 13,
		},
		{
			name:  "start to finish",
			tasks: []Task{task("A", 0, 4), task("B", 0, 2)},
			deps:  []Dependency{edge("A", "B", StartToFinish, 1)},
			want: map[string]timing{
				"A": {es: 0, ef: 4, ls: 0, lf: 4, critical: true},
				"B": {es: 1, ef: 3, ls: 2, lf: 4, total: 1, free: 1},
			},
			projectEnd: 4,
		},
		{
			name:  "dangling edge ignored",
			tasks: []Task{task("A", 0, 3)},
			deps:  []Dependency{fs("A", "ghost", 0), fs("ghost", "A", 5)},
			want: map[string]timing{
				"A": {es: 0, ef: 3, ls: 0, lf: 3, critical: true},
			},
			projectEnd: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := Calculate(tt.tasks, tt.deps)

			if got := offset(t, sched.ProjectEnd); got != tt.projectEnd {
				t.Errorf("project end = day %d, want day %d", got, tt.projectEnd)
			}

			for id, w := range tt.want {
				r, ok := sched.Result(id)
				if !ok {
					t.Fatalf("no result for %s", id)
				}
				got := timing{
					es:       offset(t, r.EarliestStart),
					ef:       offset(t, r.EarliestFinish),
					ls:       offset(t, r.LatestStart),
					lf:       offset(t, r.LatestFinish),
					total:    r.TotalFloat,
					free:     r.FreeFloat,
					critical: r.IsCritical,
				}
				if got != w {
					t.Errorf("%s: got %+v, want %+v", id, got, w)
				}
			}
		})
	}
}

// TestCalculate_TimingRules checks timing rules over a mixed network.
func TestCalculate_TimingRules(t *testing.T) {
	tasks := []Task{
		task("site", 0, 3),
		task("footing", 4, 9),
		task("slab", 10, 13),
		task("framing", 14, 24),
		task("roof", 20, 26),
		task("electrical", 25, 30),
		task("plumbing", 25, 29),
		task("drywall", 31, 36),
		task("paint", 37, 40),
		task("landscape", 5, 8),
	}
	deps := []Dependency{
		fs("site", "footing", 0),
		fs("footing", "slab", 1),
		fs("slab", "framing", 0),
		edge("framing", "roof", StartToStart, 5),
		edge("framing", "electrical", FinishToStart, 0),
		edge("framing", "plumbing", FinishToStart, 1),
		edge("roof", "drywall", FinishToFinish, 2),
		fs("electrical", "drywall", 0),
		fs("plumbing", "drywall", 0),
		fs("drywall", "paint", 0),
		edge("site", "landscape", StartToFinish, 3),
	}

	sched := Calculate(tasks, deps)
	if len(sched.Results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(sched.Results))
	}

	for id, r := range sched.Results {
		if r.EarliestStart.After(r.EarliestFinish) {
			t.Errorf("%s: ES after EF", id)
		}
		if r.LatestStart.After(r.LatestFinish) {
			t.Errorf("%s: LS after LF", id)
		}
		if r.TotalFloat < 0 {
			t.Errorf("%s: negative total float %d", id, r.TotalFloat)
		}
		if r.FreeFloat < 0 {
			t.Errorf("%s: negative free float %d", id, r.FreeFloat)
		}
		if r.IsCritical != (r.TotalFloat == 0) {
			t.Errorf("%s: critical=%v with total float %d", id, r.IsCritical, r.TotalFloat)
		}
		if r.EarliestFinish.After(sched.ProjectEnd) || r.LatestFinish.After(sched.ProjectEnd) {
			t.Errorf("%s finishes after project end", id)
		}
	}

	// Every edge constraint holds in the forward pass
	for _, d := range deps {
		p, s := sched.Results[d.FromTaskID], sched.Results[d.ToTaskID]
		var bound int
		switch d.Type {
		case FinishToStart, FinishToFinish:
			bound = offset(t, p.EarliestFinish) + d.LagDays
		default:
			bound = offset(t, p.EarliestStart) + d.LagDays
		}
		if offset(t, s.EarliestStart) < bound {
			t.Errorf("%s violates %s lag %d", d.ToTaskID, d.Type, d.LagDays)
		}
	}

	// Critical path is exactly the zero-float set
	var zero []string
	for _, id := range sched.CriticalPath() {
		if sched.Results[id].TotalFloat != 0 {
			t.Errorf("critical path contains %s with float", id)
		}
		zero = append(zero, id)
	}
	count := 0
	for _, r := range sched.Results {
		if r.TotalFloat == 0 {
			count++
		}
	}
	if count != len(zero) {
		t.Errorf("critical path has %d tasks, %d have zero float", len(zero), count)
	}
}

// TestCalculate_Determinism verifies repeated runs give identical schedules.
func TestCalculate_Determinism(t *testing.T) {
	tasks := []Task{task("C", 2, 4), task("A", 0, 2), task("B", 0, 3), task("D", 5, 6)}
	deps := []Dependency{fs("A", "C", 0), fs("B", "D", 1)}

	first := Calculate(tasks, deps)
	for i := 0; i < 10; i++ {
		again := Calculate(tasks, deps)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", i)
		}
	}

	// Ties on start date break by ID
	if want := []string{"A", "B", "C", "D"}; !reflect.DeepEqual(first.Order, want) {
		t.Errorf("order = %v, want %v", first.Order, want)
	}
}

// TestCalculate_ProjectStart tests the explicit project start option.
func TestCalculate_ProjectStart(t *testing.T) {
	tasks := []Task{task("A", 2, 5)}

	sched := Calculate(tasks, nil, WithProjectStart(day(0)))
	if got := offset(t, sched.ProjectStart); got != 0 {
		t.Errorf("project start = day %d, want day 0", got)
	}
	if got := offset(t, sched.Results["A"].EarliestStart); got != 2 {
		t.Errorf("ES = day %d, want day 2", got)
	}

	// A project start after the stored start clamps the task forward
	sched = Calculate(tasks, nil, WithProjectStart(day(4)))
	if got := offset(t, sched.Results["A"].EarliestStart); got != 4 {
		t.Errorf("ES = day %d, want day 4", got)
	}
	if got := offset(t, sched.ProjectEnd); got != 7 {
		t.Errorf("project end = day %d, want day 7", got)
	}
}

// TestCalculate_Empty verifies an empty input yields an empty schedule.
func TestCalculate_Empty(t *testing.T) {
	sched := Calculate(nil, nil)
	if len(sched.Results) != 0 || len(sched.CriticalPath()) != 0 {
		t.Errorf("expected empty schedule, got %+v", sched)
	}
	if sched.DurationDays() != 0 {
		t.Errorf("expected zero duration, got %d", sched.DurationDays())
	}
}

// TestCriticalPathOrdered verifies critical tasks come back by earliest start.
func TestCriticalPathOrdered(t *testing.T) {
	tasks := []Task{task("C", 10, 12), task("B", 0, 3), task("A", 0, 10)}
	deps := []Dependency{fs("A", "C", 0), fs("B", "C", 0)}

	sched := Calculate(tasks, deps)
	if got, want := sched.CriticalPathOrdered(), []string{"A", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("CriticalPathOrdered() = %v, want %v", got, want)
	}
	if got := sched.DurationDays(); got != 12 {
		t.Errorf("DurationDays() = %d, want 12", got)
	}
}

// TestAutoAdjustSchedule verifies tasks are rewritten to their earliest dates.
func TestAutoAdjustSchedule(t *testing.T) {
	tasks := []Task{task("A", 0, 5), task("B", 2, 4)}
	deps := []Dependency{fs("A", "B", 1)}

	adjusted := AutoAdjustSchedule(tasks, Calculate(tasks, deps))

	if offset(t, adjusted[1].StartDate) != 6 || offset(t, adjusted[1].EndDate) != 8 {
		t.Errorf("B adjusted to %v..%v, want day 6..8", adjusted[1].StartDate, adjusted[1].EndDate)
	}
	if offset(t, adjusted[0].StartDate) != 0 {
		t.Errorf("A should keep its start")
	}
	if offset(t, tasks[1].StartDate) != 2 {
		t.Error("input tasks were modified")
	}
}
