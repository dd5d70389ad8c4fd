package scheduler

import (
	"sort"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// ScheduleResult holds the CPM timing of a single task.
type ScheduleResult struct {
	TaskID         string
	EarliestStart  time.Time
	EarliestFinish time.Time
	LatestStart    time.Time
	LatestFinish   time.Time
	TotalFloat     int // Days the task can slip without moving the project end
	FreeFloat      int // Days the task can slip without moving any successor
	IsCritical     bool
}

// Schedule is the result of one full CPM pass. It is never patched; every
// request recomputes it from the task and dependency lists.
type Schedule struct {
	Results      map[string]ScheduleResult
	Order        []string // Topological order used for the passes
	ProjectStart time.Time
	ProjectEnd   time.Time
}

// Option customizes a CPM pass.
type Option func(*options)

type options struct {
	projectStart time.Time
}

// WithProjectStart sets an explicit project start. No task is scheduled to
// start before it.
func WithProjectStart(start time.Time) Option {
	return func(o *options) {
		o.projectStart = calendar.Day(start)
	}
}

// The four dependency types are a closed set, so their constraints are a
// fixed table indexed by DependencyType rather than an interface.
//
// earliestStartFrom returns the earliest start a successor may take given
// its predecessor's earliest start/finish and the edge lag.
var earliestStartFrom = [...]func(predES, predEF, lag int) int{
	FinishToStart:  func(_, ef, lag int) int { return ef + lag },
	StartToStart:   func(es, _, lag int) int { return es + lag },
	FinishToFinish: func(_, ef, lag int) int { return ef + lag },
	StartToFinish:  func(es, _, lag int) int { return es + lag },
}

// latestFinishFrom mirrors earliestStartFrom: it returns the latest finish a
// predecessor may take given its successor's latest start.
var latestFinishFrom = [...]func(succLS, predDur, lag int) int{
	FinishToStart:  func(ls, _, lag int) int { return ls - lag },
	StartToStart:   func(ls, dur, lag int) int { return ls - lag + dur },
	FinishToFinish: func(ls, _, lag int) int { return ls - lag },
	StartToFinish:  func(ls, dur, lag int) int { return ls - lag + dur },
}

func typeIndex(t DependencyType) DependencyType {
	if !t.IsValid() {
		return FinishToStart
	}
	return t
}

// cpmNode is the working state of one task during a pass. Dates are whole
// day offsets from the pass epoch.
type cpmNode struct {
	task   Task
	start  int // Stored start, as an offset
	dur    int
	es, ef int
	ls, lf int
	preds  []Dependency
	succs  []Dependency
}

// Calculate runs the Critical Path Method over tasks and deps.
// Edges whose endpoints are not both in tasks are ignored.
func Calculate(tasks []Task, deps []Dependency, opts ...Option) *Schedule {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sched := &Schedule{
		Results: make(map[string]ScheduleResult, len(tasks)),
	}
	if len(tasks) == 0 {
		sched.ProjectStart = o.projectStart
		sched.ProjectEnd = o.projectStart
		return sched
	}

	// Epoch: explicit project start, else the earliest stored start
	epoch := o.projectStart
	if epoch.IsZero() {
		for i, t := range tasks {
			if d := calendar.Day(t.StartDate); i == 0 || d.Before(epoch) {
				epoch = d
			}
		}
	}
	sched.ProjectStart = epoch

	nodes := make(map[string]*cpmNode, len(tasks))
	for _, t := range tasks {
		if _, dup := nodes[t.ID]; dup {
			continue
		}
		start := calendar.DaysBetween(epoch, t.StartDate)
		if !o.projectStart.IsZero() && start < 0 {
			start = 0
		}
		nodes[t.ID] = &cpmNode{task: t, start: start, dur: t.Duration()}
	}

	// Step 1: restrict edges to known endpoints
	for _, d := range deps {
		from, okFrom := nodes[d.FromTaskID]
		to, okTo := nodes[d.ToTaskID]
		if !okFrom || !okTo || d.FromTaskID == d.ToTaskID {
			continue
		}
		from.succs = append(from.succs, d)
		to.preds = append(to.preds, d)
	}

	// Step 2: topological order
	order := topoOrder(nodes)
	sched.Order = order

	// Step 3: forward pass
	for _, id := range order {
		n := nodes[id]
		es := n.start
		for _, d := range n.preds {
			p := nodes[d.FromTaskID]
			if bound := earliestStartFrom[typeIndex(d.Type)](p.es, p.ef, d.LagDays); bound > es {
				es = bound
			}
		}
		n.es = es
		n.ef = es + n.dur
	}

	// Step 4: project end
	projectEnd := 0
	for i, id := range order {
		if ef := nodes[id].ef; i == 0 || ef > projectEnd {
			projectEnd = ef
		}
	}
	sched.ProjectEnd = calendar.AddDays(epoch, projectEnd)

	// Step 5: backward pass
	for i := len(order) - 1; i >= 0; i-- {
		n := nodes[order[i]]
		lf := projectEnd
		for _, d := range n.succs {
			s := nodes[d.ToTaskID]
			if bound := latestFinishFrom[typeIndex(d.Type)](s.ls, n.dur, d.LagDays); bound < lf {
				lf = bound
			}
		}
		n.lf = lf
		n.ls = lf - n.dur
	}

	// Steps 6-7: float and criticality
	for _, id := range order {
		n := nodes[id]
		total := n.ls - n.es

		free := total
		if len(n.succs) > 0 {
			for i, d := range n.succs {
				slack := nodes[d.ToTaskID].es - n.ef - d.LagDays
				if i == 0 || slack < free {
					free = slack
				}
			}
			if free < 0 {
				free = 0
			}
		}

		sched.Results[id] = ScheduleResult{
			TaskID:         id,
			EarliestStart:  calendar.AddDays(epoch, n.es),
			EarliestFinish: calendar.AddDays(epoch, n.ef),
			LatestStart:    calendar.AddDays(epoch, n.ls),
			LatestFinish:   calendar.AddDays(epoch, n.lf),
			TotalFloat:     total,
			FreeFloat:      free,
			IsCritical:     total == 0,
		}
	}

	return sched
}

// topoOrder runs Kahn's algorithm. Among ready tasks the earliest stored
// start goes first, then the lower ID. Tasks left over (only possible with a
// cycle) are appended in the same tie-break order.
func topoOrder(nodes map[string]*cpmNode) []string {
	inDegree := make(map[string]int, len(nodes))
	var ready []string
	for id, n := range nodes {
		inDegree[id] = len(n.preds)
		if len(n.preds) == 0 {
			ready = append(ready, id)
		}
	}

	less := func(a, b string) bool {
		na, nb := nodes[a], nodes[b]
		if na.start != nb.start {
			return na.start < nb.start
		}
		return a < b
	}

	order := make([]string, 0, len(nodes))
	placed := make(map[string]bool, len(nodes))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if less(ready[i], ready[best]) {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)

		order = append(order, id)
		placed[id] = true

		for _, d := range nodes[id].succs {
			inDegree[d.ToTaskID]--
			if inDegree[d.ToTaskID] == 0 {
				ready = append(ready, d.ToTaskID)
			}
		}
	}

	if len(order) < len(nodes) {
		var rest []string
		for id := range nodes {
			if !placed[id] {
				rest = append(rest, id)
			}
		}
		sort.Slice(rest, func(i, j int) bool { return less(rest[i], rest[j]) })
		order = append(order, rest...)
	}

	return order
}

// Result returns the timing of a single task.
func (s *Schedule) Result(taskID string) (ScheduleResult, bool) {
	r, ok := s.Results[taskID]
	return r, ok
}

// CriticalPath returns the IDs of all tasks with zero total float, sorted by ID.
func (s *Schedule) CriticalPath() []string {
	var ids []string
	for id, r := range s.Results {
		if r.IsCritical {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CriticalPathOrdered returns the critical tasks sorted by earliest start,
// ties kept in topological order.
func (s *Schedule) CriticalPathOrdered() []string {
	var ids []string
	for _, id := range s.Order {
		if s.Results[id].IsCritical {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Results[ids[i]].EarliestStart.Before(s.Results[ids[j]].EarliestStart)
	})
	return ids
}

// DurationDays returns the project span in calendar days.
func (s *Schedule) DurationDays() int {
	return calendar.DaysBetween(s.ProjectStart, s.ProjectEnd)
}

// AutoAdjustSchedule returns copies of tasks with start and end rewritten to
// their earliest start and finish. Tasks missing from sched are copied
// unchanged. The engine never calls this on its own.
func AutoAdjustSchedule(tasks []Task, sched *Schedule) []Task {
	out := cloneTasks(tasks)
	for i := range out {
		r, ok := sched.Results[out[i].ID]
		if !ok {
			continue
		}
		out[i].StartDate = r.EarliestStart
		out[i].EndDate = r.EarliestFinish
		out[i].DurationDays = calendar.DaysBetween(r.EarliestStart, r.EarliestFinish)
	}
	return out
}
