package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// CascadeChange records one task moved by a cascade.
type CascadeChange struct {
	TaskID    string
	TaskName  string
	OldStart  time.Time
	OldEnd    time.Time
	NewStart  time.Time
	NewEnd    time.Time
	DeltaDays int // Shift of the end date
}

// CascadeConflict is a pair of changed tasks that share a worker and overlap
// after the cascade.
type CascadeConflict struct {
	Worker string
	TaskA  string
	TaskB  string
}

// CascadeResult is the outcome of a task-level cascade. The triggering task
// is the first entry of ChangedTasks when anything changed.
type CascadeResult struct {
	ChangedTasks   []CascadeChange
	TotalDeltaDays int
	HasConflicts   bool // Advisory; never blocks the cascade
	Conflicts      []CascadeConflict
}

// IsEmpty reports whether the cascade moved nothing.
func (r CascadeResult) IsEmpty() bool {
	return len(r.ChangedTasks) == 0
}

// TaskChange is a requested new range for one task. A zero NewStart keeps
// the current start.
type TaskChange struct {
	TaskID   string
	NewStart time.Time
	NewEnd   time.Time
}

// arena holds scratch copies of tasks indexed by ID, plus the outgoing
// FinishToStart edges that take part in automatic cascading.
type arena struct {
	tasks   []Task
	index   map[string]int
	fsSuccs map[string][]Dependency
}

func newArena(tasks []Task, deps []Dependency) *arena {
	a := &arena{
		tasks:   cloneTasks(tasks),
		index:   make(map[string]int, len(tasks)),
		fsSuccs: make(map[string][]Dependency),
	}
	for i, t := range a.tasks {
		if _, dup := a.index[t.ID]; !dup {
			a.index[t.ID] = i
		}
	}
	for _, d := range deps {
		// SS, FF and SF edges feed the CPM pass only
		if d.Type != FinishToStart {
			continue
		}
		a.fsSuccs[d.FromTaskID] = append(a.fsSuccs[d.FromTaskID], d)
	}
	return a
}

// scratch returns a copy of the arena whose task slice can be mutated.
// Edges and the index are shared; they are never written after newArena.
func (a *arena) scratch() *arena {
	return &arena{
		tasks:   append([]Task(nil), a.tasks...),
		index:   a.index,
		fsSuccs: a.fsSuccs,
	}
}

func (a *arena) lookup(id string) (int, error) {
	idx, ok := a.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return idx, nil
}

// setRange moves task idx to [start, end] and returns the change record.
func (a *arena) setRange(idx int, start, end time.Time) CascadeChange {
	t := &a.tasks[idx]
	change := CascadeChange{
		TaskID:    t.ID,
		TaskName:  t.Name,
		OldStart:  t.StartDate,
		OldEnd:    t.EndDate,
		NewStart:  calendar.Day(start),
		NewEnd:    calendar.Day(end),
		DeltaDays: calendar.DaysBetween(t.EndDate, end),
	}
	t.StartDate = change.NewStart
	t.EndDate = change.NewEnd
	t.DurationDays = calendar.DaysBetween(change.NewStart, change.NewEnd)
	return change
}

// propagate pushes the FinishToStart successors of fromID so that each
// starts at least one day after newEnd plus the edge lag, recursing into
// every successor it moves. visited is shared across the whole cascade so
// a successor reached along two paths is shifted only once.
func (a *arena) propagate(fromID string, newEnd time.Time, visited map[string]bool, changes *[]CascadeChange) error {
	for _, d := range a.fsSuccs[fromID] {
		if visited[d.ToTaskID] {
			continue
		}
		idx, err := a.lookup(d.ToTaskID)
		if err != nil {
			return err
		}

		succ := a.tasks[idx]
		minStart := calendar.AddDays(newEnd, d.LagDays+1)
		if !succ.StartDate.Before(minStart) {
			continue
		}

		shift := calendar.DaysBetween(succ.StartDate, minStart)
		change := a.setRange(idx, minStart, calendar.AddDays(succ.EndDate, shift))
		*changes = append(*changes, change)
		visited[d.ToTaskID] = true

		if err := a.propagate(d.ToTaskID, change.NewEnd, visited, changes); err != nil {
			return err
		}
	}
	return nil
}

// CascadeTaskChange applies change to a scratch copy of tasks and pushes
// FinishToStart successors out as needed. Cascades only propagate delays:
// when the end date does not move later the result is empty. The inputs are
// never modified.
func CascadeTaskChange(tasks []Task, deps []Dependency, change TaskChange) (CascadeResult, error) {
	a := newArena(tasks, deps)

	idx, err := a.lookup(change.TaskID)
	if err != nil {
		return CascadeResult{}, err
	}

	trigger := a.tasks[idx]
	delta := calendar.DaysBetween(trigger.EndDate, change.NewEnd)
	if delta <= 0 {
		return CascadeResult{}, nil
	}

	newStart := change.NewStart
	if newStart.IsZero() {
		newStart = trigger.StartDate
	}

	changes := []CascadeChange{a.setRange(idx, newStart, change.NewEnd)}
	visited := map[string]bool{change.TaskID: true}
	if err := a.propagate(change.TaskID, change.NewEnd, visited, &changes); err != nil {
		return CascadeResult{}, err
	}

	result := CascadeResult{
		ChangedTasks:   changes,
		TotalDeltaDays: delta,
	}
	result.Conflicts = findChangeConflicts(a, changes)
	result.HasConflicts = len(result.Conflicts) > 0
	return result, nil
}

// findChangeConflicts checks every pair of changed tasks that share a worker
// for overlapping new ranges.
func findChangeConflicts(a *arena, changes []CascadeChange) []CascadeConflict {
	var conflicts []CascadeConflict
	for i := 0; i < len(changes); i++ {
		ti := a.tasks[a.index[changes[i].TaskID]]
		for j := i + 1; j < len(changes); j++ {
			tj := a.tasks[a.index[changes[j].TaskID]]
			if !rangesOverlap(ti.StartDate, ti.EndDate, tj.StartDate, tj.EndDate) {
				continue
			}
			for _, w := range sharedWorkers(ti, tj) {
				conflicts = append(conflicts, CascadeConflict{Worker: w, TaskA: ti.ID, TaskB: tj.ID})
			}
		}
	}
	return conflicts
}

func rangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

func sharedWorkers(a, b Task) []string {
	inA := make(map[string]bool)
	for _, w := range a.Workers() {
		inA[w] = true
	}
	var shared []string
	for _, w := range b.Workers() {
		if inA[w] {
			shared = append(shared, w)
		}
	}
	sort.Strings(shared)
	return shared
}

// ApplyChanges returns a copy of tasks with every change applied.
func ApplyChanges(tasks []Task, changes []CascadeChange) []Task {
	byID := make(map[string]CascadeChange, len(changes))
	for _, c := range changes {
		byID[c.TaskID] = c
	}
	out := cloneTasks(tasks)
	for i := range out {
		if c, ok := byID[out[i].ID]; ok {
			out[i].StartDate = c.NewStart
			out[i].EndDate = c.NewEnd
			out[i].DurationDays = calendar.DaysBetween(c.NewStart, c.NewEnd)
		}
	}
	return out
}
