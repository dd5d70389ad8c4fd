package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/events"
)

// Store is the host-side persistence the planner writes through.
// CommitTaskUpdates must write every task or none.
type Store interface {
	CommitTaskUpdates(ctx context.Context, tasks []Task) error
	SaveDependency(ctx context.Context, dep Dependency) error
	DeleteDependency(ctx context.Context, id string) error
}

// PlannerConfig wires optional collaborators into a Planner.
type PlannerConfig struct {
	Store           Store            // nil keeps changes in memory only
	Bus             *events.EventBus // nil disables notifications
	ScheduleOptions []Option         // Passed to every CPM pass
}

// Planner is the explicit handle a host builds once per project. It owns
// the mutable copies of tasks, phases and dependencies, and is the only
// writer to them. Every multi-task change is applied all or nothing.
type Planner struct {
	mu     sync.RWMutex
	tasks  []Task
	index  map[string]int
	phases []Phase
	graph  *DependencyGraph
	last   *Schedule // nil after any mutation
	locks  *TaskLockManager
	store  Store
	bus    *events.EventBus
	opts   []Option
}

// NewPlanner creates a planner over copies of tasks, deps and phases.
// Dependencies that duplicate a pair or would close a cycle are dropped
// with a warning.
func NewPlanner(tasks []Task, deps []Dependency, phases []Phase, cfg PlannerConfig) *Planner {
	p := &Planner{
		tasks:  cloneTasks(tasks),
		index:  make(map[string]int, len(tasks)),
		phases: append([]Phase(nil), phases...),
		graph:  NewDependencyGraph(deps...),
		locks:  NewTaskLockManager(),
		store:  cfg.Store,
		bus:    cfg.Bus,
		opts:   cfg.ScheduleOptions,
	}
	for i, t := range p.tasks {
		if _, dup := p.index[t.ID]; dup {
			log.Printf("WARNING: duplicate task ID %q ignored", t.ID)
			continue
		}
		p.index[t.ID] = i
	}
	if dropped := len(deps) - p.graph.Len(); dropped > 0 {
		log.Printf("WARNING: %d dependencies dropped (duplicate or cyclic)", dropped)
	}
	return p
}

// Tasks returns a copy of all tasks.
func (p *Planner) Tasks() []Task {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return cloneTasks(p.tasks)
}

// Task returns a copy of one task.
func (p *Planner) Task(id string) (Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, ok := p.index[id]
	if !ok {
		return Task{}, false
	}
	return cloneTask(p.tasks[idx]), true
}

// Phases returns a copy of all phases.
func (p *Planner) Phases() []Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]Phase(nil), p.phases...)
}

// Dependencies returns a copy of all edges.
func (p *Planner) Dependencies() []Dependency {
	return p.graph.Dependencies()
}

// Graph exposes the dependency graph for read queries.
func (p *Planner) Graph() *DependencyGraph {
	return p.graph
}

func (p *Planner) snapshot() ([]Task, []Dependency) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return cloneTasks(p.tasks), p.graph.Dependencies()
}

// Schedule runs a full CPM pass over the current state and caches it.
func (p *Planner) Schedule() *Schedule {
	tasks, deps := p.snapshot()
	sched := Calculate(tasks, deps, p.opts...)

	p.mu.Lock()
	p.last = sched
	p.mu.Unlock()

	if p.bus != nil {
		fp, err := Fingerprint(tasks, deps)
		if err != nil {
			log.Printf("WARNING: schedule fingerprint: %v", err)
		}
		p.bus.Publish(events.TopicSchedule, events.ScheduleComputedEvent{
			Fingerprint:  fp,
			TaskCount:    len(tasks),
			ProjectStart: sched.ProjectStart,
			ProjectEnd:   sched.ProjectEnd,
			CriticalPath: sched.CriticalPathOrdered(),
			Timestamp:    time.Now(),
		})
	}
	return sched
}

// LastSchedule returns the cached schedule, or nil if state changed since
// the last Schedule call.
func (p *Planner) LastSchedule() *Schedule {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.last
}

// DelayImpact simulates delaying taskID by days.
func (p *Planner) DelayImpact(taskID string, days int) DelayImpact {
	tasks, deps := p.snapshot()
	return CalculateDelayImpact(tasks, deps, taskID, days, p.opts...)
}

// Preview starts an interactive drag preview for taskID.
func (p *Planner) Preview(taskID string) (*PreviewSession, error) {
	tasks, deps := p.snapshot()
	return NewPreviewSession(tasks, deps, taskID)
}

// PlanMove computes the cascade of a task change without applying it.
func (p *Planner) PlanMove(change TaskChange) (CascadeResult, error) {
	tasks, deps := p.snapshot()
	return CascadeTaskChange(tasks, deps, change)
}

// MoveTask moves one task and commits the resulting cascade. When the end
// date does not move later nothing cascades, but the task itself still moves.
func (p *Planner) MoveTask(ctx context.Context, change TaskChange) (CascadeResult, error) {
	tasks, deps := p.snapshot()
	result, err := CascadeTaskChange(tasks, deps, change)
	if err != nil {
		return CascadeResult{}, err
	}

	changes := result.ChangedTasks
	if result.IsEmpty() {
		t, ok := p.Task(change.TaskID)
		if !ok {
			return CascadeResult{}, fmt.Errorf("%w: %s", ErrTaskNotFound, change.TaskID)
		}
		newStart := change.NewStart
		if newStart.IsZero() {
			newStart = t.StartDate
		}
		if calendar.SameDay(newStart, t.StartDate) && calendar.SameDay(change.NewEnd, t.EndDate) {
			return result, nil
		}
		changes = []CascadeChange{{
			TaskID:    t.ID,
			TaskName:  t.Name,
			OldStart:  t.StartDate,
			OldEnd:    t.EndDate,
			NewStart:  calendar.Day(newStart),
			NewEnd:    calendar.Day(change.NewEnd),
			DeltaDays: calendar.DaysBetween(t.EndDate, change.NewEnd),
		}}
	}

	if err := p.ApplyCascade(ctx, changes); err != nil {
		return CascadeResult{}, err
	}

	if p.bus != nil {
		p.bus.Publish(events.TopicTask, events.CascadeAppliedEvent{
			TriggerID:      change.TaskID,
			ChangedTaskIDs: changeIDs(changes),
			TotalDeltaDays: result.TotalDeltaDays,
			HasConflicts:   result.HasConflicts,
			Timestamp:      time.Now(),
		})
	}
	return result, nil
}

// ApplyCascade commits changes atomically. Every touched task is locked,
// its recorded old range is checked against the current one, the store
// commits all updates in one transaction, and only then are the in-memory
// copies replaced. ErrStaleCascade means another writer moved one of the
// tasks after the cascade was computed.
func (p *Planner) ApplyCascade(ctx context.Context, changes []CascadeChange) error {
	if len(changes) == 0 {
		return nil
	}

	held := p.locks.LockAll(changeIDs(changes))
	defer p.locks.UnlockAll(held)

	updated := make([]Task, 0, len(changes))
	p.mu.RLock()
	for _, c := range changes {
		idx, ok := p.index[c.TaskID]
		if !ok {
			p.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrTaskNotFound, c.TaskID)
		}
		cur := p.tasks[idx]
		if !calendar.SameDay(cur.StartDate, c.OldStart) || !calendar.SameDay(cur.EndDate, c.OldEnd) {
			p.mu.RUnlock()
			return fmt.Errorf("%w: task %s moved since the cascade was computed", ErrStaleCascade, c.TaskID)
		}
		t := cloneTask(cur)
		t.StartDate = c.NewStart
		t.EndDate = c.NewEnd
		t.DurationDays = calendar.DaysBetween(c.NewStart, c.NewEnd)
		updated = append(updated, t)
	}
	p.mu.RUnlock()

	if p.store != nil {
		if err := p.store.CommitTaskUpdates(ctx, updated); err != nil {
			return fmt.Errorf("committing %d task updates: %w", len(updated), err)
		}
	}

	p.mu.Lock()
	for _, t := range updated {
		p.tasks[p.index[t.ID]] = t
	}
	p.last = nil
	p.mu.Unlock()

	return nil
}

// ShiftPhases computes and commits a baton-pass phase cascade.
func (p *Planner) ShiftPhases(ctx context.Context, req PhaseShift) (PhaseCascadeResult, error) {
	tasks, _ := p.snapshot()
	result, err := CascadePhases(tasks, p.Phases(), req)
	if err != nil {
		return PhaseCascadeResult{}, err
	}
	if err := p.ApplyCascade(ctx, result.ChangedTasks); err != nil {
		return PhaseCascadeResult{}, err
	}

	if p.bus != nil && !result.IsEmpty() {
		p.bus.Publish(events.TopicTask, events.PhaseCascadeAppliedEvent{
			PhaseID:        req.PhaseID,
			Group:          result.Group,
			ChangedTaskIDs: changeIDs(result.ChangedTasks),
			Timestamp:      time.Now(),
		})
	}
	return result, nil
}

// AutoAdjust rewrites every task to its earliest start and finish and
// commits the moves. Only called on explicit request.
func (p *Planner) AutoAdjust(ctx context.Context) ([]CascadeChange, error) {
	tasks, deps := p.snapshot()
	sched := Calculate(tasks, deps, p.opts...)
	adjusted := AutoAdjustSchedule(tasks, sched)

	var changes []CascadeChange
	for i, t := range tasks {
		a := adjusted[i]
		if calendar.SameDay(a.StartDate, t.StartDate) && calendar.SameDay(a.EndDate, t.EndDate) {
			continue
		}
		changes = append(changes, CascadeChange{
			TaskID:    t.ID,
			TaskName:  t.Name,
			OldStart:  t.StartDate,
			OldEnd:    t.EndDate,
			NewStart:  a.StartDate,
			NewEnd:    a.EndDate,
			DeltaDays: calendar.DaysBetween(t.EndDate, a.EndDate),
		})
	}

	if err := p.ApplyCascade(ctx, changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// AddDependency inserts an edge and persists it. ok is false, with a nil
// error, for a duplicate pair or an edge that would close a cycle. Both
// endpoints must be tasks of this planner (ErrTaskNotFound otherwise).
func (p *Planner) AddDependency(ctx context.Context, from, to string, typ DependencyType, lagDays int) (Dependency, bool, error) {
	p.mu.RLock()
	for _, id := range []string{from, to} {
		if _, ok := p.index[id]; !ok {
			p.mu.RUnlock()
			return Dependency{}, false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
	}
	p.mu.RUnlock()

	dep, reason := p.graph.TryAddDependency(from, to, typ, lagDays)
	if reason != "" {
		p.publish(events.TopicDependency, events.DependencyRejectedEvent{
			FromTaskID: from,
			ToTaskID:   to,
			Reason:     string(reason),
			Timestamp:  time.Now(),
		})
		return Dependency{}, false, nil
	}

	if p.store != nil {
		if err := p.store.SaveDependency(ctx, dep); err != nil {
			p.graph.RemoveDependency(dep.ID)
			return Dependency{}, false, fmt.Errorf("saving dependency %s -> %s: %w", from, to, err)
		}
	}

	p.invalidate()
	p.publish(events.TopicDependency, events.DependencyAddedEvent{
		DependencyID: dep.ID,
		FromTaskID:   dep.FromTaskID,
		ToTaskID:     dep.ToTaskID,
		Type:         dep.Type.String(),
		LagDays:      dep.LagDays,
		Timestamp:    time.Now(),
	})
	return dep, true, nil
}

// RemoveDependency deletes an edge. Returns false for an unknown ID.
func (p *Planner) RemoveDependency(ctx context.Context, id string) (bool, error) {
	dep, ok := p.graph.Get(id)
	if !ok {
		return false, nil
	}

	if p.store != nil {
		if err := p.store.DeleteDependency(ctx, id); err != nil {
			return false, fmt.Errorf("deleting dependency %s: %w", id, err)
		}
	}
	if !p.graph.RemoveDependency(id) {
		log.Printf("WARNING: dependency %s (%s -> %s) vanished during removal", id, dep.FromTaskID, dep.ToTaskID)
		return false, nil
	}

	p.invalidate()
	p.publish(events.TopicDependency, events.DependencyRemovedEvent{DependencyID: id, Timestamp: time.Now()})
	return true, nil
}

// UpdateDependencyType changes an edge's relation. Returns false for an unknown ID.
func (p *Planner) UpdateDependencyType(ctx context.Context, id string, typ DependencyType) (bool, error) {
	return p.updateDependency(ctx, id, func(d *Dependency) { d.Type = typ })
}

// UpdateDependencyLag changes an edge's lag. Returns false for an unknown ID.
func (p *Planner) UpdateDependencyLag(ctx context.Context, id string, lagDays int) (bool, error) {
	return p.updateDependency(ctx, id, func(d *Dependency) { d.LagDays = lagDays })
}

func (p *Planner) updateDependency(ctx context.Context, id string, mutate func(*Dependency)) (bool, error) {
	dep, ok := p.graph.Get(id)
	if !ok {
		return false, nil
	}
	mutate(&dep)

	if p.store != nil {
		if err := p.store.SaveDependency(ctx, dep); err != nil {
			return false, fmt.Errorf("saving dependency %s: %w", id, err)
		}
	}
	if !p.graph.UpdateDependencyType(id, dep.Type) || !p.graph.UpdateDependencyLag(id, dep.LagDays) {
		return false, nil
	}

	p.invalidate()
	p.publish(events.TopicDependency, events.DependencyUpdatedEvent{
		DependencyID: id,
		Type:         dep.Type.String(),
		LagDays:      dep.LagDays,
		Timestamp:    time.Now(),
	})
	return true, nil
}

func (p *Planner) invalidate() {
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()
}

func (p *Planner) publish(topic string, e events.Event) {
	if p.bus != nil {
		p.bus.Publish(topic, e)
	}
}

func changeIDs(changes []CascadeChange) []string {
	ids := make([]string, len(changes))
	for i, c := range changes {
		ids[i] = c.TaskID
	}
	return ids
}

type fingerprintTask struct {
	ID       string
	Start    string
	End      string
	Duration int
}

type fingerprintDep struct {
	From string
	To   string
	Type int
	Lag  int
}

// Fingerprint hashes the scheduling inputs. Two calls with the same task
// ranges and edges return the same value.
func Fingerprint(tasks []Task, deps []Dependency) (uint64, error) {
	in := struct {
		Tasks []fingerprintTask
		Deps  []fingerprintDep
	}{
		Tasks: make([]fingerprintTask, len(tasks)),
		Deps:  make([]fingerprintDep, len(deps)),
	}
	for i, t := range tasks {
		in.Tasks[i] = fingerprintTask{
			ID:       t.ID,
			Start:    calendar.Format(t.StartDate),
			End:      calendar.Format(t.EndDate),
			Duration: t.Duration(),
		}
	}
	for i, d := range deps {
		in.Deps[i] = fingerprintDep{From: d.FromTaskID, To: d.ToTaskID, Type: int(d.Type), Lag: d.LagDays}
	}
	return hashstructure.Hash(in, hashstructure.FormatV2, nil)
}
