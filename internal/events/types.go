package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicSchedule   = "schedule"
	TopicTask       = "task"
	TopicDependency = "dependency"
)

// Event type constants
const (
	EventTypeScheduleComputed    = "schedule.computed"
	EventTypeCascadeApplied      = "task.cascade_applied"
	EventTypePhaseCascadeApplied = "task.phase_cascade_applied"
	EventTypeDependencyAdded     = "dependency.added"
	EventTypeDependencyRejected  = "dependency.rejected"
	EventTypeDependencyRemoved   = "dependency.removed"
	EventTypeDependencyUpdated   = "dependency.updated"
)

// ScheduleComputedEvent is published after every full CPM pass.
// Fingerprint identifies the task/dependency inputs; equal fingerprints
// mean an identical schedule.
type ScheduleComputedEvent struct {
	Fingerprint  uint64
	TaskCount    int
	ProjectStart time.Time
	ProjectEnd   time.Time
	CriticalPath []string
	Timestamp    time.Time
}

func (e ScheduleComputedEvent) EventType() string { return EventTypeScheduleComputed }
func (e ScheduleComputedEvent) TaskID() string    { return "" }

// CascadeAppliedEvent is published when a task move and its cascade are committed.
type CascadeAppliedEvent struct {
	TriggerID      string
	ChangedTaskIDs []string
	TotalDeltaDays int
	HasConflicts   bool
	Timestamp      time.Time
}

func (e CascadeAppliedEvent) EventType() string { return EventTypeCascadeApplied }
func (e CascadeAppliedEvent) TaskID() string    { return e.TriggerID }

// PhaseCascadeAppliedEvent is published when a baton pass is committed.
type PhaseCascadeAppliedEvent struct {
	PhaseID        string
	Group          string
	ChangedTaskIDs []string
	Timestamp      time.Time
}

func (e PhaseCascadeAppliedEvent) EventType() string { return EventTypePhaseCascadeApplied }
func (e PhaseCascadeAppliedEvent) TaskID() string    { return "" }

// DependencyAddedEvent is published when an edge is accepted.
type DependencyAddedEvent struct {
	DependencyID string
	FromTaskID   string
	ToTaskID     string
	Type         string
	LagDays      int
	Timestamp    time.Time
}

func (e DependencyAddedEvent) EventType() string { return EventTypeDependencyAdded }
func (e DependencyAddedEvent) TaskID() string    { return e.ToTaskID }

// DependencyRejectedEvent is published when an edge is refused as a
// duplicate or because it would close a cycle.
type DependencyRejectedEvent struct {
	FromTaskID string
	ToTaskID   string
	Reason     string // "duplicate" or "cycle"
	Timestamp  time.Time
}

func (e DependencyRejectedEvent) EventType() string { return EventTypeDependencyRejected }
func (e DependencyRejectedEvent) TaskID() string    { return e.ToTaskID }

// DependencyRemovedEvent is published when an edge is deleted.
type DependencyRemovedEvent struct {
	DependencyID string
	Timestamp    time.Time
}

func (e DependencyRemovedEvent) EventType() string { return EventTypeDependencyRemoved }
func (e DependencyRemovedEvent) TaskID() string    { return "" }

// DependencyUpdatedEvent is published when an edge's type or lag changes.
type DependencyUpdatedEvent struct {
	DependencyID string
	Type         string
	LagDays      int
	Timestamp    time.Time
}

func (e DependencyUpdatedEvent) EventType() string { return EventTypeDependencyUpdated }
func (e DependencyUpdatedEvent) TaskID() string    { return "" }
