package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// Sentinel errors
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrPhaseNotFound = errors.New("phase not found")
	ErrStaleCascade  = errors.New("cascade is stale")
)

// TaskStatus represents the progress state of a task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusDelayed    TaskStatus = "delayed"
	StatusOnHold     TaskStatus = "on_hold"
)

// IsValid returns true if the status is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusDelayed, StatusOnHold:
		return true
	default:
		return false
	}
}

// Task is a scheduled unit of site work. The host owns tasks; the engine
// only reads them and returns rewritten copies.
type Task struct {
	ID             string
	Name           string
	StartDate      time.Time
	EndDate        time.Time
	DurationDays   int     // EndDate - StartDate in calendar days
	Progress       float64 // 0..1
	Status         TaskStatus
	PhaseID        string   // Empty when the task belongs to no phase
	ContractorName string   // Empty when no contractor is assigned
	Assignees      []string // Named workers
}

// NewTask builds a task spanning [start, end] with DurationDays filled in.
func NewTask(id, name string, start, end time.Time) Task {
	start, end = calendar.Day(start), calendar.Day(end)
	return Task{
		ID:           id,
		Name:         name,
		StartDate:    start,
		EndDate:      end,
		DurationDays: calendar.DaysBetween(start, end),
		Status:       StatusNotStarted,
	}
}

// Duration returns the task span in calendar days. DurationDays wins when
// set; otherwise it is derived from the dates.
func (t Task) Duration() int {
	if t.DurationDays != 0 {
		return t.DurationDays
	}
	if d := calendar.DaysBetween(t.StartDate, t.EndDate); d > 0 {
		return d
	}
	return 0
}

// Shift returns a copy of t moved by days calendar days.
func (t Task) Shift(days int) Task {
	cp := cloneTask(t)
	cp.StartDate = calendar.AddDays(t.StartDate, days)
	cp.EndDate = calendar.AddDays(t.EndDate, days)
	return cp
}

// Workers returns the contractor name and assignees, de-duplicated, blanks dropped.
func (t Task) Workers() []string {
	seen := make(map[string]bool, len(t.Assignees)+1)
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	add(t.ContractorName)
	for _, a := range t.Assignees {
		add(a)
	}
	return out
}

// DependencyType is the relation between a predecessor and a successor.
// The set is closed; see constraints in cpm.go.
type DependencyType int

const (
	FinishToStart DependencyType = iota
	StartToStart
	FinishToFinish
	StartToFinish
)

var dependencyTypeCodes = [...]string{
	FinishToStart:  "FS",
	StartToStart:   "SS",
	FinishToFinish: "FF",
	StartToFinish:  "SF",
}

// String returns the short code (FS, SS, FF, SF).
func (t DependencyType) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("DependencyType(%d)", int(t))
	}
	return dependencyTypeCodes[t]
}

// IsValid returns true if the type is one of the four known relations.
func (t DependencyType) IsValid() bool {
	return t >= FinishToStart && t <= StartToFinish
}

// ParseDependencyType accepts the short code or the long name, case-insensitively.
func ParseDependencyType(s string) (DependencyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fs", "finish_to_start", "finishtostart", "":
		return FinishToStart, nil
	case "ss", "start_to_start", "starttostart":
		return StartToStart, nil
	case "ff", "finish_to_finish", "finishtofinish":
		return FinishToFinish, nil
	case "sf", "start_to_finish", "starttofinish":
		return StartToFinish, nil
	}
	return FinishToStart, fmt.Errorf("unknown dependency type %q", s)
}

// Dependency is a directed labeled edge: FromTaskID must precede ToTaskID.
type Dependency struct {
	ID         string
	FromTaskID string
	ToTaskID   string
	Type       DependencyType
	LagDays    int
}

// Phase groups tasks. Its date range is derived from its member tasks.
type Phase struct {
	ID              string
	Name            string
	Order           int    // Baton-pass sequence within DependencyGroup
	DependencyGroup string // Phases only cascade to phases sharing this tag
	Type            string
}

func cloneTask(t Task) Task {
	cp := t
	if t.Assignees != nil {
		cp.Assignees = append([]string(nil), t.Assignees...)
	}
	return cp
}

func cloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = cloneTask(t)
	}
	return out
}
