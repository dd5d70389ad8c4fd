package scheduler

import (
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// PreviewRecord is the previewed range of one task during an interactive move.
type PreviewRecord struct {
	TaskID        string
	OriginalStart time.Time
	OriginalEnd   time.Time
	PreviewStart  time.Time
	PreviewEnd    time.Time
	IsCascaded    bool // False for the dragged task itself
}

// PreviewSession precomputes the cascade arena for one dragged task so that
// Move can be called on every pointer event. It never mutates its inputs
// and holds no other state; an abandoned session is simply dropped.
type PreviewSession struct {
	base   *arena
	taskID string
	idx    int
}

// NewPreviewSession prepares a preview for dragging taskID.
func NewPreviewSession(tasks []Task, deps []Dependency, taskID string) (*PreviewSession, error) {
	a := newArena(tasks, deps)
	idx, err := a.lookup(taskID)
	if err != nil {
		return nil, err
	}
	return &PreviewSession{base: a, taskID: taskID, idx: idx}, nil
}

// Task returns the dragged task as it was when the session started.
func (p *PreviewSession) Task() Task {
	return p.base.tasks[p.idx]
}

// Move previews the dragged task at [newStart, newEnd]. The first record is
// the dragged task; cascaded successors follow in propagation order.
func (p *PreviewSession) Move(newStart, newEnd time.Time) ([]PreviewRecord, error) {
	a := p.base.scratch()
	orig := a.tasks[p.idx]

	moved := a.setRange(p.idx, newStart, newEnd)
	records := []PreviewRecord{{
		TaskID:        p.taskID,
		OriginalStart: orig.StartDate,
		OriginalEnd:   orig.EndDate,
		PreviewStart:  moved.NewStart,
		PreviewEnd:    moved.NewEnd,
	}}

	if calendar.DaysBetween(orig.EndDate, newEnd) <= 0 {
		return records, nil
	}

	var changes []CascadeChange
	visited := map[string]bool{p.taskID: true}
	if err := a.propagate(p.taskID, moved.NewEnd, visited, &changes); err != nil {
		return nil, err
	}
	for _, c := range changes {
		records = append(records, PreviewRecord{
			TaskID:        c.TaskID,
			OriginalStart: c.OldStart,
			OriginalEnd:   c.OldEnd,
			PreviewStart:  c.NewStart,
			PreviewEnd:    c.NewEnd,
			IsCascaded:    true,
		})
	}
	return records, nil
}

// MoveBy previews the dragged task shifted by days, keeping its duration.
func (p *PreviewSession) MoveBy(days int) ([]PreviewRecord, error) {
	orig := p.base.tasks[p.idx]
	return p.Move(calendar.AddDays(orig.StartDate, days), calendar.AddDays(orig.EndDate, days))
}

// PreviewTaskMove is the one-shot form of NewPreviewSession followed by Move.
func PreviewTaskMove(tasks []Task, deps []Dependency, taskID string, newStart, newEnd time.Time) ([]PreviewRecord, error) {
	p, err := NewPreviewSession(tasks, deps, taskID)
	if err != nil {
		return nil, err
	}
	return p.Move(newStart, newEnd)
}
