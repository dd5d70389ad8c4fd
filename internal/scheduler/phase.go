package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// PhaseRange is the derived date range of a phase: the earliest member
// start and the latest member end.
type PhaseRange struct {
	PhaseID   string
	Start     time.Time
	End       time.Time
	TaskCount int
}

// PhaseRanges derives the range of every phase that has member tasks.
func PhaseRanges(tasks []Task) map[string]PhaseRange {
	ranges := make(map[string]PhaseRange)
	for _, t := range tasks {
		if t.PhaseID == "" {
			continue
		}
		r, ok := ranges[t.PhaseID]
		if !ok {
			ranges[t.PhaseID] = PhaseRange{PhaseID: t.PhaseID, Start: t.StartDate, End: t.EndDate, TaskCount: 1}
			continue
		}
		if t.StartDate.Before(r.Start) {
			r.Start = t.StartDate
		}
		if t.EndDate.After(r.End) {
			r.End = t.EndDate
		}
		r.TaskCount++
		ranges[t.PhaseID] = r
	}
	return ranges
}

// PhaseShift asks for the phases of PhaseID's dependency group to move by
// Days, starting at From.
type PhaseShift struct {
	PhaseID string
	From    time.Time
	Days    int
}

// PhaseShiftReason tells why a phase moved.
type PhaseShiftReason string

const (
	ReasonRequested PhaseShiftReason = "requested" // Member tasks on/after the target date
	ReasonOverlap   PhaseShiftReason = "overlap"   // Pushed clear of the previous phase
)

// PhaseShiftRecord is one phase movement during a baton pass.
type PhaseShiftRecord struct {
	PhaseID   string
	ShiftDays int
	Reason    PhaseShiftReason
}

// PhaseCascadeResult is the outcome of a phase-level cascade.
type PhaseCascadeResult struct {
	Group         string
	ChangedTasks  []CascadeChange // Net change per task, in input order
	ShiftedPhases []PhaseShiftRecord
}

// IsEmpty reports whether nothing moved.
func (r PhaseCascadeResult) IsEmpty() bool {
	return len(r.ChangedTasks) == 0
}

// CascadePhases runs the baton pass. Within the dependency group of the
// requested phase, every phase whose range ends on or after From has its
// member tasks starting on or after From shifted by Days. Phases of the
// group are then walked in ascending Order, and whenever one ends on or
// after the next one starts, the next phase is pushed out by the overlap
// plus one day. Phases of other groups and tasks without a phase are never
// touched. Days <= 0 yields an empty result.
func CascadePhases(tasks []Task, phases []Phase, req PhaseShift) (PhaseCascadeResult, error) {
	var trigger *Phase
	for i := range phases {
		if phases[i].ID == req.PhaseID {
			trigger = &phases[i]
			break
		}
	}
	if trigger == nil {
		return PhaseCascadeResult{}, fmt.Errorf("%w: %s", ErrPhaseNotFound, req.PhaseID)
	}

	result := PhaseCascadeResult{Group: trigger.DependencyGroup}
	if req.Days <= 0 {
		return result, nil
	}

	var group []Phase
	for _, p := range phases {
		if p.DependencyGroup == trigger.DependencyGroup {
			group = append(group, p)
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].Order != group[j].Order {
			return group[i].Order < group[j].Order
		}
		return group[i].ID < group[j].ID
	})

	a := newArena(tasks, nil)
	from := calendar.Day(req.From)

	members := make(map[string][]int)
	for i, t := range a.tasks {
		if t.PhaseID != "" {
			members[t.PhaseID] = append(members[t.PhaseID], i)
		}
	}

	shiftPhase := func(phaseID string, days int, onlyFrom bool) bool {
		moved := false
		for _, idx := range members[phaseID] {
			t := &a.tasks[idx]
			if onlyFrom && t.StartDate.Before(from) {
				continue
			}
			*t = t.Shift(days)
			moved = true
		}
		return moved
	}

	// Requested shift
	ranges := PhaseRanges(a.tasks)
	for _, p := range group {
		r, ok := ranges[p.ID]
		if !ok || r.End.Before(from) {
			continue
		}
		if shiftPhase(p.ID, req.Days, true) {
			result.ShiftedPhases = append(result.ShiftedPhases, PhaseShiftRecord{
				PhaseID:   p.ID,
				ShiftDays: req.Days,
				Reason:    ReasonRequested,
			})
		}
	}

	// Overlap resolution down the group, in order
	var prev *PhaseRange
	for _, p := range group {
		ranges = PhaseRanges(a.tasks)
		r, ok := ranges[p.ID]
		if !ok {
			continue
		}
		if prev != nil && !prev.End.Before(r.Start) {
			push := calendar.DaysBetween(r.Start, prev.End) + 1
			shiftPhase(p.ID, push, false)
			result.ShiftedPhases = append(result.ShiftedPhases, PhaseShiftRecord{
				PhaseID:   p.ID,
				ShiftDays: push,
				Reason:    ReasonOverlap,
			})
			r = PhaseRanges(a.tasks)[p.ID]
		}
		prev = &r
	}

	for i, t := range tasks {
		moved := a.tasks[i]
		if moved.StartDate.Equal(t.StartDate) && moved.EndDate.Equal(t.EndDate) {
			continue
		}
		result.ChangedTasks = append(result.ChangedTasks, CascadeChange{
			TaskID:    t.ID,
			TaskName:  t.Name,
			OldStart:  t.StartDate,
			OldEnd:    t.EndDate,
			NewStart:  moved.StartDate,
			NewEnd:    moved.EndDate,
			DeltaDays: calendar.DaysBetween(t.EndDate, moved.EndDate),
		})
	}

	return result, nil
}
