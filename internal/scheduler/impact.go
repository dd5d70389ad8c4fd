package scheduler

import (
	"sort"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// ImpactedTask is a task whose earliest start moves because of a delay.
type ImpactedTask struct {
	TaskID    string
	TaskName  string
	OldStart  time.Time
	NewStart  time.Time
	ShiftDays int
}

// DelayImpact describes what delaying one task would do to the rest of the schedule.
type DelayImpact struct {
	TaskID          string
	DelayDays       int
	Impacted        []ImpactedTask // Other tasks only, sorted by new start
	OldProjectEnd   time.Time
	NewProjectEnd   time.Time
	ProjectEndDelta int
}

// IsEmpty reports whether the delay moves nothing.
func (d DelayImpact) IsEmpty() bool {
	return len(d.Impacted) == 0 && d.ProjectEndDelta == 0
}

// CalculateDelayImpact shifts taskID by delayDays on a cloned task list, runs
// the full CPM pass before and after, and diffs each task's earliest start.
// A zero delay or an unknown task yields an empty impact.
func CalculateDelayImpact(tasks []Task, deps []Dependency, taskID string, delayDays int, opts ...Option) DelayImpact {
	impact := DelayImpact{TaskID: taskID, DelayDays: delayDays}

	idx := -1
	for i, t := range tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 || delayDays == 0 {
		return impact
	}

	delayed := cloneTasks(tasks)
	delayed[idx] = delayed[idx].Shift(delayDays)

	before := Calculate(tasks, deps, opts...)
	after := Calculate(delayed, deps, opts...)

	impact.OldProjectEnd = before.ProjectEnd
	impact.NewProjectEnd = after.ProjectEnd
	impact.ProjectEndDelta = calendar.DaysBetween(before.ProjectEnd, after.ProjectEnd)

	for _, t := range tasks {
		if t.ID == taskID {
			continue
		}
		b, okB := before.Results[t.ID]
		a, okA := after.Results[t.ID]
		if !okB || !okA {
			continue
		}
		if shift := calendar.DaysBetween(b.EarliestStart, a.EarliestStart); shift != 0 {
			impact.Impacted = append(impact.Impacted, ImpactedTask{
				TaskID:    t.ID,
				TaskName:  t.Name,
				OldStart:  b.EarliestStart,
				NewStart:  a.EarliestStart,
				ShiftDays: shift,
			})
		}
	}

	sort.SliceStable(impact.Impacted, func(i, j int) bool {
		return impact.Impacted[i].NewStart.Before(impact.Impacted[j].NewStart)
	})

	return impact
}
