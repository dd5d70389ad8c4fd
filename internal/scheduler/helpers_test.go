package scheduler

import (
	"testing"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// base is a Monday; tests address dates as day offsets from it.
var base = calendar.Date(2025, time.March, 3)

func day(n int) time.Time {
	return calendar.AddDays(base, n)
}

func task(id string, start, end int) Task {
	return NewTask(id, "Task "+id, day(start), day(end))
}

func fs(from, to string, lag int) Dependency {
	return Dependency{ID: from + "->" + to, FromTaskID: from, ToTaskID: to, Type: FinishToStart, LagDays: lag}
}

func edge(from, to string, typ DependencyType, lag int) Dependency {
	return Dependency{ID: from + "->" + to, FromTaskID: from, ToTaskID: to, Type: typ, LagDays: lag}
}

func offset(t *testing.T, d time.Time) int {
	t.Helper()
	return calendar.DaysBetween(base, d)
}

func changeByID(changes []CascadeChange, id string) (CascadeChange, bool) {
	for _, c := range changes {
		if c.TaskID == id {
			return c, true
		}
	}
	return CascadeChange{}, false
}
