package report

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/conflict"
	"github.com/aristath/siteplan/internal/scheduler"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var base = calendar.Date(2025, time.March, 3)

func day(n int) time.Time {
	return calendar.AddDays(base, n)
}

func TestDays(t *testing.T) {
	assert.Equal(t, "1 day", Days(1))
	assert.Equal(t, "3 days", Days(3))
	assert.Equal(t, "0 days", Days(0))
	assert.Equal(t, "+1 day", SignedDays(1))
	assert.Equal(t, "-2 days", SignedDays(-2))
	assert.Equal(t, "+0 days", SignedDays(0))
}

func TestSchedule(t *testing.T) {
	tasks := []scheduler.Task{
		scheduler.NewTask("framing", "Framing", day(0), day(4)),
		scheduler.NewTask("roofing", "Roofing", day(4), day(8)),
	}
	deps := []scheduler.Dependency{{ID: "framing->roofing", FromTaskID: "framing", ToTaskID: "roofing"}}
	sched := scheduler.Calculate(tasks, deps)

	var buf bytes.Buffer
	require.NoError(t, Schedule(&buf, tasks, sched))
	out := buf.String()

	assert.Contains(t, out, "Framing")
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "Critical path: framing -> roofing")
	assert.Contains(t, out, "Project: 2025-03-03 .. 2025-03-11 (8 days)")

	buf.Reset()
	require.NoError(t, Schedule(&buf, nil, scheduler.Calculate(nil, nil)))
	assert.Contains(t, buf.String(), "No tasks to schedule.")
}

func TestImpact(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Impact(&buf, scheduler.DelayImpact{TaskID: "paint", DelayDays: 2}))
	assert.Contains(t, buf.String(), "Delaying paint by 2 days moves nothing else.")

	buf.Reset()
	require.NoError(t, Impact(&buf, scheduler.DelayImpact{
		TaskID:    "framing",
		DelayDays: 3,
		Impacted: []scheduler.ImpactedTask{
			{TaskID: "roofing", TaskName: "Roofing", OldStart: day(5), NewStart: day(8), ShiftDays: 3},
		},
		OldProjectEnd:   day(8),
		NewProjectEnd:   day(11),
		ProjectEndDelta: 3,
	}))
	out := buf.String()
	assert.Contains(t, out, "affects 1 task.")
	assert.Contains(t, out, "2025-03-11")
	assert.Contains(t, out, "Project end: 2025-03-11 -> 2025-03-14 (+3 days)")
}

func TestCascade(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Cascade(&buf, scheduler.CascadeResult{}))
	assert.Contains(t, buf.String(), "Nothing to cascade.")

	buf.Reset()
	require.NoError(t, Cascade(&buf, scheduler.CascadeResult{
		ChangedTasks: []scheduler.CascadeChange{
			{TaskID: "framing", OldStart: day(0), OldEnd: day(4), NewStart: day(0), NewEnd: day(7), DeltaDays: 3},
			{TaskID: "roofing", OldStart: day(5), OldEnd: day(8), NewStart: day(8), NewEnd: day(11), DeltaDays: 3},
		},
		TotalDeltaDays: 3,
		HasConflicts:   true,
		Conflicts:      []scheduler.CascadeConflict{{Worker: "Bob", TaskA: "roofing", TaskB: "paint"}},
	}))
	out := buf.String()
	assert.Contains(t, out, "2 tasks moved, +3 days in total.")
	assert.Contains(t, out, "2025-03-08 .. 2025-03-11")
	assert.Contains(t, out, "warning: Bob is booked on both roofing and paint")
}

func TestPhaseCascade(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PhaseCascade(&buf, scheduler.PhaseCascadeResult{}))
	assert.Contains(t, buf.String(), "No phases moved.")

	buf.Reset()
	require.NoError(t, PhaseCascade(&buf, scheduler.PhaseCascadeResult{
		Group: "main",
		ChangedTasks: []scheduler.CascadeChange{
			{TaskID: "pour", OldStart: day(0), OldEnd: day(2), NewStart: day(5), NewEnd: day(7), DeltaDays: 5},
		},
		ShiftedPhases: []scheduler.PhaseShiftRecord{
			{PhaseID: "foundation", ShiftDays: 5, Reason: scheduler.ReasonRequested},
		},
	}))
	out := buf.String()
	assert.Contains(t, out, "Group main: 1 phase shifted.")
	assert.Contains(t, out, "foundation")
	assert.Contains(t, out, "requested")
}

func TestPreview(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Preview(&buf, []scheduler.PreviewRecord{
		{TaskID: "framing", OriginalStart: day(0), OriginalEnd: day(4), PreviewStart: day(1), PreviewEnd: day(5)},
		{TaskID: "roofing", OriginalStart: day(5), OriginalEnd: day(8), PreviewStart: day(6), PreviewEnd: day(9), IsCascaded: true},
	}))
	out := buf.String()
	assert.Contains(t, out, "moved")
	assert.Contains(t, out, "cascaded")
	assert.Contains(t, out, "2025-03-09 .. 2025-03-12")
}

func TestConflicts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Conflicts(&buf, nil))
	assert.Contains(t, buf.String(), "No resource conflicts.")

	records := []conflict.Record{{
		Date:   day(1),
		Worker: "Bob",
		Tasks: []conflict.TaskRef{
			{TaskID: "a", ProjectID: "p1"},
			{TaskID: "b", ProjectID: "p2"},
		},
		Severity: conflict.SeverityHigh,
	}}

	buf.Reset()
	require.NoError(t, Conflicts(&buf, records))
	out := buf.String()
	assert.Contains(t, out, "p1/a and p2/b")
	assert.Contains(t, out, "1 conflict, worst is high.")

	buf.Reset()
	require.NoError(t, ConflictDiff(&buf, conflict.DiffResult{Introduced: records}))
	assert.Contains(t, buf.String(), "1 conflict introduced, 0 conflicts resolved, 0 conflicts unchanged.")
	assert.Contains(t, buf.String(), "Bob")
}

func TestDependencies(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dependencies(&buf, nil))
	assert.Contains(t, buf.String(), "No dependencies.")

	buf.Reset()
	require.NoError(t, Dependencies(&buf, []scheduler.Dependency{
		{ID: "b->c", FromTaskID: "b", ToTaskID: "c", Type: scheduler.StartToStart, LagDays: 1},
		{ID: "a->b", FromTaskID: "a", ToTaskID: "b"},
	}))
	out := buf.String()
	assert.Contains(t, out, "SS")
	assert.Contains(t, out, "1 day")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a->b")), bytes.Index(buf.Bytes(), []byte("b->c")))
}
