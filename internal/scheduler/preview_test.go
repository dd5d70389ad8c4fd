package scheduler

import (
	"errors"
	"testing"
)

// TestPreviewSession_Move tests repeated moves against the same starting state.
func TestPreviewSession_Move(t *testing.T) {
	tasks := []Task{task("A", 0, 5), task("B", 6, 10), task("C", 11, 12)}
	deps := []Dependency{fs("A", "B", 0), fs("B", "C", 0)}

	session, err := NewPreviewSession(tasks, deps, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := session.MoveBy(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %+v", records)
	}
	if records[0].TaskID != "A" || records[0].IsCascaded {
		t.Errorf("first record should be the dragged task, got %+v", records[0])
	}
	if offset(t, records[0].PreviewStart) != 3 || offset(t, records[0].PreviewEnd) != 8 {
		t.Errorf("A previewed at %+v", records[0])
	}
	if !records[1].IsCascaded || offset(t, records[1].PreviewStart) != 9 {
		t.Errorf("B previewed at %+v", records[1])
	}
	if offset(t, records[2].PreviewStart) != 14 {
		t.Errorf("C previewed at %+v", records[2])
	}

	// A smaller move starts from the original dates, not the previous preview
	records, err = session.MoveBy(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %+v", records)
	}
	if offset(t, records[1].PreviewStart) != 7 || offset(t, records[1].OriginalStart) != 6 {
		t.Errorf("B previewed at %+v", records[1])
	}

	// Moving earlier previews the dragged task only
	records, err = session.MoveBy(-2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || offset(t, records[0].PreviewStart) != -2 {
		t.Errorf("expected only A at day -2, got %+v", records)
	}

	if offset(t, session.Task().StartDate) != 0 {
		t.Error("session task should keep its original start")
	}
	if offset(t, tasks[1].StartDate) != 6 {
		t.Error("input tasks were modified")
	}
}

// TestPreviewTaskMove verifies the one-shot form agrees with the cascade.
func TestPreviewTaskMove(t *testing.T) {
	tasks := []Task{task("A", 0, 5), task("B", 6, 10)}
	deps := []Dependency{fs("A", "B", 0)}

	records, err := PreviewTaskMove(tasks, deps, "A", day(0), day(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := CascadeTaskChange(tasks, deps, TaskChange{TaskID: "A", NewEnd: day(8)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != len(result.ChangedTasks) {
		t.Fatalf("preview has %d records, cascade has %d changes", len(records), len(result.ChangedTasks))
	}
	for i, r := range records {
		c := result.ChangedTasks[i]
		if r.TaskID != c.TaskID || !r.PreviewStart.Equal(c.NewStart) || !r.PreviewEnd.Equal(c.NewEnd) {
			t.Errorf("record %d = %+v, cascade = %+v", i, r, c)
		}
	}

	if _, err := PreviewTaskMove(tasks, deps, "ghost", day(0), day(1)); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}
