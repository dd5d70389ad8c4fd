package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/persistence"
	"github.com/aristath/siteplan/internal/scheduler"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// testEnv isolates HOME and the database for one test.
type testEnv struct {
	t      *testing.T
	dir    string
	dbPath string
	base   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &testEnv{
		t:      t,
		dir:    dir,
		dbPath: filepath.Join(dir, "data", "siteplan.db"),
		// A week ahead keeps every booking inside the conflict window
		base: calendar.AddDays(calendar.Day(time.Now()), 7),
	}
}

func (e *testEnv) day(n int) string {
	return calendar.Format(calendar.AddDays(e.base, n))
}

// run executes the CLI and returns stdout and the command error.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--config", filepath.Join(e.dir, "project.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("siteplan %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *testEnv) writeImport(name string, doc map[string]any) string {
	e.t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		e.t.Fatal(err)
	}
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		e.t.Fatal(err)
	}
	return path
}

// importHouse stores framing -> roofing (FS) and roofing -> paint (SS +2).
func (e *testEnv) importHouse() {
	e.t.Helper()
	path := e.writeImport("house.json", map[string]any{
		"project": map[string]any{"id": "house", "name": "Oak Street House"},
		"tasks": []map[string]any{
			{"id": "framing", "name": "Framing", "start": e.day(0), "end": e.day(4), "contractor": "Acme", "assignees": []string{"Dana"}},
			{"id": "roofing", "name": "Roofing", "start": e.day(5), "end": e.day(8)},
			{"id": "paint", "name": "Paint", "start": e.day(10), "end": e.day(12)},
		},
		"dependencies": []map[string]any{
			{"id": "d1", "from": "framing", "to": "roofing", "type": "FS"},
			{"id": "d2", "from": "roofing", "to": "paint", "type": "SS", "lag": 2},
		},
	})
	e.mustRun("import", path)
}

func (e *testEnv) load(projectID string) *persistence.ProjectData {
	e.t.Helper()
	store, err := persistence.NewSQLiteStore(context.Background(), e.dbPath)
	if err != nil {
		e.t.Fatal(err)
	}
	defer store.Close()

	data, err := store.LoadProject(context.Background(), projectID)
	if err != nil {
		e.t.Fatal(err)
	}
	return data
}

func findTask(t *testing.T, data *persistence.ProjectData, id string) scheduler.Task {
	t.Helper()
	for _, task := range data.Tasks {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not found", id)
	return scheduler.Task{}
}

func TestImportAndList(t *testing.T) {
	e := newTestEnv(t)

	path := e.writeImport("house.json", map[string]any{
		"project": map[string]any{"id": "house"},
		"tasks": []map[string]any{
			{"id": "a", "start": e.day(0), "end": e.day(1)},
			{"id": "b", "start": e.day(2), "end": e.day(3)},
		},
		"dependencies": []map[string]any{{"from": "a", "to": "b"}},
	})
	out := e.mustRun("import", path)
	if !strings.Contains(out, "Imported house: 0 phases, 2 tasks, 1 dependency") {
		t.Errorf("unexpected import output: %q", out)
	}

	out = e.mustRun("projects")
	if !strings.Contains(out, "house") {
		t.Errorf("expected house in project list, got %q", out)
	}

	data := e.load("house")
	if len(data.Dependencies) != 1 || data.Dependencies[0].ID == "" {
		t.Errorf("expected one dependency with a generated ID, got %+v", data.Dependencies)
	}
}

func TestImportRejectsCycle(t *testing.T) {
	e := newTestEnv(t)

	path := e.writeImport("bad.json", map[string]any{
		"project": map[string]any{"id": "bad"},
		"tasks": []map[string]any{
			{"id": "a", "start": e.day(0), "end": e.day(1)},
			{"id": "b", "start": e.day(2), "end": e.day(3)},
		},
		"dependencies": []map[string]any{
			{"from": "a", "to": "b"},
			{"from": "b", "to": "a"},
		},
	})
	if _, err := e.run("import", path); err == nil {
		t.Fatal("expected cyclic import to fail")
	}
}

func TestCascadePreviewThenApply(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	out := e.mustRun("-p", "house", "cascade", "framing", "--by", "2")
	if !strings.Contains(out, "2 tasks moved") {
		t.Errorf("expected two moved tasks, got %q", out)
	}
	if got := findTask(t, e.load("house"), "roofing"); calendar.Format(got.StartDate) != e.day(5) {
		t.Errorf("preview must not save, roofing starts %s", calendar.Format(got.StartDate))
	}

	e.mustRun("-p", "house", "cascade", "framing", "--by", "2", "--apply")
	data := e.load("house")
	framing := findTask(t, data, "framing")
	roofing := findTask(t, data, "roofing")
	paint := findTask(t, data, "paint")
	if calendar.Format(framing.EndDate) != e.day(6) {
		t.Errorf("framing end = %s, want %s", calendar.Format(framing.EndDate), e.day(6))
	}
	if calendar.Format(roofing.StartDate) != e.day(7) || calendar.Format(roofing.EndDate) != e.day(10) {
		t.Errorf("roofing = %s..%s, want %s..%s",
			calendar.Format(roofing.StartDate), calendar.Format(roofing.EndDate), e.day(7), e.day(10))
	}
	if calendar.Format(paint.StartDate) != e.day(10) {
		t.Errorf("start-to-start successor must not cascade, paint starts %s", calendar.Format(paint.StartDate))
	}
}

func TestCascadeEarlierMoveIsSaved(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	out := e.mustRun("-p", "house", "cascade", "paint", "--start", e.day(9), "--apply")
	if !strings.Contains(out, "nothing cascades") {
		t.Errorf("unexpected output: %q", out)
	}

	paint := findTask(t, e.load("house"), "paint")
	if calendar.Format(paint.StartDate) != e.day(9) || calendar.Format(paint.EndDate) != e.day(11) {
		t.Errorf("paint = %s..%s, want %s..%s",
			calendar.Format(paint.StartDate), calendar.Format(paint.EndDate), e.day(9), e.day(11))
	}
}

func TestCascadeFlagValidation(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	if _, err := e.run("-p", "house", "cascade", "framing"); err == nil {
		t.Error("expected an error without --by, --start or --end")
	}
	if _, err := e.run("-p", "house", "cascade", "framing", "--by", "1", "--end", e.day(9)); err == nil {
		t.Error("expected an error when mixing --by and --end")
	}
	if _, err := e.run("-p", "house", "cascade", "nope", "--by", "1"); err == nil {
		t.Error("expected an error for an unknown task")
	}
}

func TestScheduleAndImpact(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	out := e.mustRun("-p", "house", "schedule")
	if !strings.Contains(out, "Critical path:") {
		t.Errorf("expected a critical path line, got %q", out)
	}

	out = e.mustRun("-p", "house", "impact", "framing", "3")
	if !strings.Contains(out, "Delaying framing by 3 days") || !strings.Contains(out, "roofing") {
		t.Errorf("unexpected impact output: %q", out)
	}

	if _, err := e.run("schedule"); err == nil {
		t.Error("expected an error when no project is selected")
	}
}

func TestDependencyCommands(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	out, err := e.run("-p", "house", "deps", "add", "paint", "framing")
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("expected cycle rejection, got %v (%q)", err, out)
	}

	out = e.mustRun("-p", "house", "deps", "add", "framing", "paint", "--type", "FF", "--lag", "1")
	if !strings.Contains(out, "Added") {
		t.Errorf("unexpected add output: %q", out)
	}
	if got := len(e.load("house").Dependencies); got != 3 {
		t.Fatalf("expected 3 stored dependencies, got %d", got)
	}

	e.mustRun("-p", "house", "deps", "set", "d2", "--lag", "4")
	for _, d := range e.load("house").Dependencies {
		if d.ID == "d2" && d.LagDays != 4 {
			t.Errorf("d2 lag = %d, want 4", d.LagDays)
		}
	}

	e.mustRun("-p", "house", "deps", "rm", "d1")
	if _, err := e.run("-p", "house", "deps", "rm", "d1"); err == nil {
		t.Error("expected removing a missing dependency to fail")
	}

	for _, d := range e.load("house").Dependencies {
		if d.ID == "d1" {
			t.Error("d1 still stored after rm")
		}
	}

	out = e.mustRun("-p", "house", "deps", "list")
	if !strings.Contains(out, "d2") {
		t.Errorf("unexpected dependency list: %q", out)
	}
}

func TestConflictsAcrossProjects(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	garage := e.writeImport("garage.json", map[string]any{
		"project": map[string]any{"id": "garage"},
		"tasks": []map[string]any{
			{"id": "slab", "start": e.day(1), "end": e.day(2), "assignees": []string{"Dana"}},
		},
	})
	e.mustRun("import", garage)

	out := e.mustRun("-p", "house", "conflicts")
	if !strings.Contains(out, "Dana") || !strings.Contains(out, "2 conflicts") {
		t.Errorf("expected two days of Dana conflicts, got %q", out)
	}

	out = e.mustRun("conflicts", "--window", "0")
	if !strings.Contains(out, "No resource conflicts") {
		t.Errorf("expected a zero day window ending before the bookings, got %q", out)
	}
}

func TestCascadeConflictDiff(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	garage := e.writeImport("garage.json", map[string]any{
		"project": map[string]any{"id": "garage"},
		"tasks": []map[string]any{
			{"id": "slab", "start": e.day(7), "end": e.day(8), "assignees": []string{"Dana"}},
		},
	})
	e.mustRun("import", garage)

	// Framing moves to day 3..7 and meets Dana's slab on day 7
	for _, args := range [][]string{
		{"-p", "house", "cascade", "framing", "--by", "3"},
		{"-p", "house", "cascade", "framing", "--by", "3", "--apply"},
	} {
		out := e.mustRun(args...)
		if !strings.Contains(out, "1 conflict introduced, 0 conflicts resolved, 0 conflicts unchanged") {
			t.Errorf("siteplan %s: unexpected diff in %q", strings.Join(args, " "), out)
		}
	}

	// Once saved, the booking is part of the baseline
	out := e.mustRun("-p", "house", "conflicts")
	if !strings.Contains(out, "1 conflict,") {
		t.Errorf("expected the saved conflict to be reported, got %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	e := newTestEnv(t)
	e.importHouse()

	e.mustRun("-p", "house", "status", "roofing", "completed")
	roofing := findTask(t, e.load("house"), "roofing")
	if roofing.Status != scheduler.StatusCompleted || roofing.Progress != 1 {
		t.Errorf("roofing = %s %.2f, want completed 1.00", roofing.Status, roofing.Progress)
	}

	if _, err := e.run("-p", "house", "status", "roofing", "finished"); err == nil {
		t.Error("expected an invalid status to fail")
	}
}

func TestCalendarCommands(t *testing.T) {
	e := newTestEnv(t)

	// Mon 2025-03-03 to Sun 2025-03-09
	out := e.mustRun("workdays", "2025-03-03", "2025-03-09")
	if strings.TrimSpace(out) != "5 working days" {
		t.Errorf("workdays = %q", out)
	}

	out = e.mustRun("enddate", "2025-03-03", "6")
	if strings.TrimSpace(out) != "2025-03-10" {
		t.Errorf("enddate = %q", out)
	}

	if _, err := e.run("enddate", "2025-03-03", "six"); err == nil {
		t.Error("expected a non-numeric duration to fail")
	}
}
