package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize/english"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/conflict"
	"github.com/aristath/siteplan/internal/scheduler"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func render(w io.Writer, t *table.Table) error {
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func names(tasks []scheduler.Task) map[string]string {
	m := make(map[string]string, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t.Name
	}
	return m
}

// Schedule prints the CPM table in topological order followed by the
// critical path and the project span.
func Schedule(w io.Writer, tasks []scheduler.Task, s *scheduler.Schedule) error {
	if s == nil || len(s.Results) == 0 {
		_, err := fmt.Fprintln(w, Dim("No tasks to schedule."))
		return err
	}

	byID := names(tasks)
	t := newTable("Task", "Name", "ES", "EF", "LS", "LF", "Total float", "Free float", "")
	for _, id := range s.Order {
		r, ok := s.Result(id)
		if !ok {
			continue
		}
		mark := ""
		if r.IsCritical {
			mark = BoldRed("critical")
		}
		t.Row(
			id,
			byID[id],
			calendar.Format(r.EarliestStart),
			calendar.Format(r.EarliestFinish),
			calendar.Format(r.LatestStart),
			calendar.Format(r.LatestFinish),
			strconv.Itoa(r.TotalFloat),
			strconv.Itoa(r.FreeFloat),
			mark,
		)
	}
	if err := render(w, t); err != nil {
		return err
	}

	path := s.CriticalPathOrdered()
	if len(path) == 0 {
		path = []string{Dim("none")}
	}
	_, err := fmt.Fprintf(w, "%s %s\n%s %s .. %s (%s)\n",
		Bold("Critical path:"), joinPath(path),
		Bold("Project:"), calendar.Format(s.ProjectStart), calendar.Format(s.ProjectEnd), Days(s.DurationDays()))
	return err
}

func joinPath(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}

// Impact prints the tasks a delay would move and the change in project end.
func Impact(w io.Writer, d scheduler.DelayImpact) error {
	if d.IsEmpty() {
		_, err := fmt.Fprintf(w, "Delaying %s by %s moves nothing else.\n", Bold(d.TaskID), Days(d.DelayDays))
		return err
	}

	if _, err := fmt.Fprintf(w, "Delaying %s by %s affects %s.\n",
		Bold(d.TaskID), Days(d.DelayDays), english.Plural(len(d.Impacted), "task", "")); err != nil {
		return err
	}

	if len(d.Impacted) > 0 {
		t := newTable("Task", "Name", "Earliest start", "New earliest start", "Shift")
		for _, it := range d.Impacted {
			t.Row(it.TaskID, it.TaskName, calendar.Format(it.OldStart), calendar.Format(it.NewStart), Shift(it.ShiftDays))
		}
		if err := render(w, t); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s %s -> %s (%s)\n", Bold("Project end:"),
		calendar.Format(d.OldProjectEnd), calendar.Format(d.NewProjectEnd), Shift(d.ProjectEndDelta))
	return err
}

func changeTable(changes []scheduler.CascadeChange) *table.Table {
	t := newTable("Task", "Name", "Was", "Now", "Shift")
	for _, c := range changes {
		t.Row(c.TaskID, c.TaskName,
			calendar.Format(c.OldStart)+" .. "+calendar.Format(c.OldEnd),
			calendar.Format(c.NewStart)+" .. "+calendar.Format(c.NewEnd),
			Shift(c.DeltaDays))
	}
	return t
}

// Cascade prints the tasks a move shifted and any worker overlaps it created.
func Cascade(w io.Writer, r scheduler.CascadeResult) error {
	if r.IsEmpty() {
		_, err := fmt.Fprintln(w, Dim("Nothing to cascade."))
		return err
	}

	if _, err := fmt.Fprintf(w, "%s moved, %s in total.\n",
		english.Plural(len(r.ChangedTasks), "task", ""), SignedDays(r.TotalDeltaDays)); err != nil {
		return err
	}
	if err := render(w, changeTable(r.ChangedTasks)); err != nil {
		return err
	}

	for _, c := range r.Conflicts {
		if _, err := fmt.Fprintf(w, "%s %s is booked on both %s and %s\n",
			BoldYellow("warning:"), c.Worker, c.TaskA, c.TaskB); err != nil {
			return err
		}
	}
	return nil
}

// PhaseCascade prints the phases a baton pass moved and their tasks.
func PhaseCascade(w io.Writer, r scheduler.PhaseCascadeResult) error {
	if r.IsEmpty() {
		_, err := fmt.Fprintln(w, Dim("No phases moved."))
		return err
	}

	if _, err := fmt.Fprintf(w, "Group %s: %s shifted.\n",
		Bold(r.Group), english.Plural(len(r.ShiftedPhases), "phase", "")); err != nil {
		return err
	}

	pt := newTable("Phase", "Shift", "Reason")
	for _, p := range r.ShiftedPhases {
		pt.Row(p.PhaseID, Shift(p.ShiftDays), string(p.Reason))
	}
	if err := render(w, pt); err != nil {
		return err
	}
	return render(w, changeTable(r.ChangedTasks))
}

// Preview prints a drag preview.
func Preview(w io.Writer, records []scheduler.PreviewRecord) error {
	t := newTable("Task", "Was", "Preview", "")
	for _, r := range records {
		kind := Cyan("moved")
		if r.IsCascaded {
			kind = Yellow("cascaded")
		}
		t.Row(r.TaskID,
			calendar.Format(r.OriginalStart)+" .. "+calendar.Format(r.OriginalEnd),
			calendar.Format(r.PreviewStart)+" .. "+calendar.Format(r.PreviewEnd),
			kind)
	}
	return render(w, t)
}

// Conflicts prints double bookings, one row per worker and day.
func Conflicts(w io.Writer, records []conflict.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, Green("No resource conflicts."))
		return err
	}

	t := newTable("Date", "Worker", "Severity", "Tasks")
	for _, r := range records {
		var refs []string
		for _, ref := range r.Tasks {
			refs = append(refs, ref.ProjectID+"/"+ref.TaskID)
		}
		t.Row(calendar.Format(r.Date), r.Worker, SeverityLabel(r.Severity), english.WordSeries(refs, "and"))
	}
	if err := render(w, t); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s, worst is %s.\n",
		english.Plural(len(records), "conflict", ""), SeverityLabel(conflict.Worst(records)))
	return err
}

// ConflictDiff prints what a change would introduce and resolve.
func ConflictDiff(w io.Writer, d conflict.DiffResult) error {
	if _, err := fmt.Fprintf(w, "%s introduced, %s resolved, %s unchanged.\n",
		english.Plural(len(d.Introduced), "conflict", ""),
		english.Plural(len(d.Resolved), "conflict", ""),
		english.Plural(len(d.Unchanged), "conflict", "")); err != nil {
		return err
	}
	if len(d.Introduced) == 0 {
		return nil
	}
	return Conflicts(w, d.Introduced)
}

// Dependencies prints edges sorted by predecessor then successor.
func Dependencies(w io.Writer, deps []scheduler.Dependency) error {
	if len(deps) == 0 {
		_, err := fmt.Fprintln(w, Dim("No dependencies."))
		return err
	}

	sorted := append([]scheduler.Dependency(nil), deps...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FromTaskID != sorted[j].FromTaskID {
			return sorted[i].FromTaskID < sorted[j].FromTaskID
		}
		return sorted[i].ToTaskID < sorted[j].ToTaskID
	})

	t := newTable("ID", "From", "To", "Type", "Lag")
	for _, d := range sorted {
		t.Row(d.ID, d.FromTaskID, d.ToTaskID, d.Type.String(), Days(d.LagDays))
	}
	return render(w, t)
}
