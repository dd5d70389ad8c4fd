// Package conflict finds workers booked on two or more tasks on the same
// day, across every project the host hands in.
package conflict

import (
	"sort"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/scheduler"
)

// DefaultWindowDays is the default analysis horizon from today.
const DefaultWindowDays = 90

// Severity ranks a double booking.
type Severity string

const (
	SeverityCritical Severity = "critical" // 3+ tasks across 2+ projects
	SeverityHigh     Severity = "high"     // 2 tasks in different projects
	SeverityMedium   Severity = "medium"   // 3+ tasks in one project
	SeverityLow      Severity = "low"      // 2 tasks in one project
)

// Rank orders severities, higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func severityFor(tasks, projects int) Severity {
	switch {
	case tasks >= 3 && projects >= 2:
		return SeverityCritical
	case projects >= 2:
		return SeverityHigh
	case tasks >= 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Project is one project's task list as seen by the detector.
type Project struct {
	ID    string
	Name  string
	Tasks []scheduler.Task
}

// TaskRef identifies a task inside a conflict record.
type TaskRef struct {
	TaskID      string
	TaskName    string
	ProjectID   string
	ProjectName string
	PhaseID     string
	Start       time.Time
	End         time.Time
}

// Record is one worker double-booked on one day.
type Record struct {
	Date     time.Time
	Worker   string
	Tasks    []TaskRef // Sorted by project then task ID
	Severity Severity
}

// Key identifies a record across detection runs.
type Key struct {
	Worker string
	Date   string
}

// Key returns the (worker, date) key of r.
func (r Record) Key() Key {
	return Key{Worker: r.Worker, Date: calendar.Format(r.Date)}
}

// ProjectIDs returns the distinct projects involved, sorted.
func (r Record) ProjectIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range r.Tasks {
		if !seen[t.ProjectID] {
			seen[t.ProjectID] = true
			ids = append(ids, t.ProjectID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r Record) involves(projectID string) bool {
	for _, t := range r.Tasks {
		if t.ProjectID == projectID {
			return true
		}
	}
	return false
}

// Detector scans a rolling window starting today.
type Detector struct {
	now        func() time.Time
	windowDays int
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// WithWindowDays sets the horizon. Values below 0 are ignored.
func WithWindowDays(days int) Option {
	return func(d *Detector) {
		if days >= 0 {
			d.windowDays = days
		}
	}
}

// NewDetector creates a detector with a today..today+90 window.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{now: time.Now, windowDays: DefaultWindowDays}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the inclusive analysis range.
func (d *Detector) Window() (start, end time.Time) {
	today := calendar.Day(d.now())
	return today, calendar.AddDays(today, d.windowDays)
}

// Detect scans every project over the detector's window.
func (d *Detector) Detect(projects []Project) []Record {
	start, end := d.Window()
	return DetectInWindow(projects, start, end)
}

// DetectForProject returns the records that involve projectID. Other
// projects still take part, so cross-project bookings are found.
func (d *Detector) DetectForProject(projects []Project, projectID string) []Record {
	var out []Record
	for _, r := range d.Detect(projects) {
		if r.involves(projectID) {
			out = append(out, r)
		}
	}
	return out
}

// Preview runs Detect with projectID's tasks replaced by tasks. The inputs
// are not modified. An unknown projectID is added as a new project.
func (d *Detector) Preview(projects []Project, projectID string, tasks []scheduler.Task) []Record {
	hypothetical := make([]Project, 0, len(projects)+1)
	found := false
	for _, p := range projects {
		if p.ID == projectID {
			p.Tasks = tasks
			found = true
		}
		hypothetical = append(hypothetical, p)
	}
	if !found {
		hypothetical = append(hypothetical, Project{ID: projectID, Tasks: tasks})
	}
	return d.DetectForProject(hypothetical, projectID)
}

type booking struct {
	ref TaskRef
	key string
}

// DetectInWindow finds every day in [start, end] on which a worker is
// assigned to two or more distinct tasks. Records are sorted by date,
// then worker.
func DetectInWindow(projects []Project, start, end time.Time) []Record {
	start, end = calendar.Day(start), calendar.Day(end)
	if end.Before(start) {
		return nil
	}

	// Step 1: bookings per worker inside the window
	byWorker := make(map[string][]booking)
	for _, p := range projects {
		for _, t := range p.Tasks {
			if t.EndDate.Before(t.StartDate) || t.EndDate.Before(start) || t.StartDate.After(end) {
				continue
			}
			ref := TaskRef{
				TaskID:      t.ID,
				TaskName:    t.Name,
				ProjectID:   p.ID,
				ProjectName: p.Name,
				PhaseID:     t.PhaseID,
				Start:       t.StartDate,
				End:         t.EndDate,
			}
			for _, w := range t.Workers() {
				byWorker[w] = append(byWorker[w], booking{ref: ref, key: p.ID + "\x00" + t.ID})
			}
		}
	}

	// Steps 2-4: bucket by day, one record per crowded day
	var records []Record
	for worker, bookings := range byWorker {
		if len(bookings) < 2 {
			continue
		}

		days := make(map[time.Time][]TaskRef)
		seen := make(map[time.Time]map[string]bool)
		for _, b := range bookings {
			from, to := clamp(b.ref.Start, b.ref.End, start, end)
			for day := from; !day.After(to); day = calendar.AddDays(day, 1) {
				if seen[day] == nil {
					seen[day] = make(map[string]bool)
				}
				if seen[day][b.key] {
					continue
				}
				seen[day][b.key] = true
				days[day] = append(days[day], b.ref)
			}
		}

		for day, refs := range days {
			if len(refs) < 2 {
				continue
			}
			sortRefs(refs)
			r := Record{Date: day, Worker: worker, Tasks: refs}
			r.Severity = severityFor(len(refs), len(r.ProjectIDs()))
			records = append(records, r)
		}
	}

	sortRecords(records)
	return records
}

func clamp(taskStart, taskEnd, winStart, winEnd time.Time) (time.Time, time.Time) {
	from, to := calendar.Day(taskStart), calendar.Day(taskEnd)
	if from.Before(winStart) {
		from = winStart
	}
	if to.After(winEnd) {
		to = winEnd
	}
	return from, to
}

func sortRefs(refs []TaskRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ProjectID != refs[j].ProjectID {
			return refs[i].ProjectID < refs[j].ProjectID
		}
		return refs[i].TaskID < refs[j].TaskID
	})
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Worker < records[j].Worker
	})
}

// DiffResult compares two detection runs by (worker, date).
type DiffResult struct {
	Introduced []Record // Only in the new run
	Resolved   []Record // Only in the old run
	Unchanged  []Record // In both; the new run's record is kept
}

// Diff compares before and after by record key.
func Diff(before, after []Record) DiffResult {
	old := make(map[Key]bool, len(before))
	for _, r := range before {
		old[r.Key()] = true
	}
	current := make(map[Key]bool, len(after))
	for _, r := range after {
		current[r.Key()] = true
	}

	var d DiffResult
	for _, r := range after {
		if old[r.Key()] {
			d.Unchanged = append(d.Unchanged, r)
		} else {
			d.Introduced = append(d.Introduced, r)
		}
	}
	for _, r := range before {
		if !current[r.Key()] {
			d.Resolved = append(d.Resolved, r)
		}
	}
	return d
}

// Worst returns the highest severity among records, or "" when empty.
func Worst(records []Record) Severity {
	var worst Severity
	for _, r := range records {
		if r.Severity.Rank() > worst.Rank() {
			worst = r.Severity
		}
	}
	return worst
}
