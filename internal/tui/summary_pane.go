package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/events"
	"github.com/aristath/siteplan/internal/report"
	"github.com/aristath/siteplan/internal/scheduler"
)

const maxActivity = 8

// SummaryPaneModel shows the project span, progress and recent activity.
type SummaryPaneModel struct {
	schedule   events.ScheduleComputedEvent
	haveSched  bool
	total      int
	completed  int
	inProgress int
	delayed    int
	pending    int
	activity   []string // Newest last
	width      int
	height     int
	focused    bool
}

// NewSummaryPaneModel creates a new summary pane model.
func NewSummaryPaneModel() SummaryPaneModel {
	return SummaryPaneModel{}
}

// Update handles messages for the summary pane.
func (m SummaryPaneModel) Update(msg tea.Msg) (SummaryPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.ScheduleComputedEvent:
		m.schedule = msg
		m.haveSched = true

	case events.CascadeAppliedEvent:
		line := fmt.Sprintf("moved %s: %d tasks, %s", msg.TriggerID, len(msg.ChangedTaskIDs), report.SignedDays(msg.TotalDeltaDays))
		if msg.HasConflicts {
			line += " (worker overlap)"
		}
		m.log(line)

	case events.PhaseCascadeAppliedEvent:
		m.log(fmt.Sprintf("shifted phases of %s: %d tasks", msg.Group, len(msg.ChangedTaskIDs)))

	case events.DependencyAddedEvent:
		m.log(fmt.Sprintf("linked %s -> %s (%s)", msg.FromTaskID, msg.ToTaskID, msg.Type))

	case events.DependencyRejectedEvent:
		m.log(fmt.Sprintf("rejected %s -> %s: %s", msg.FromTaskID, msg.ToTaskID, msg.Reason))

	case events.DependencyRemovedEvent:
		m.log("unlinked " + msg.DependencyID)

	case events.DependencyUpdatedEvent:
		m.log(fmt.Sprintf("updated %s to %s +%d", msg.DependencyID, msg.Type, msg.LagDays))
	}

	return m, nil
}

func (m *SummaryPaneModel) log(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}

// Activity returns the recent activity lines, oldest first.
func (m SummaryPaneModel) Activity() []string {
	return m.activity
}

// SetTasks recounts task states for the progress bar.
func (m *SummaryPaneModel) SetTasks(tasks []scheduler.Task) {
	m.total = len(tasks)
	m.completed, m.inProgress, m.delayed, m.pending = 0, 0, 0, 0
	for _, t := range tasks {
		switch t.Status {
		case scheduler.StatusCompleted:
			m.completed++
		case scheduler.StatusInProgress:
			m.inProgress++
		case scheduler.StatusDelayed:
			m.delayed++
		default:
			m.pending++
		}
	}
}

// View renders the summary pane.
func (m SummaryPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Schedule")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.haveSched {
		s := m.schedule
		b.WriteString(fmt.Sprintf("Span:      %s .. %s (%s)\n",
			calendar.Format(s.ProjectStart), calendar.Format(s.ProjectEnd),
			report.Days(calendar.DaysBetween(s.ProjectStart, s.ProjectEnd))))
		b.WriteString(fmt.Sprintf("Critical:  %s\n", StyleCritical.Render(strings.Join(s.CriticalPath, " -> "))))
	} else {
		b.WriteString(StyleStatusPending.Render("Computing..."))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Active:    %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.inProgress))))
	b.WriteString(fmt.Sprintf("Delayed:   %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.delayed))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	// Progress bar
	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		delayedWidth := (m.delayed * barWidth) / m.total
		activeWidth := (m.inProgress * barWidth) / m.total
		pendingWidth := barWidth - completedWidth - delayedWidth - activeWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, delayedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, activeWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.completed, m.total))
	}

	if len(m.activity) > 0 {
		b.WriteString("\n")
		for _, line := range m.activity {
			b.WriteString(StyleHelp.Render(line))
			b.WriteString("\n")
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *SummaryPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *SummaryPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
