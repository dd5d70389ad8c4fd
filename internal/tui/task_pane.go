package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/report"
	"github.com/aristath/siteplan/internal/scheduler"
)

// PreviewFunc opens a drag preview for one task.
type PreviewFunc func(taskID string) (*scheduler.PreviewSession, error)

// commitMoveMsg asks the root model to apply a dragged move.
type commitMoveMsg struct {
	change scheduler.TaskChange
}

// dragState is an in-progress drag of the selected task.
type dragState struct {
	session *scheduler.PreviewSession
	offset  int
	records []scheduler.PreviewRecord
	err     error
}

// TaskPaneModel is the task list plus a viewport showing either the
// selected task's timing or the live drag preview.
type TaskPaneModel struct {
	tasks       []scheduler.Task
	schedule    *scheduler.Schedule
	preview     PreviewFunc
	drag        *dragState
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a task pane. preview may be nil, which disables dragging.
func NewTaskPaneModel(preview PreviewFunc) TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		preview:  preview,
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.drag == nil && m.selectedIdx < len(m.tasks)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.drag == nil && m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		case KeyH, KeyLeft:
			m.dragBy(-1)
		case KeyL, KeyRight:
			m.dragBy(1)
		case KeyWeekBack:
			m.dragBy(-7)
		case KeyWeekAhead:
			m.dragBy(7)
		case KeyEsc:
			m.CancelDrag()
		case KeyEnter:
			if change, ok := m.dropChange(); ok {
				m.drag = nil
				m.updateViewportContent()
				return m, func() tea.Msg { return commitMoveMsg{change: change} }
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}
	}

	return m, cmd
}

// dragBy moves the drag preview by days, starting a drag if needed.
func (m *TaskPaneModel) dragBy(days int) {
	id := m.SelectedTaskID()
	if id == "" || m.preview == nil {
		return
	}
	if m.drag == nil {
		session, err := m.preview(id)
		m.drag = &dragState{session: session, err: err}
	}
	if m.drag.session != nil {
		m.drag.offset += days
		m.drag.records, m.drag.err = m.drag.session.MoveBy(m.drag.offset)
	}
	m.updateViewportContent()
}

// dropChange returns the move the current drag would commit.
func (m TaskPaneModel) dropChange() (scheduler.TaskChange, bool) {
	if m.drag == nil || m.drag.session == nil || m.drag.err != nil || m.drag.offset == 0 {
		return scheduler.TaskChange{}, false
	}
	t := m.drag.session.Task()
	return scheduler.TaskChange{
		TaskID:   t.ID,
		NewStart: calendar.AddDays(t.StartDate, m.drag.offset),
		NewEnd:   calendar.AddDays(t.EndDate, m.drag.offset),
	}, true
}

// CancelDrag drops the preview without applying it.
func (m *TaskPaneModel) CancelDrag() {
	if m.drag == nil {
		return
	}
	m.drag = nil
	m.updateViewportContent()
}

// Dragging reports whether a preview is open.
func (m TaskPaneModel) Dragging() bool {
	return m.drag != nil
}

// DragOffset returns the current preview shift in days.
func (m TaskPaneModel) DragOffset() int {
	if m.drag == nil {
		return 0
	}
	return m.drag.offset
}

// PreviewRecords returns the records of the open preview.
func (m TaskPaneModel) PreviewRecords() []scheduler.PreviewRecord {
	if m.drag == nil {
		return nil
	}
	return m.drag.records
}

// SetTasks replaces the task list, keeping the selection on the same task.
// Any open drag is dropped since its base is stale.
func (m *TaskPaneModel) SetTasks(tasks []scheduler.Task) {
	selected := m.SelectedTaskID()
	m.tasks = tasks
	m.selectedIdx = 0
	for i, t := range tasks {
		if t.ID == selected {
			m.selectedIdx = i
			break
		}
	}
	m.drag = nil
	m.updateViewportContent()
}

// SetSchedule attaches the latest CPM results for display.
func (m *TaskPaneModel) SetSchedule(s *scheduler.Schedule) {
	m.schedule = s
	if m.drag == nil {
		m.updateViewportContent()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	// Split into two columns: task list (left) and viewport (right)
	listWidth := 28
	viewportWidth := m.width - listWidth - 4 // account for borders and padding

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	cascaded := make(map[string]bool)
	for _, r := range m.PreviewRecords() {
		cascaded[r.TaskID] = r.IsCascaded
	}

	if len(m.tasks) == 0 {
		b.WriteString(StyleStatusPending.Render("No tasks"))
	}
	for i, t := range m.tasks {
		name := t.Name
		if name == "" {
			name = t.ID
		}
		if len(name) > width-6 {
			name = name[:width-9] + "..."
		}

		line := fmt.Sprintf("%s %s", m.StatusIcon(t), name)
		switch {
		case i == m.selectedIdx:
			line = StyleSelected.Render(line)
		case cascaded[t.ID]:
			line = StyleCascaded.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled indicator: critical tasks are flagged first,
// otherwise the task's progress state.
func (m TaskPaneModel) StatusIcon(t scheduler.Task) string {
	if m.schedule != nil {
		if r, ok := m.schedule.Result(t.ID); ok && r.IsCritical && t.Status != scheduler.StatusCompleted {
			return StyleCritical.Render("!")
		}
	}
	switch t.Status {
	case scheduler.StatusInProgress:
		return StyleStatusRunning.Render("●")
	case scheduler.StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case scheduler.StatusDelayed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SelectedTaskID returns the ID of the selected task.
func (m TaskPaneModel) SelectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.tasks) {
		return m.tasks[m.selectedIdx].ID
	}
	return ""
}

// updateViewportContent shows the drag preview, or the selected task's details.
func (m *TaskPaneModel) updateViewportContent() {
	if m.drag != nil {
		m.viewport.SetContent(m.previewContent())
		m.viewport.GotoTop()
		return
	}

	if m.selectedIdx < 0 || m.selectedIdx >= len(m.tasks) {
		m.viewport.SetContent("No task selected.")
		return
	}
	m.viewport.SetContent(m.detailContent(m.tasks[m.selectedIdx]))
	m.viewport.GotoTop()
}

func (m TaskPaneModel) detailContent(t scheduler.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", StyleTitle.Render(t.Name), t.ID)
	fmt.Fprintf(&b, "Dates:     %s .. %s (%s)\n", calendar.Format(t.StartDate), calendar.Format(t.EndDate), report.Days(t.Duration()))
	fmt.Fprintf(&b, "Status:    %s, %.0f%% done\n", t.Status, t.Progress*100)
	if t.PhaseID != "" {
		fmt.Fprintf(&b, "Phase:     %s\n", t.PhaseID)
	}
	if workers := t.Workers(); len(workers) > 0 {
		fmt.Fprintf(&b, "Workers:   %s\n", strings.Join(workers, ", "))
	}

	if m.schedule != nil {
		if r, ok := m.schedule.Result(t.ID); ok {
			b.WriteString("\n")
			fmt.Fprintf(&b, "Earliest:  %s .. %s\n", calendar.Format(r.EarliestStart), calendar.Format(r.EarliestFinish))
			fmt.Fprintf(&b, "Latest:    %s .. %s\n", calendar.Format(r.LatestStart), calendar.Format(r.LatestFinish))
			fmt.Fprintf(&b, "Float:     %s total, %s free\n", report.Days(r.TotalFloat), report.Days(r.FreeFloat))
			if r.IsCritical {
				b.WriteString(StyleCritical.Render("On the critical path"))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func (m TaskPaneModel) previewContent() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", StyleTitle.Render("Preview"), report.SignedDays(m.drag.offset))

	if m.drag.err != nil {
		b.WriteString(StyleStatusFailed.Render(m.drag.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	for _, r := range m.drag.records {
		line := fmt.Sprintf("%-12s %s .. %s -> %s .. %s", r.TaskID,
			calendar.Format(r.OriginalStart), calendar.Format(r.OriginalEnd),
			calendar.Format(r.PreviewStart), calendar.Format(r.PreviewEnd))
		if r.IsCascaded {
			line = StyleCascaded.Render(line)
		} else {
			line = StyleMoved.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.drag.records) > 1 {
		fmt.Fprintf(&b, "\n%d successors follow\n", len(m.drag.records)-1)
	}
	b.WriteString("\nenter: apply | esc: cancel\n")
	return b.String()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4 // account for borders

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
