package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/siteplan/internal/config"
	"github.com/aristath/siteplan/internal/events"
	"github.com/aristath/siteplan/internal/report"
	"github.com/aristath/siteplan/internal/scheduler"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneSummary
)

// scheduleReadyMsg carries a freshly computed schedule.
type scheduleReadyMsg struct {
	schedule *scheduler.Schedule
}

// moveDoneMsg reports the outcome of an applied drag.
type moveDoneMsg struct {
	result scheduler.CascadeResult
	err    error
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	taskPane          TaskPaneModel
	summaryPane       SummaryPaneModel
	settingsPane      SettingsPaneModel
	focusedPane       PaneID
	planner           *scheduler.Planner
	eventSub          <-chan events.Event
	width             int
	height            int
	quitting          bool
	showSettings      bool
	status            string
	config            *config.Config
	globalConfigPath  string
	projectConfigPath string
}

// New creates a new TUI model over planner.
// It subscribes to all events from the event bus using SubscribeAll.
func New(planner *scheduler.Planner, eventBus *events.EventBus, cfg *config.Config, globalPath, projectPath string) Model {
	m := Model{
		taskPane:          NewTaskPaneModel(planner.Preview),
		summaryPane:       NewSummaryPaneModel(),
		settingsPane:      NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:       PaneTasks,
		planner:           planner,
		eventSub:          eventBus.SubscribeAll(256),
		config:            cfg,
		globalConfigPath:  globalPath,
		projectConfigPath: projectPath,
	}
	m.reloadTasks()
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), computeSchedule(m.planner))
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// computeSchedule runs a CPM pass off the update loop.
func computeSchedule(p *scheduler.Planner) tea.Cmd {
	return func() tea.Msg {
		return scheduleReadyMsg{schedule: p.Schedule()}
	}
}

// applyMove commits a dragged move off the update loop.
func applyMove(p *scheduler.Planner, change scheduler.TaskChange) tea.Cmd {
	return func() tea.Msg {
		result, err := p.MoveTask(context.Background(), change)
		return moveDoneMsg{result: result, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)

			// Check if settings pane closed itself (after save or esc)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				if m.settingsPane.Saved() {
					m.status = "Settings saved"
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			if m.taskPane.Dragging() {
				break
			}
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case commitMoveMsg:
		m.status = "Applying..."
		cmds = append(cmds, applyMove(m.planner, msg.change))

	case moveDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Move failed: %v", msg.err)
		} else if msg.result.IsEmpty() {
			m.status = "Moved, nothing cascaded"
		} else {
			m.status = fmt.Sprintf("Moved %d tasks (%s)", len(msg.result.ChangedTasks), report.SignedDays(msg.result.TotalDeltaDays))
		}
		m.reloadTasks()
		cmds = append(cmds, computeSchedule(m.planner))

	case scheduleReadyMsg:
		m.taskPane.SetSchedule(msg.schedule)

	case events.ScheduleComputedEvent:
		m.summaryPane, _ = m.summaryPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.CascadeAppliedEvent, events.PhaseCascadeAppliedEvent,
		events.DependencyAddedEvent, events.DependencyRemovedEvent, events.DependencyUpdatedEvent:
		// Another writer may have changed the plan
		m.summaryPane, _ = m.summaryPane.Update(msg)
		m.reloadTasks()
		cmds = append(cmds, computeSchedule(m.planner), waitForEvent(m.eventSub))

	case events.DependencyRejectedEvent:
		m.summaryPane, _ = m.summaryPane.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// reloadTasks pulls the current task list from the planner.
func (m *Model) reloadTasks() {
	tasks := m.planner.Tasks()
	m.taskPane.SetTasks(tasks)
	m.summaryPane.SetTasks(tasks)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.summaryPane.View())

	helpBar := HelpView()
	if m.status != "" {
		helpBar = StyleHelp.Render(m.status) + "  " + helpBar
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.summaryPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.summaryPane.SetFocused(m.focusedPane == PaneSummary)
}
