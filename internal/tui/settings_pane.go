package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/config"
)

// SettingsPaneModel manages the calendar settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings
	saveTarget      string
	excludeWeekends bool
	excludeHolidays bool
	customHolidays  string // Comma separated YYYY-MM-DD
	windowDays      string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFromConfig()
	m.buildForm()
	return m
}

func (m *SettingsPaneModel) loadFromConfig() {
	m.saveTarget = "project"
	m.excludeWeekends = m.config.Calendar.ExcludeWeekends
	m.excludeHolidays = m.config.Calendar.ExcludeHolidays
	m.customHolidays = strings.Join(m.config.Calendar.CustomHolidays, ", ")
	m.windowDays = strconv.Itoa(m.config.Conflicts.WindowDays)
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project ("+m.projectPath+")", "project"),
					huh.NewOption("Global ("+m.globalPath+")", "global"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewConfirm().
				Key("excludeWeekends").
				Title("Skip weekends").
				Value(&m.excludeWeekends),

			huh.NewConfirm().
				Key("excludeHolidays").
				Title("Skip US federal holidays").
				Value(&m.excludeHolidays),

			huh.NewInput().
				Key("customHolidays").
				Title("Extra non-working days").
				Description("Comma separated, YYYY-MM-DD").
				Value(&m.customHolidays).
				Validate(func(s string) error {
					_, err := parseHolidayList(s)
					return err
				}),
		).Title("Working Days"),

		huh.NewGroup(
			huh.NewInput().
				Key("windowDays").
				Title("Conflict window (days)").
				Value(&m.windowDays).
				Placeholder("90").
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 0 {
						return fmt.Errorf("enter a whole number of days")
					}
					return nil
				}),
		).Title("Resource Conflicts"),
	)
}

// parseHolidayList splits and parses a comma separated date list.
func parseHolidayList(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := calendar.Parse(part); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		targetPath := m.projectPath
		if m.saveTarget == "global" {
			targetPath = m.globalPath
		}

		m.err = m.applyFormToConfig()
		if m.err == nil {
			m.err = config.Save(m.config, targetPath)
		}
		m.saved = m.err == nil

		// Hide form after successful save
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() error {
	holidays, err := parseHolidayList(m.customHolidays)
	if err != nil {
		return err
	}
	window, err := strconv.Atoi(strings.TrimSpace(m.windowDays))
	if err != nil {
		return fmt.Errorf("conflict window: %w", err)
	}

	m.config.Calendar.ExcludeWeekends = m.excludeWeekends
	m.config.Calendar.ExcludeHolidays = m.excludeHolidays
	m.config.Calendar.CustomHolidays = holidays
	m.config.Conflicts.WindowDays = window
	return m.config.Validate()
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Calendar Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild the form from the current config when showing
	if v {
		m.loadFromConfig()
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last completed form was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
