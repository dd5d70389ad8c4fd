package config

import (
	"fmt"
	"time"

	"github.com/aristath/siteplan/internal/calendar"
)

// CalendarConfig defines which days count as working days.
type CalendarConfig struct {
	ExcludeWeekends bool     `json:"exclude_weekends" yaml:"exclude_weekends"`
	ExcludeHolidays bool     `json:"exclude_holidays" yaml:"exclude_holidays"`
	CustomHolidays  []string `json:"custom_holidays,omitempty" yaml:"custom_holidays,omitempty"` // YYYY-MM-DD
}

// ConflictConfig tunes the double-booking scan.
type ConflictConfig struct {
	WindowDays int `json:"window_days" yaml:"window_days"` // Horizon from today
}

// ProjectConfig holds per-project overrides, keyed by project ID.
type ProjectConfig struct {
	ProjectStart   string   `json:"project_start,omitempty" yaml:"project_start,omitempty"`     // YYYY-MM-DD, empty = earliest task
	CustomHolidays []string `json:"custom_holidays,omitempty" yaml:"custom_holidays,omitempty"` // Added to the calendar's list
}

// Config is the top-level configuration.
type Config struct {
	DatabasePath   string                   `json:"database_path" yaml:"database_path"`
	DefaultProject string                   `json:"default_project,omitempty" yaml:"default_project,omitempty"`
	Calendar       CalendarConfig           `json:"calendar" yaml:"calendar"`
	Conflicts      ConflictConfig           `json:"conflicts" yaml:"conflicts"`
	Projects       map[string]ProjectConfig `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// Validate checks dates and ranges.
func (c *Config) Validate() error {
	if c.Conflicts.WindowDays < 0 {
		return fmt.Errorf("conflicts.window_days must be >= 0, got %d", c.Conflicts.WindowDays)
	}
	if _, err := parseDates(c.Calendar.CustomHolidays); err != nil {
		return fmt.Errorf("calendar.custom_holidays: %w", err)
	}
	for id, p := range c.Projects {
		if p.ProjectStart != "" {
			if _, err := calendar.Parse(p.ProjectStart); err != nil {
				return fmt.Errorf("projects.%s.project_start: %w", id, err)
			}
		}
		if _, err := parseDates(p.CustomHolidays); err != nil {
			return fmt.Errorf("projects.%s.custom_holidays: %w", id, err)
		}
	}
	return nil
}

// CalendarSettings converts the calendar section, plus any holidays of
// projectID, into engine settings.
func (c *Config) CalendarSettings(projectID string) (calendar.Settings, error) {
	holidays := append([]string(nil), c.Calendar.CustomHolidays...)
	if p, ok := c.Projects[projectID]; ok {
		holidays = append(holidays, p.CustomHolidays...)
	}

	dates, err := parseDates(holidays)
	if err != nil {
		return calendar.Settings{}, err
	}
	return calendar.Settings{
		ExcludeWeekends: c.Calendar.ExcludeWeekends,
		ExcludeHolidays: c.Calendar.ExcludeHolidays,
		CustomHolidays:  dates,
	}, nil
}

// ProjectStart returns the configured start of projectID, or the zero time.
func (c *Config) ProjectStart(projectID string) (time.Time, error) {
	p, ok := c.Projects[projectID]
	if !ok || p.ProjectStart == "" {
		return time.Time{}, nil
	}
	return calendar.Parse(p.ProjectStart)
}

// SetCalendar stores s back into the calendar section.
func (c *Config) SetCalendar(s calendar.Settings) {
	c.Calendar.ExcludeWeekends = s.ExcludeWeekends
	c.Calendar.ExcludeHolidays = s.ExcludeHolidays
	c.Calendar.CustomHolidays = nil
	for _, d := range s.CustomHolidays {
		c.Calendar.CustomHolidays = append(c.Calendar.CustomHolidays, calendar.Format(d))
	}
}

func parseDates(values []string) ([]time.Time, error) {
	var out []time.Time
	for _, v := range values {
		d, err := calendar.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
