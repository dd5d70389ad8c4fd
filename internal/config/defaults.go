package config

import (
	"path/filepath"

	"github.com/aristath/siteplan/internal/conflict"
)

// Dir is the directory name used for both the global and the project config.
const Dir = ".siteplan"

// DefaultConfig returns the built-in configuration: weekends and public
// holidays off, a 90 day conflict window, and a database next to the
// project config.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: filepath.Join(Dir, "siteplan.db"),
		Calendar: CalendarConfig{
			ExcludeWeekends: true,
			ExcludeHolidays: true,
		},
		Conflicts: ConflictConfig{
			WindowDays: conflict.DefaultWindowDays,
		},
		Projects: map[string]ProjectConfig{},
	}
}
