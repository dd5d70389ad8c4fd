package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
// Dates are stored as YYYY-MM-DD text; task IDs are unique per project.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS phases (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		dependency_group TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tasks (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		phase_id TEXT NOT NULL DEFAULT '',
		contractor_name TEXT NOT NULL DEFAULT '',
		assignees TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_dates ON tasks(start_date, end_date);

	CREATE TABLE IF NOT EXISTS dependencies (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		from_task_id TEXT NOT NULL,
		to_task_id TEXT NOT NULL,
		type TEXT NOT NULL,
		lag_days INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, id),
		UNIQUE (project_id, from_task_id, to_task_id),
		FOREIGN KEY (project_id, from_task_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, to_task_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(project_id, to_task_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
