package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/scheduler"
)

// SaveProject replaces a project's phases, tasks and dependencies with
// data in one transaction. Dependencies must reference tasks in data.
func (s *SQLiteStore) SaveProject(ctx context.Context, data ProjectData) error {
	if data.Project.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	known := make(map[string]bool, len(data.Tasks))
	for _, t := range data.Tasks {
		known[t.ID] = true
	}
	for _, d := range data.Dependencies {
		if !known[d.FromTaskID] || !known[d.ToTaskID] {
			return fmt.Errorf("dependency %s references unknown task (%s -> %s)", d.ID, d.FromTaskID, d.ToTaskID)
		}
	}

	return s.withRetry(ctx, "import", func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		pid := data.Project.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, created_at, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				updated_at = CURRENT_TIMESTAMP
		`, pid, data.Project.Name)
		if err != nil {
			return fmt.Errorf("failed to upsert project: %w", err)
		}

		for _, table := range []string{"dependencies", "tasks", "phases"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = ?`, pid); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, p := range data.Phases {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO phases (project_id, id, name, sort_order, dependency_group, type)
				VALUES (?, ?, ?, ?, ?, ?)
			`, pid, p.ID, p.Name, p.Order, p.DependencyGroup, p.Type)
			if err != nil {
				return fmt.Errorf("failed to insert phase %s: %w", p.ID, err)
			}
		}

		for _, t := range data.Tasks {
			assignees, err := encodeAssignees(t.Assignees)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tasks (project_id, id, name, start_date, end_date, duration_days,
					progress, status, phase_id, contractor_name, assignees)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, pid, t.ID, t.Name, calendar.Format(t.StartDate), calendar.Format(t.EndDate), t.Duration(),
				t.Progress, string(t.Status), t.PhaseID, t.ContractorName, assignees)
			if err != nil {
				return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
			}
		}

		for _, d := range data.Dependencies {
			if err := insertDependency(ctx, tx, pid, d); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// LoadProject reads a complete project.
func (s *SQLiteStore) LoadProject(ctx context.Context, projectID string) (*ProjectData, error) {
	data := &ProjectData{}

	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM projects WHERE id = ?`, projectID).
		Scan(&data.Project.ID, &data.Project.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	if data.Phases, err = s.loadPhases(ctx, projectID); err != nil {
		return nil, err
	}
	if data.Tasks, err = s.loadTasks(ctx, projectID); err != nil {
		return nil, err
	}
	if data.Dependencies, err = s.loadDependencies(ctx, projectID); err != nil {
		return nil, err
	}
	return data, nil
}

// ListProjects returns every stored project ordered by ID.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project and everything in it.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	return s.withRetry(ctx, "delete", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil
	})
}

func (s *SQLiteStore) loadPhases(ctx context.Context, projectID string) ([]scheduler.Phase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sort_order, dependency_group, type
		FROM phases
		WHERE project_id = ?
		ORDER BY sort_order, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases: %w", err)
	}
	defer rows.Close()

	var phases []scheduler.Phase
	for rows.Next() {
		var p scheduler.Phase
		if err := rows.Scan(&p.ID, &p.Name, &p.Order, &p.DependencyGroup, &p.Type); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating phases: %w", err)
	}
	return phases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id, name, start_date, end_date, duration_days, progress, status, phase_id, contractor_name, assignees`

func scanTask(row rowScanner) (scheduler.Task, error) {
	var (
		t                             scheduler.Task
		start, end, status, assignees string
	)
	if err := row.Scan(&t.ID, &t.Name, &start, &end, &t.DurationDays, &t.Progress, &status,
		&t.PhaseID, &t.ContractorName, &assignees); err != nil {
		return scheduler.Task{}, err
	}

	var err error
	if t.StartDate, err = calendar.Parse(start); err != nil {
		return scheduler.Task{}, fmt.Errorf("task %s start: %w", t.ID, err)
	}
	if t.EndDate, err = calendar.Parse(end); err != nil {
		return scheduler.Task{}, fmt.Errorf("task %s end: %w", t.ID, err)
	}
	t.Status = scheduler.TaskStatus(status)
	if err := json.Unmarshal([]byte(assignees), &t.Assignees); err != nil {
		return scheduler.Task{}, fmt.Errorf("task %s assignees: %w", t.ID, err)
	}
	return t, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, projectID string) ([]scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ?
		ORDER BY start_date, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []scheduler.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, projectID string) ([]scheduler.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_task_id, to_task_id, type, lag_days
		FROM dependencies
		WHERE project_id = ?
		ORDER BY rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []scheduler.Dependency
	for rows.Next() {
		var d scheduler.Dependency
		var typ string
		if err := rows.Scan(&d.ID, &d.FromTaskID, &d.ToTaskID, &typ, &d.LagDays); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		if d.Type, err = scheduler.ParseDependencyType(typ); err != nil {
			return nil, fmt.Errorf("dependency %s: %w", d.ID, err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return deps, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDependency(ctx context.Context, db execer, projectID string, d scheduler.Dependency) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dependencies (id, project_id, from_task_id, to_task_id, type, lag_days)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, id) DO UPDATE SET
			type = excluded.type,
			lag_days = excluded.lag_days
	`, d.ID, projectID, d.FromTaskID, d.ToTaskID, d.Type.String(), d.LagDays)
	if err != nil {
		return fmt.Errorf("failed to save dependency %s -> %s: %w", d.FromTaskID, d.ToTaskID, err)
	}
	return nil
}

func encodeAssignees(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encoding assignees: %w", err)
	}
	return string(b), nil
}
