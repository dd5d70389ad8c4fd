package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/scheduler"
)

// ProjectStore scopes the store to one project and implements scheduler.Store.
type ProjectStore struct {
	s         *SQLiteStore
	projectID string
}

var _ scheduler.Store = (*ProjectStore)(nil)

// Project returns a view of the store limited to projectID.
func (s *SQLiteStore) Project(projectID string) *ProjectStore {
	return &ProjectStore{s: s, projectID: projectID}
}

// ProjectID returns the scoped project.
func (p *ProjectStore) ProjectID() string {
	return p.projectID
}

// CommitTaskUpdates writes the dates of every task in one transaction.
// If any task is missing nothing is written.
func (p *ProjectStore) CommitTaskUpdates(ctx context.Context, tasks []scheduler.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	return p.s.withRetry(ctx, "commit", func() error {
		// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
		tx, err := p.s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		for _, t := range tasks {
			res, err := tx.ExecContext(ctx, `
				UPDATE tasks
				SET start_date = ?, end_date = ?, duration_days = ?, updated_at = CURRENT_TIMESTAMP
				WHERE project_id = ? AND id = ?
			`, calendar.Format(t.StartDate), calendar.Format(t.EndDate), t.Duration(), p.projectID, t.ID)
			if err != nil {
				return fmt.Errorf("failed to update task %s: %w", t.ID, err)
			}

			rows, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if rows == 0 {
				return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, t.ID)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// SaveDependency inserts or updates an edge.
func (p *ProjectStore) SaveDependency(ctx context.Context, d scheduler.Dependency) error {
	return p.s.withRetry(ctx, "dependency", func() error {
		return insertDependency(ctx, p.s.db, p.projectID, d)
	})
}

// DeleteDependency removes an edge. Unknown IDs are not an error.
func (p *ProjectStore) DeleteDependency(ctx context.Context, id string) error {
	return p.s.withRetry(ctx, "dependency", func() error {
		_, err := p.s.db.ExecContext(ctx, `DELETE FROM dependencies WHERE project_id = ? AND id = ?`, p.projectID, id)
		if err != nil {
			return fmt.Errorf("failed to delete dependency %s: %w", id, err)
		}
		return nil
	})
}

// GetTask retrieves one task.
func (p *ProjectStore) GetTask(ctx context.Context, taskID string) (scheduler.Task, error) {
	row := p.s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ? AND id = ?
	`, p.projectID, taskID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return scheduler.Task{}, fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return scheduler.Task{}, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus records progress on a task.
func (p *ProjectStore) UpdateTaskStatus(ctx context.Context, taskID string, status scheduler.TaskStatus, progress float64) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if progress < 0 || progress > 1 {
		return fmt.Errorf("progress must be between 0 and 1, got %g", progress)
	}

	return p.s.withRetry(ctx, "status", func() error {
		res, err := p.s.db.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?, progress = ?, updated_at = CURRENT_TIMESTAMP
			WHERE project_id = ? AND id = ?
		`, string(status), progress, p.projectID, taskID)
		if err != nil {
			return fmt.Errorf("failed to update task status: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, taskID)
		}
		return nil
	})
}
