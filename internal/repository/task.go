package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

const taskColumns = `task_id, user_id, project_id, position_index, priority, status_id, title,
		description, created_date, desired_completion_date, actual_completion_date, updated_date`

// PostgresTaskRepository implements the task lifecycle against a
// PostgreSQL database. Task positions are dense per (user, project).
type PostgresTaskRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresTaskRepository creates a new PostgresTaskRepository using
// the provided *sql.DB.
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{DB: db}
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var statusID int
	err := row.Scan(
		&t.ID, &t.UserID, &t.ProjectID, &t.PositionIndex, &t.Priority, &statusID, &t.Title,
		&t.Description, &t.CreatedDate, &t.DesiredCompletionDate, &t.ActualCompletionDate, &t.UpdatedDate,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.Status(statusID)
	return &t, nil
}

// Create inserts a task at the tail of its project's active ordering.
// The referenced project must exist and belong to the user.
func (r *PostgresTaskRepository) Create(ctx context.Context, userID int64, params models.TaskCreate, now time.Time) (*models.Task, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM projects WHERE project_id = $1 AND user_id = $2)
	`, params.ProjectID, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("project with ID %d not found", params.ProjectID)
	}

	pos, err := nextPosition(ctx, tx, taskScope(userID, params.ProjectID))
	if err != nil {
		return nil, err
	}

	task := models.Task{
		UserID:                userID,
		ProjectID:             params.ProjectID,
		PositionIndex:         pos,
		Priority:              params.Priority,
		Status:                models.StatusInProgress,
		Title:                 params.Title,
		Description:           params.Description,
		CreatedDate:           now,
		DesiredCompletionDate: params.DesiredCompletionDate,
		UpdatedDate:           now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, project_id, position_index, priority, status_id, title,
		                   description, created_date, desired_completion_date, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING task_id
	`, userID, params.ProjectID, pos, params.Priority, int(task.Status), params.Title,
		params.Description, now, params.DesiredCompletionDate, now).Scan(&task.ID)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &task, nil
}

// GetByID fetches a task owned by the user regardless of status.
func (r *PostgresTaskRepository) GetByID(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND task_id = $2
	`, userID, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task with ID %d not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListByProject returns the user's non-archived tasks of one project
// in position order.
func (r *PostgresTaskRepository) ListByProject(ctx context.Context, userID, projectID int64) ([]models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND project_id = $2 AND status_id != $3
		 ORDER BY position_index
	`, userID, projectID, int(models.StatusDeleted))
}

// ListAll returns all non-archived tasks of the user ordered by
// project and position.
func (r *PostgresTaskRepository) ListAll(ctx context.Context, userID int64) ([]models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND status_id != $2
		 ORDER BY project_id, position_index
	`, userID, int(models.StatusDeleted))
}

func (r *PostgresTaskRepository) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update applies a partial update to an active task. A provided
// position is clamped and re-ranked within the task's project scope;
// the status is rederived from the post-update date fields.
func (r *PostgresTaskRepository) Update(ctx context.Context, userID, taskID int64, patch models.TaskPatch, now time.Time) (*models.Task, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND task_id = $2 AND status_id != $3
	`, userID, taskID, int(models.StatusDeleted))

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task with ID %d not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if patch.PositionIndex != nil {
		sc := taskScope(userID, task.ProjectID)
		max, err := maxPosition(ctx, tx, sc)
		if err != nil {
			return nil, err
		}
		newIndex := clampIndex(*patch.PositionIndex, max)
		if err := shiftForMove(ctx, tx, sc, task.PositionIndex, newIndex); err != nil {
			return nil, err
		}
		task.PositionIndex = newIndex
	}

	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = patch.Description
	}
	if patch.DesiredCompletionDate != nil {
		task.DesiredCompletionDate = patch.DesiredCompletionDate
	}
	if patch.ActualCompletionDate != nil {
		task.ActualCompletionDate = patch.ActualCompletionDate
	}

	task.UpdatedDate = now
	task.Status = models.DeriveStatus(patch.Status,
		task.DesiredCompletionDate, task.ActualCompletionDate, task.Status, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		   SET position_index = $1, priority = $2, status_id = $3, title = $4, description = $5,
		       desired_completion_date = $6, actual_completion_date = $7, updated_date = $8
		 WHERE task_id = $9
	`, task.PositionIndex, task.Priority, int(task.Status), task.Title, task.Description,
		task.DesiredCompletionDate, task.ActualCompletionDate, now, taskID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

// Delete archives a task (status deleted, position -1) or, when
// permanent, removes the row. The project's ordering is compacted
// unless the task was already archived.
func (r *PostgresTaskRepository) Delete(ctx context.Context, userID, taskID int64, permanent bool, now time.Time) error {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND task_id = $2
	`, userID, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("task with ID %d not found", taskID)
	}
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	wasArchived := task.Status == models.StatusDeleted

	if permanent {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status_id = $1, position_index = $2, updated_date = $3
			 WHERE task_id = $4
		`, int(models.StatusDeleted), models.ArchivedPosition, now, taskID)
		if err != nil {
			return fmt.Errorf("archive task: %w", err)
		}
	}

	if !wasArchived {
		if err := compactAfterRemoval(ctx, tx, taskScope(userID, task.ProjectID), task.PositionIndex); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recover reactivates an archived task at the tail of its project's
// active ordering. The caller overdue-sweeps the task afterwards.
func (r *PostgresTaskRepository) Recover(ctx context.Context, userID, taskID int64, now time.Time) (*models.Task, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND task_id = $2
	`, userID, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("task with ID %d not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if task.Status != models.StatusDeleted {
		return nil, apperr.InvalidState(
			"task with ID %d is not archived (current status %s)", taskID, task.Status)
	}

	pos, err := nextPosition(ctx, tx, taskScope(userID, task.ProjectID))
	if err != nil {
		return nil, err
	}

	task.Status = models.StatusInProgress
	if task.ActualCompletionDate != nil {
		task.Status = models.StatusCompleted
	}
	task.PositionIndex = pos
	task.UpdatedDate = now

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET status_id = $1, position_index = $2, updated_date = $3
		 WHERE task_id = $4
	`, int(task.Status), pos, now, taskID)
	if err != nil {
		return nil, fmt.Errorf("recover task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

// SweepOverdue marks the given tasks overdue when their deadline
// passed without completion, then returns the fresh rows.
func (r *PostgresTaskRepository) SweepOverdue(ctx context.Context, userID int64, ids []int64, now time.Time) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET status_id = $1
		 WHERE user_id = $2 AND task_id = ANY($3)
		   AND desired_completion_date < $4
		   AND actual_completion_date IS NULL
		   AND status_id != $1 AND status_id != $5
	`, int(models.StatusOverdue), userID, pq.Array(ids), now, int(models.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("sweep tasks: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+taskColumns+`
		  FROM tasks WHERE user_id = $1 AND task_id = ANY($2)
		 ORDER BY project_id, position_index
	`, userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("reload tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tasks, nil
}
