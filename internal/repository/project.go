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

// mutationTxOptions serializes lifecycle transactions so the
// read-then-write position computations cannot race with concurrent
// mutations on the same scope.
var mutationTxOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}

const projectColumns = `project_id, user_id, position_index, status_id, title, description,
		created_date, desired_completion_date, actual_completion_date, updated_date`

// PostgresProjectRepository implements the project lifecycle against a
// PostgreSQL database. Every mutation runs in a single transaction.
type PostgresProjectRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresProjectRepository creates a new PostgresProjectRepository
// using the provided *sql.DB.
func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var statusID int
	err := row.Scan(
		&p.ID, &p.UserID, &p.PositionIndex, &statusID, &p.Title, &p.Description,
		&p.CreatedDate, &p.DesiredCompletionDate, &p.ActualCompletionDate, &p.UpdatedDate,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.Status(statusID)
	return &p, nil
}

// Create inserts a project at the tail of the user's active ordering
// with status in_progress.
func (r *PostgresProjectRepository) Create(ctx context.Context, userID int64, params models.ProjectCreate, now time.Time) (*models.Project, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	pos, err := nextPosition(ctx, tx, projectScope(userID))
	if err != nil {
		return nil, err
	}

	project := models.Project{
		UserID:                userID,
		PositionIndex:         pos,
		Status:                models.StatusInProgress,
		Title:                 params.Title,
		Description:           params.Description,
		CreatedDate:           now,
		DesiredCompletionDate: params.DesiredCompletionDate,
		UpdatedDate:           now,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (user_id, position_index, status_id, title, description,
		                      created_date, desired_completion_date, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING project_id
	`, userID, pos, int(project.Status), params.Title, params.Description,
		now, params.DesiredCompletionDate, now).Scan(&project.ID)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &project, nil
}

// GetByID fetches a project owned by the user regardless of status.
// Absent or foreign projects yield NotFound.
func (r *PostgresProjectRepository) GetByID(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND project_id = $2
	`, userID, projectID)

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project with ID %d not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListActive returns the user's non-archived projects in position order.
func (r *PostgresProjectRepository) ListActive(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND status_id != $2
		 ORDER BY position_index
	`, userID, int(models.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Update applies a partial update to an active project. A provided
// position is clamped and the affected range re-ranked; the status is
// rederived from the post-update date fields, which overrides any
// explicitly requested status.
func (r *PostgresProjectRepository) Update(ctx context.Context, userID, projectID int64, patch models.ProjectPatch, now time.Time) (*models.Project, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND project_id = $2 AND status_id != $3
	`, userID, projectID, int(models.StatusDeleted))

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project with ID %d not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	if patch.PositionIndex != nil {
		max, err := maxPosition(ctx, tx, projectScope(userID))
		if err != nil {
			return nil, err
		}
		newIndex := clampIndex(*patch.PositionIndex, max)
		if err := shiftForMove(ctx, tx, projectScope(userID), project.PositionIndex, newIndex); err != nil {
			return nil, err
		}
		project.PositionIndex = newIndex
	}

	if patch.Title != nil {
		project.Title = *patch.Title
	}
	if patch.Description != nil {
		project.Description = patch.Description
	}
	if patch.DesiredCompletionDate != nil {
		project.DesiredCompletionDate = patch.DesiredCompletionDate
	}
	if patch.ActualCompletionDate != nil {
		project.ActualCompletionDate = patch.ActualCompletionDate
	}

	project.UpdatedDate = now
	project.Status = models.DeriveStatus(patch.Status,
		project.DesiredCompletionDate, project.ActualCompletionDate, project.Status, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		   SET position_index = $1, status_id = $2, title = $3, description = $4,
		       desired_completion_date = $5, actual_completion_date = $6, updated_date = $7
		 WHERE project_id = $8
	`, project.PositionIndex, int(project.Status), project.Title, project.Description,
		project.DesiredCompletionDate, project.ActualCompletionDate, now, projectID)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return project, nil
}

// Delete archives a project (status deleted, position -1, cascaded to
// its tasks) or, when permanent, removes the project row and all task
// rows. Either way the user's active ordering is compacted unless the
// project was already archived. Returns the number of affected tasks.
func (r *PostgresProjectRepository) Delete(ctx context.Context, userID, projectID int64, permanent bool, now time.Time) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND project_id = $2
	`, userID, projectID)

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("project with ID %d not found", projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("get project: %w", err)
	}

	wasArchived := project.Status == models.StatusDeleted

	var affectedTasks int64
	if permanent {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
		if err != nil {
			return 0, fmt.Errorf("delete tasks: %w", err)
		}
		affectedTasks, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE project_id = $1`, projectID); err != nil {
			return 0, fmt.Errorf("delete project: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status_id = $1, position_index = $2, updated_date = $3
			 WHERE project_id = $4
		`, int(models.StatusDeleted), models.ArchivedPosition, now, projectID)
		if err != nil {
			return 0, fmt.Errorf("archive tasks: %w", err)
		}
		affectedTasks, _ = res.RowsAffected()

		_, err = tx.ExecContext(ctx, `
			UPDATE projects SET status_id = $1, position_index = $2, updated_date = $3
			 WHERE project_id = $4
		`, int(models.StatusDeleted), models.ArchivedPosition, now, projectID)
		if err != nil {
			return 0, fmt.Errorf("archive project: %w", err)
		}
	}

	if !wasArchived {
		if err := compactAfterRemoval(ctx, tx, projectScope(userID), project.PositionIndex); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affectedTasks, nil
}

// Recover reactivates an archived project at the tail of the user's
// active ordering and reactivates its tasks with a fresh dense
// ordering in creation order. Returns the recovered project and the
// ids of the reactivated tasks so the caller can overdue-sweep both.
func (r *PostgresProjectRepository) Recover(ctx context.Context, userID, projectID int64, now time.Time) (*models.Project, []int64, error) {
	tx, err := r.DB.BeginTx(ctx, mutationTxOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND project_id = $2
	`, userID, projectID)

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, apperr.NotFound("project with ID %d not found", projectID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get project: %w", err)
	}

	if project.Status != models.StatusDeleted {
		return nil, nil, apperr.InvalidState(
			"project with ID %d is not archived (current status %s)", projectID, project.Status)
	}

	pos, err := nextPosition(ctx, tx, projectScope(userID))
	if err != nil {
		return nil, nil, err
	}

	project.Status = models.StatusInProgress
	if project.ActualCompletionDate != nil {
		project.Status = models.StatusCompleted
	}
	project.PositionIndex = pos
	project.UpdatedDate = now

	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status_id = $1, position_index = $2, updated_date = $3
		 WHERE project_id = $4
	`, int(project.Status), pos, now, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("recover project: %w", err)
	}

	// Reactivate the children with a fresh dense ordering in creation
	// order. An archived project has all of its tasks archived, so the
	// whole set is renumbered from 0.
	rows, err := tx.QueryContext(ctx, `
		SELECT task_id, actual_completion_date FROM tasks
		 WHERE project_id = $1 ORDER BY task_id
	`, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}

	type child struct {
		id        int64
		completed bool
	}
	var children []child
	for rows.Next() {
		var c child
		var actual sql.NullTime
		if err := rows.Scan(&c.id, &actual); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan task: %w", err)
		}
		c.completed = actual.Valid
		children = append(children, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}

	taskIDs := make([]int64, 0, len(children))
	for i, c := range children {
		status := models.StatusInProgress
		if c.completed {
			status = models.StatusCompleted
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status_id = $1, position_index = $2, updated_date = $3
			 WHERE task_id = $4
		`, int(status), i, now, c.id)
		if err != nil {
			return nil, nil, fmt.Errorf("recover task: %w", err)
		}
		taskIDs = append(taskIDs, c.id)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return project, taskIDs, nil
}

// SweepOverdue marks the given projects overdue when their deadline
// passed without completion, then returns the fresh rows. Applied
// before read results are returned and after recovery.
func (r *PostgresProjectRepository) SweepOverdue(ctx context.Context, userID int64, ids []int64, now time.Time) ([]models.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status_id = $1
		 WHERE user_id = $2 AND project_id = ANY($3)
		   AND desired_completion_date < $4
		   AND actual_completion_date IS NULL
		   AND status_id != $1 AND status_id != $5
	`, int(models.StatusOverdue), userID, pq.Array(ids), now, int(models.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("sweep projects: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+projectColumns+`
		  FROM projects WHERE user_id = $1 AND project_id = ANY($2)
		 ORDER BY position_index
	`, userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("reload projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return projects, nil
}
