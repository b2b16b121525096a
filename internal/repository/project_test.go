package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupProjectMock(t *testing.T) (*PostgresProjectRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresProjectRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func projectRow(id, userID int64, pos int, status models.Status) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"project_id", "user_id", "position_index", "status_id", "title", "description",
		"created_date", "desired_completion_date", "actual_completion_date", "updated_date",
	}).AddRow(id, userID, pos, int(status), "title", nil, testNow, nil, nil, testNow)
}

func TestCreateProject_TailPosition(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index) + 1, 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO projects`)).
		WithArgs(int64(1), 2, int(models.StatusInProgress), "my project", nil, testNow, nil, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(10)))
	mock.ExpectCommit()

	project, err := repo.Create(context.Background(), 1,
		models.ProjectCreate{Title: "my project"}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.ID != 10 || project.PositionIndex != 2 {
		t.Errorf("unexpected project: %+v", project)
	}
	if project.Status != models.StatusInProgress {
		t.Errorf("expected in_progress status, got %s", project.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateProject_EmptyScopeStartsAtZero(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index) + 1, 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO projects`)).
		WithArgs(int64(1), 0, int(models.StatusInProgress), "first", nil, testNow, nil, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	project, err := repo.Create(context.Background(), 1,
		models.ProjectCreate{Title: "first"}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.PositionIndex != 0 {
		t.Errorf("expected position 0, got %d", project.PositionIndex)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}))

	_, err := repo.GetByID(context.Background(), 1, 99)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestUpdateProject_MoveForwardClamped(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10), int(models.StatusDeleted)).
		WillReturnRows(projectRow(10, 1, 0, models.StatusInProgress))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index), 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	// requested position 7 clamps to the current max 3
	mock.ExpectExec(regexp.QuoteMeta(`position_index = position_index - 1`)).
		WithArgs(int64(1), int(models.StatusDeleted), 0, 3).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects`)).
		WithArgs(3, int(models.StatusInProgress), "title", nil, nil, nil, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	requested := 7
	project, err := repo.Update(context.Background(), 1, 10,
		models.ProjectPatch{PositionIndex: &requested}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.PositionIndex != 3 {
		t.Errorf("expected clamped position 3, got %d", project.PositionIndex)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProject_MoveBackward(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10), int(models.StatusDeleted)).
		WillReturnRows(projectRow(10, 1, 3, models.StatusInProgress))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index), 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`position_index = position_index + 1`)).
		WithArgs(int64(1), int(models.StatusDeleted), 1, 3).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects`)).
		WithArgs(1, int(models.StatusInProgress), "title", nil, nil, nil, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	requested := 1
	project, err := repo.Update(context.Background(), 1, 10,
		models.ProjectPatch{PositionIndex: &requested}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.PositionIndex != 1 {
		t.Errorf("expected position 1, got %d", project.PositionIndex)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProject_SamePositionNoShift(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10), int(models.StatusDeleted)).
		WillReturnRows(projectRow(10, 1, 2, models.StatusInProgress))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index), 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))
	// no range shift expected, only the row update with a bumped updated_date
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects`)).
		WithArgs(2, int(models.StatusInProgress), "title", nil, nil, nil, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	requested := 2
	_, err := repo.Update(context.Background(), 1, 10,
		models.ProjectPatch{PositionIndex: &requested}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProject_CompletionOverridesExplicitStatus(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	actual := testNow.Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10), int(models.StatusDeleted)).
		WillReturnRows(projectRow(10, 1, 0, models.StatusInProgress))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects`)).
		WithArgs(0, int(models.StatusCompleted), "title", nil, nil, actual, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	explicit := models.StatusOverdue
	project, err := repo.Update(context.Background(), 1, 10, models.ProjectPatch{
		Status:               &explicit,
		ActualCompletionDate: &actual,
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.Status != models.StatusCompleted {
		t.Errorf("expected completed status, got %s", project.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateProject_NotFoundWhenArchived(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 1, 10, models.ProjectPatch{}, testNow)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestDeleteProject_ArchiveCascadesAndCompacts(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(projectRow(10, 1, 0, models.StatusInProgress))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET status_id`)).
		WithArgs(int(models.StatusDeleted), models.ArchivedPosition, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET status_id`)).
		WithArgs(int(models.StatusDeleted), models.ArchivedPosition, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`position_index = position_index - 1`)).
		WithArgs(int64(1), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.Delete(context.Background(), 1, 10, false, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 2 {
		t.Errorf("expected 2 archived tasks, got %d", affected)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteProject_PermanentRemovesRows(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(projectRow(10, 1, 1, models.StatusInProgress))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tasks WHERE project_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE project_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`position_index = position_index - 1`)).
		WithArgs(int64(1), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	affected, err := repo.Delete(context.Background(), 1, 10, true, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 3 {
		t.Errorf("expected 3 removed tasks, got %d", affected)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteProject_AlreadyArchivedSkipsCompaction(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(projectRow(10, 1, models.ArchivedPosition, models.StatusDeleted))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tasks WHERE project_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE project_id = $1`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// no compaction exec: the project already sat outside the dense ordering
	mock.ExpectCommit()

	_, err := repo.Delete(context.Background(), 1, 10, true, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRecoverProject_ReactivatesChildren(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	completed := testNow.Add(-72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(projectRow(10, 1, models.ArchivedPosition, models.StatusDeleted))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(position_index) + 1, 0) FROM projects`)).
		WithArgs(int64(1), int(models.StatusDeleted)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET status_id`)).
		WithArgs(int(models.StatusInProgress), 2, testNow, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT task_id, actual_completion_date FROM tasks`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "actual_completion_date"}).
			AddRow(int64(7), nil).
			AddRow(int64(8), completed))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET status_id`)).
		WithArgs(int(models.StatusInProgress), 0, testNow, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE tasks SET status_id`)).
		WithArgs(int(models.StatusCompleted), 1, testNow, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	project, taskIDs, err := repo.Recover(context.Background(), 1, 10, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.PositionIndex != 2 {
		t.Errorf("expected tail position 2, got %d", project.PositionIndex)
	}
	if len(taskIDs) != 2 || taskIDs[0] != 7 || taskIDs[1] != 8 {
		t.Errorf("unexpected task ids: %v", taskIDs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRecoverProject_InvalidState(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), int64(10)).
		WillReturnRows(projectRow(10, 1, 0, models.StatusInProgress))
	mock.ExpectRollback()

	_, _, err := repo.Recover(context.Background(), 1, 10, testNow)
	if !apperr.IsKind(err, apperr.KindInvalidState) {
		t.Errorf("expected InvalidState, got %v", err)
	}
}

func TestSweepOverdueProjects(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE projects SET status_id`)).
		WithArgs(int(models.StatusOverdue), int64(1), sqlmock.AnyArg(), testNow, int(models.StatusDeleted)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM projects`).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnRows(projectRow(10, 1, 0, models.StatusOverdue))
	mock.ExpectCommit()

	projects, err := repo.SweepOverdue(context.Background(), 1, []int64{10}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(projects) != 1 || projects[0].Status != models.StatusOverdue {
		t.Errorf("unexpected sweep result: %+v", projects)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSweepOverdueProjects_EmptySet(t *testing.T) {
	repo, mock, cleanup := setupProjectMock(t)
	defer cleanup()

	projects, err := repo.SweepOverdue(context.Background(), 1, nil, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if projects != nil {
		t.Errorf("expected no projects, got %+v", projects)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected sql calls: %v", err)
	}
}
