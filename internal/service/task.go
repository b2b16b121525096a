package service

import (
	"context"
	"time"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

const (
	maxTaskTitleLen       = 200
	maxTaskDescriptionLen = 1000
)

// TaskRepository defines the persistence operations needed by the
// TaskService.
type TaskRepository interface {
	Create(ctx context.Context, userID int64, params models.TaskCreate, now time.Time) (*models.Task, error)
	GetByID(ctx context.Context, userID, taskID int64) (*models.Task, error)
	ListByProject(ctx context.Context, userID, projectID int64) ([]models.Task, error)
	ListAll(ctx context.Context, userID int64) ([]models.Task, error)
	Update(ctx context.Context, userID, taskID int64, patch models.TaskPatch, now time.Time) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID int64, permanent bool, now time.Time) error
	Recover(ctx context.Context, userID, taskID int64, now time.Time) (*models.Task, error)
	SweepOverdue(ctx context.Context, userID int64, ids []int64, now time.Time) ([]models.Task, error)
}

// TaskService implements the task lifecycle business logic.
type TaskService struct {
	repo TaskRepository
}

// NewTaskService constructs a TaskService with the provided repository.
func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

// Create validates the input and inserts a task at the tail of its
// project's ordering.
func (s *TaskService) Create(ctx context.Context, userID int64, in models.TaskCreate) (*models.Task, error) {
	if in.Title == "" {
		return nil, apperr.Validation("title must not be empty")
	}
	if len(in.Title) > maxTaskTitleLen {
		return nil, apperr.Validation("title exceeds %d characters", maxTaskTitleLen)
	}
	if in.Description != nil && len(*in.Description) > maxTaskDescriptionLen {
		return nil, apperr.Validation("description exceeds %d characters", maxTaskDescriptionLen)
	}
	if in.Priority < 0 || in.Priority > models.MaxPriority {
		return nil, apperr.Validation("priority must be between 0 and %d", models.MaxPriority)
	}
	return s.repo.Create(ctx, userID, in, time.Now().UTC())
}

// Get returns a single task after an overdue sweep. Archived tasks are
// reported as NotFound.
func (s *TaskService) Get(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.StatusDeleted {
		return nil, apperr.NotFound("task with ID %d is archived", taskID)
	}

	swept, err := s.repo.SweepOverdue(ctx, userID, []int64{taskID}, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return nil, apperr.NotFound("task with ID %d not found", taskID)
	}
	return &swept[0], nil
}

// List returns the user's active tasks after an overdue sweep. When
// projectID is non-nil the result is limited to that project and
// ordered by position, otherwise all of the user's tasks are returned.
func (s *TaskService) List(ctx context.Context, userID int64, projectID *int64) ([]models.Task, error) {
	var (
		tasks []models.Task
		err   error
	)
	if projectID != nil {
		tasks, err = s.repo.ListByProject(ctx, userID, *projectID)
	} else {
		tasks, err = s.repo.ListAll(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []models.Task{}, nil
	}

	ids := make([]int64, 0, len(tasks))
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	return s.repo.SweepOverdue(ctx, userID, ids, time.Now().UTC())
}

// Update validates and applies a partial update.
func (s *TaskService) Update(ctx context.Context, userID, taskID int64, patch models.TaskPatch) (*models.Task, error) {
	if err := validateTaskPatch(patch); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, userID, taskID, patch, time.Now().UTC())
}

// Delete archives or permanently removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64, permanent bool) error {
	return s.repo.Delete(ctx, userID, taskID, permanent, time.Now().UTC())
}

// Recover reactivates an archived task, then overdue-sweeps it.
func (s *TaskService) Recover(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	now := time.Now().UTC()

	task, err := s.repo.Recover(ctx, userID, taskID, now)
	if err != nil {
		return nil, err
	}

	swept, err := s.repo.SweepOverdue(ctx, userID, []int64{taskID}, now)
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return task, nil
	}
	return &swept[0], nil
}

func validateTaskPatch(patch models.TaskPatch) error {
	if patch.PositionIndex != nil && *patch.PositionIndex < 0 {
		return apperr.Validation("position_index must not be negative")
	}
	if patch.Title != nil {
		if *patch.Title == "" {
			return apperr.Validation("title must not be empty")
		}
		if len(*patch.Title) > maxTaskTitleLen {
			return apperr.Validation("title exceeds %d characters", maxTaskTitleLen)
		}
	}
	if patch.Description != nil && len(*patch.Description) > maxTaskDescriptionLen {
		return apperr.Validation("description exceeds %d characters", maxTaskDescriptionLen)
	}
	if patch.Priority != nil && (*patch.Priority < 0 || *patch.Priority > models.MaxPriority) {
		return apperr.Validation("priority must be between 0 and %d", models.MaxPriority)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() || *patch.Status == models.StatusDeleted {
			return apperr.Validation("status_id %d is not assignable", int(*patch.Status))
		}
	}
	return nil
}
