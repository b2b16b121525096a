package service

import (
	"context"
	"time"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

const (
	maxProjectTitleLen       = 100
	maxProjectDescriptionLen = 500
)

// ProjectRepository defines the persistence operations needed by the
// ProjectService. Every mutation is atomic.
type ProjectRepository interface {
	Create(ctx context.Context, userID int64, params models.ProjectCreate, now time.Time) (*models.Project, error)
	GetByID(ctx context.Context, userID, projectID int64) (*models.Project, error)
	ListActive(ctx context.Context, userID int64) ([]models.Project, error)
	Update(ctx context.Context, userID, projectID int64, patch models.ProjectPatch, now time.Time) (*models.Project, error)
	Delete(ctx context.Context, userID, projectID int64, permanent bool, now time.Time) (int64, error)
	Recover(ctx context.Context, userID, projectID int64, now time.Time) (*models.Project, []int64, error)
	SweepOverdue(ctx context.Context, userID int64, ids []int64, now time.Time) ([]models.Project, error)
}

// TaskSweeper overdue-sweeps a set of tasks; used after project
// recovery reactivates children.
type TaskSweeper interface {
	SweepOverdue(ctx context.Context, userID int64, ids []int64, now time.Time) ([]models.Task, error)
}

// ProjectService implements the project lifecycle business logic.
type ProjectService struct {
	repo    ProjectRepository
	sweeper TaskSweeper
}

// NewProjectService constructs a ProjectService with the provided
// repository and task sweeper.
func NewProjectService(repo ProjectRepository, sweeper TaskSweeper) *ProjectService {
	return &ProjectService{repo: repo, sweeper: sweeper}
}

// Create validates the input and inserts a project at the tail of the
// user's ordering.
func (s *ProjectService) Create(ctx context.Context, userID int64, in models.ProjectCreate) (*models.Project, error) {
	if in.Title == "" {
		return nil, apperr.Validation("title must not be empty")
	}
	if len(in.Title) > maxProjectTitleLen {
		return nil, apperr.Validation("title exceeds %d characters", maxProjectTitleLen)
	}
	if in.Description != nil && len(*in.Description) > maxProjectDescriptionLen {
		return nil, apperr.Validation("description exceeds %d characters", maxProjectDescriptionLen)
	}
	return s.repo.Create(ctx, userID, in, time.Now().UTC())
}

// Get returns a single project after an overdue sweep. Archived
// projects are reported as NotFound.
func (s *ProjectService) Get(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == models.StatusDeleted {
		return nil, apperr.NotFound("project with ID %d is archived", projectID)
	}

	swept, err := s.repo.SweepOverdue(ctx, userID, []int64{projectID}, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return nil, apperr.NotFound("project with ID %d not found", projectID)
	}
	return &swept[0], nil
}

// List returns the user's active projects in position order after an
// overdue sweep.
func (s *ProjectService) List(ctx context.Context, userID int64) ([]models.Project, error) {
	projects, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []models.Project{}, nil
	}

	ids := make([]int64, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return s.repo.SweepOverdue(ctx, userID, ids, time.Now().UTC())
}

// Update validates and applies a partial update.
func (s *ProjectService) Update(ctx context.Context, userID, projectID int64, patch models.ProjectPatch) (*models.Project, error) {
	if err := validateProjectPatch(patch); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, userID, projectID, patch, time.Now().UTC())
}

// Delete archives or permanently removes a project together with its
// tasks, returning the number of affected tasks.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID int64, permanent bool) (int64, error) {
	return s.repo.Delete(ctx, userID, projectID, permanent, time.Now().UTC())
}

// Recover reactivates an archived project and its tasks, then
// overdue-sweeps both levels.
func (s *ProjectService) Recover(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	now := time.Now().UTC()

	project, taskIDs, err := s.repo.Recover(ctx, userID, projectID, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.sweeper.SweepOverdue(ctx, userID, taskIDs, now); err != nil {
		return nil, err
	}

	swept, err := s.repo.SweepOverdue(ctx, userID, []int64{projectID}, now)
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return project, nil
	}
	return &swept[0], nil
}

func validateProjectPatch(patch models.ProjectPatch) error {
	if patch.PositionIndex != nil && *patch.PositionIndex < 0 {
		return apperr.Validation("position_index must not be negative")
	}
	if patch.Title != nil {
		if *patch.Title == "" {
			return apperr.Validation("title must not be empty")
		}
		if len(*patch.Title) > maxProjectTitleLen {
			return apperr.Validation("title exceeds %d characters", maxProjectTitleLen)
		}
	}
	if patch.Description != nil && len(*patch.Description) > maxProjectDescriptionLen {
		return apperr.Validation("description exceeds %d characters", maxProjectDescriptionLen)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() || *patch.Status == models.StatusDeleted {
			return apperr.Validation("status_id %d is not assignable", int(*patch.Status))
		}
	}
	return nil
}
