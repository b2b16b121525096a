package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/atinyakov/taskboard/internal/models"
)

// TaskService defines the task lifecycle operations required by the
// HTTP handlers.
type TaskService interface {
	Create(ctx context.Context, userID int64, in models.TaskCreate) (*models.Task, error)
	Get(ctx context.Context, userID, taskID int64) (*models.Task, error)
	List(ctx context.Context, userID int64, projectID *int64) ([]models.Task, error)
	Update(ctx context.Context, userID, taskID int64, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID int64, permanent bool) error
	Recover(ctx context.Context, userID, taskID int64) (*models.Task, error)
}

// TaskHandler handles task CRUD and recovery requests.
type TaskHandler struct {
	TaskService TaskService
	AuthService AuthService
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	var in models.TaskCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	task, err := h.TaskService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// List handles GET /api/tasks, optionally filtered by the project_id
// query parameter.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	var projectID *int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid project_id", http.StatusBadRequest)
			return
		}
		projectID = &id
	}

	tasks, err := h.TaskService.List(r.Context(), user.ID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{taskID}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}

	task, err := h.TaskService.Get(r.Context(), user.ID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Update handles PATCH /api/tasks/{taskID}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}

	var patch models.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	task, err := h.TaskService.Update(r.Context(), user.ID, taskID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{taskID}. The permanent query flag
// switches from archiving to a hard delete.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}

	if err := h.TaskService.Delete(r.Context(), user.ID, taskID, permanentFlag(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Recover handles POST /api/tasks/{taskID}/recover.
func (h *TaskHandler) Recover(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}

	task, err := h.TaskService.Recover(r.Context(), user.ID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}
