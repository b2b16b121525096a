package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/taskboard/internal/models"
)

// ProjectService defines the project lifecycle operations required by
// the HTTP handlers.
type ProjectService interface {
	Create(ctx context.Context, userID int64, in models.ProjectCreate) (*models.Project, error)
	Get(ctx context.Context, userID, projectID int64) (*models.Project, error)
	List(ctx context.Context, userID int64) ([]models.Project, error)
	Update(ctx context.Context, userID, projectID int64, patch models.ProjectPatch) (*models.Project, error)
	Delete(ctx context.Context, userID, projectID int64, permanent bool) (int64, error)
	Recover(ctx context.Context, userID, projectID int64) (*models.Project, error)
}

// ProjectHandler handles project CRUD and recovery requests.
type ProjectHandler struct {
	ProjectService ProjectService
	AuthService    AuthService
}

// DeleteProjectResponse reports how many tasks a project deletion
// touched.
type DeleteProjectResponse struct {
	Status        string `json:"status"`
	AffectedTasks int64  `json:"affected_tasks"`
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	var in models.ProjectCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	project, err := h.ProjectService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	projects, err := h.ProjectService.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// Get handles GET /api/projects/{projectID}.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.ProjectService.Get(r.Context(), user.ID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Update handles PATCH /api/projects/{projectID}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var patch models.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	project, err := h.ProjectService.Update(r.Context(), user.ID, projectID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{projectID}. The permanent
// query flag switches from archiving to a hard delete.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	affected, err := h.ProjectService.Delete(r.Context(), user.ID, projectID, permanentFlag(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteProjectResponse{Status: "ok", AffectedTasks: affected})
}

// Recover handles POST /api/projects/{projectID}/recover.
func (h *ProjectHandler) Recover(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.ProjectService.Recover(r.Context(), user.ID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// pathID parses a numeric chi URL parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// permanentFlag reports whether the request asked for a hard delete.
func permanentFlag(r *http.Request) bool {
	return r.URL.Query().Get("permanent") == "true"
}
