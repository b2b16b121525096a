package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atinyakov/taskboard/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the taskboard API.
//
// Routes:
//
//	POST   /api/register                    → authHandler.Register
//	POST   /api/login                       → authHandler.Login
//	POST   /api/refresh                     → authHandler.Refresh
//	GET    /api/user                        → authHandler.Me       (token)
//	GET    /api/projects                    → projectHandler.List  (token)
//	POST   /api/projects                    → projectHandler.Create
//	GET    /api/projects/{projectID}        → projectHandler.Get
//	PATCH  /api/projects/{projectID}        → projectHandler.Update
//	DELETE /api/projects/{projectID}        → projectHandler.Delete
//	POST   /api/projects/{projectID}/recover → projectHandler.Recover
//	GET    /api/tasks                       → taskHandler.List (?project_id=)
//	POST   /api/tasks                       → taskHandler.Create
//	GET    /api/tasks/{taskID}              → taskHandler.Get
//	PATCH  /api/tasks/{taskID}              → taskHandler.Update
//	DELETE /api/tasks/{taskID}              → taskHandler.Delete
//	POST   /api/tasks/{taskID}/recover      → taskHandler.Recover
func NewRouter(
	authHandler *AuthHandler,
	projectHandler *ProjectHandler,
	taskHandler *TaskHandler,
	parser middleware.TokenParser,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(parser))

			r.Get("/user", authHandler.Me)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Patch("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)
					r.Post("/recover", projectHandler.Recover)
				})
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", taskHandler.Get)
					r.Patch("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)
					r.Post("/recover", taskHandler.Recover)
				})
			})
		})
	})

	return r
}
