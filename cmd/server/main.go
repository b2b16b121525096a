// Package main initializes and starts the taskboard HTTP server,
// setting up configuration, logging, the database connection,
// repositories, services and handlers.
package main

import (
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/taskboard/internal/config"
	"github.com/atinyakov/taskboard/internal/db"
	"github.com/atinyakov/taskboard/internal/logger"
	"github.com/atinyakov/taskboard/internal/repository"
	"github.com/atinyakov/taskboard/internal/server/handler/http"
	"github.com/atinyakov/taskboard/internal/service"
	"github.com/atinyakov/taskboard/internal/token"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// orDefault returns the first of its arguments that is not the zero
// value; it mirrors cmp.Or, which requires Go 1.22+.
func orDefault[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if options.JWTSecret == "" {
		zapLogger.Fatal("JWT signing secret is required (flag -s or SECRET_KEY)")
	}

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Periodically purge archived projects and tasks past retention.
	db.StartArchiveCleaner(context.Background(), postgresDB,
		time.Hour,
		time.Duration(options.ArchiveRetentionDays)*24*time.Hour,
		zapLogger,
	)

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	projectRepo := repository.NewPostgresProjectRepository(postgresDB)
	taskRepo := repository.NewPostgresTaskRepository(postgresDB)

	// Initialize token manager and business-logic services.
	tokens := token.NewManager(options.JWTSecret,
		time.Duration(options.TokenTTLMinutes*float64(time.Minute)))
	authService := service.NewAuthService(userRepo, tokens)
	projectService := service.NewProjectService(projectRepo, taskRepo)
	taskService := service.NewTaskService(taskRepo)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService}
	projectHandler := &http.ProjectHandler{ProjectService: projectService, AuthService: authService}
	taskHandler := &http.TaskHandler{TaskService: taskService, AuthService: authService}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, projectHandler, taskHandler, tokens, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Address,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
