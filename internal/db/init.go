package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/atinyakov/taskboard/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id SERIAL PRIMARY KEY,
    login TEXT UNIQUE NOT NULL,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_date TIMESTAMPTZ NOT NULL,
    last_login TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS statuses (
    status_id INT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    project_id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    position_index INT NOT NULL,
    status_id INT NOT NULL REFERENCES statuses(status_id),
    title TEXT NOT NULL,
    description TEXT,
    created_date TIMESTAMPTZ NOT NULL,
    desired_completion_date TIMESTAMPTZ,
    actual_completion_date TIMESTAMPTZ,
    updated_date TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    task_id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    project_id INT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
    position_index INT NOT NULL,
    priority INT NOT NULL DEFAULT 0,
    status_id INT NOT NULL REFERENCES statuses(status_id),
    title TEXT NOT NULL,
    description TEXT,
    created_date TIMESTAMPTZ NOT NULL,
    desired_completion_date TIMESTAMPTZ,
    actual_completion_date TIMESTAMPTZ,
    updated_date TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, status_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_project ON tasks(user_id, project_id, status_id);
`

// InitPostgres opens a PostgreSQL connection, creates the schema and
// seeds the status catalog.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := seedStatuses(db); err != nil {
		return nil, fmt.Errorf("seed statuses: %w", err)
	}

	return db, nil
}

// seedStatuses inserts the fixed status catalog, skipping rows that
// already exist so bootstrap stays idempotent.
func seedStatuses(db *sql.DB) error {
	for _, row := range models.Catalog() {
		_, err := db.Exec(
			`INSERT INTO statuses (status_id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			int(row.ID), row.Name,
		)
		if err != nil {
			return fmt.Errorf("insert status %q: %w", row.Name, err)
		}
	}
	return nil
}
