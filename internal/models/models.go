// Package models defines the core data structures for users, projects,
// tasks and their lifecycle statuses.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"user_id"`
	// Login is the unique login name chosen by the user.
	Login string `json:"login"`
	// Email is the unique email address of the user.
	Email string `json:"email"`
	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized to clients.
	PasswordHash string `json:"-"`
	// CreatedDate is when the account was registered.
	CreatedDate time.Time `json:"created_date"`
	// LastLogin is updated on every successful login.
	LastLogin time.Time `json:"last_login"`
}

// Project groups tasks and carries a dense position among the
// user's active projects.
type Project struct {
	// ID is the unique identifier for the project.
	ID int64 `json:"project_id"`
	// UserID is the owner of the project.
	UserID int64 `json:"user_id"`
	// PositionIndex is the zero-based rank among the user's active
	// projects, or -1 when the project is archived.
	PositionIndex int `json:"position_index"`
	// Status is the current lifecycle status.
	Status Status `json:"status_id"`
	// Title is the project name.
	Title string `json:"title"`
	// Description is optional free-form text.
	Description *string `json:"description,omitempty"`
	// CreatedDate is when the project was created.
	CreatedDate time.Time `json:"created_date"`
	// DesiredCompletionDate is the optional deadline.
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
	// ActualCompletionDate, when set, marks the project completed.
	ActualCompletionDate *time.Time `json:"actual_completion_date,omitempty"`
	// UpdatedDate is bumped on every mutation.
	UpdatedDate time.Time `json:"updated_date"`
}

// Task is a unit of work inside a project. PositionIndex is dense
// per (user, project) scope; -1 when archived.
type Task struct {
	ID                    int64      `json:"task_id"`
	UserID                int64      `json:"user_id"`
	ProjectID             int64      `json:"project_id"`
	PositionIndex         int        `json:"position_index"`
	Priority              int        `json:"priority"`
	Status                Status     `json:"status_id"`
	Title                 string     `json:"title"`
	Description           *string    `json:"description,omitempty"`
	CreatedDate           time.Time  `json:"created_date"`
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
	ActualCompletionDate  *time.Time `json:"actual_completion_date,omitempty"`
	UpdatedDate           time.Time  `json:"updated_date"`
}

// ProjectPatch carries the optional fields of a project update.
// A nil field means "leave unchanged".
type ProjectPatch struct {
	PositionIndex         *int       `json:"position_index,omitempty"`
	Title                 *string    `json:"title,omitempty"`
	Description           *string    `json:"description,omitempty"`
	Status                *Status    `json:"status_id,omitempty"`
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
	ActualCompletionDate  *time.Time `json:"actual_completion_date,omitempty"`
}

// TaskPatch carries the optional fields of a task update.
type TaskPatch struct {
	PositionIndex         *int       `json:"position_index,omitempty"`
	Priority              *int       `json:"priority,omitempty"`
	Title                 *string    `json:"title,omitempty"`
	Description           *string    `json:"description,omitempty"`
	Status                *Status    `json:"status_id,omitempty"`
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
	ActualCompletionDate  *time.Time `json:"actual_completion_date,omitempty"`
}

// ProjectCreate carries the fields accepted on project creation.
type ProjectCreate struct {
	Title                 string     `json:"title"`
	Description           *string    `json:"description,omitempty"`
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
}

// TaskCreate carries the fields accepted on task creation.
type TaskCreate struct {
	ProjectID             int64      `json:"project_id"`
	Title                 string     `json:"title"`
	Description           *string    `json:"description,omitempty"`
	Priority              int        `json:"priority"`
	DesiredCompletionDate *time.Time `json:"desired_completion_date,omitempty"`
}

// ArchivedPosition is the position assigned to archived entities,
// excluding them from the dense ordering of their scope.
const ArchivedPosition = -1

// MaxPriority bounds the task priority range 0..2 (low, medium, high).
const MaxPriority = 2
