package models

import "time"

// Status is the lifecycle status of a project or task, stored as a
// numeric id referencing the statuses catalog table.
type Status int

const (
	// StatusInProgress is the default status of active entities.
	StatusInProgress Status = 0
	// StatusCompleted marks entities with an actual completion date.
	StatusCompleted Status = 1
	// StatusOverdue marks entities whose deadline passed without completion.
	StatusOverdue Status = 2
	// StatusDeleted marks archived entities; such entities always have
	// PositionIndex == ArchivedPosition.
	StatusDeleted Status = 3
)

// statusNames is the seed catalog, indexed by status id.
var statusNames = map[Status]string{
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusOverdue:    "overdue",
	StatusDeleted:    "deleted",
}

// String returns the catalog name of the status, or "unknown".
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the catalog statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// StatusSeed is one row of the statuses catalog table.
type StatusSeed struct {
	ID   Status
	Name string
}

// Catalog returns the full status catalog in id order, used to seed
// the statuses table at bootstrap.
func Catalog() []StatusSeed {
	all := []Status{StatusInProgress, StatusCompleted, StatusOverdue, StatusDeleted}
	out := make([]StatusSeed, 0, len(all))
	for _, s := range all {
		out = append(out, StatusSeed{ID: s, Name: statusNames[s]})
	}
	return out
}

// DeriveStatus computes the lifecycle status from the completion date
// fields and an optional explicitly requested status.
//
// Precedence:
//  1. an actual completion date always wins and yields StatusCompleted,
//     even over an explicit request;
//  2. a desired completion date in the past yields StatusOverdue;
//  3. otherwise the explicit status is used if provided, else current
//     is kept.
//
// The function is pure and idempotent; callers persist the result.
func DeriveStatus(explicit *Status, desired, actual *time.Time, current Status, now time.Time) Status {
	if actual != nil {
		return StatusCompleted
	}
	if desired != nil && desired.Before(now) {
		return StatusOverdue
	}
	if explicit != nil {
		return *explicit
	}
	return current
}
