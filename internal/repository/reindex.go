// Package repository provides persistence implementations for users,
// projects and tasks using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/taskboard/internal/models"
)

// scope identifies the set of sibling rows across which
// position_index must stay dense: all projects of a user, or all
// tasks of a user within one project. cond uses placeholders
// $1..$len(args); helpers append their own placeholders after that.
type scope struct {
	table string
	cond  string
	args  []any
}

func projectScope(userID int64) scope {
	return scope{table: "projects", cond: "user_id = $1", args: []any{userID}}
}

func taskScope(userID, projectID int64) scope {
	return scope{table: "tasks", cond: "user_id = $1 AND project_id = $2", args: []any{userID, projectID}}
}

// nextPosition returns max(position_index)+1 over the non-archived
// rows of the scope, or 0 when the scope is empty. Must run inside
// the same transaction as the insert that consumes it.
func nextPosition(ctx context.Context, tx *sql.Tx, sc scope) (int, error) {
	n := len(sc.args)
	query := fmt.Sprintf(
		`SELECT COALESCE(MAX(position_index) + 1, 0) FROM %s WHERE %s AND status_id != $%d`,
		sc.table, sc.cond, n+1,
	)
	args := append(append([]any{}, sc.args...), int(models.StatusDeleted))

	var next int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return next, nil
}

// maxPosition returns the current maximum position_index among the
// non-archived rows of the scope, or 0 when the scope is empty.
func maxPosition(ctx context.Context, tx *sql.Tx, sc scope) (int, error) {
	n := len(sc.args)
	query := fmt.Sprintf(
		`SELECT COALESCE(MAX(position_index), 0) FROM %s WHERE %s AND status_id != $%d`,
		sc.table, sc.cond, n+1,
	)
	args := append(append([]any{}, sc.args...), int(models.StatusDeleted))

	var max int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	return max, nil
}

// shiftForMove re-ranks the rows between oldIndex and newIndex so the
// moved row can take newIndex, equivalent to a single-element
// remove-and-reinsert. The moved row itself is updated by the caller.
func shiftForMove(ctx context.Context, tx *sql.Tx, sc scope, oldIndex, newIndex int) error {
	if newIndex == oldIndex {
		return nil
	}

	n := len(sc.args)
	var query string
	if newIndex > oldIndex {
		// Everything between the old and the new slot moves down by one.
		query = fmt.Sprintf(
			`UPDATE %s SET position_index = position_index - 1
			  WHERE %s AND status_id != $%d AND position_index > $%d AND position_index <= $%d`,
			sc.table, sc.cond, n+1, n+2, n+3,
		)
	} else {
		// Everything between the new and the old slot moves up by one.
		query = fmt.Sprintf(
			`UPDATE %s SET position_index = position_index + 1
			  WHERE %s AND status_id != $%d AND position_index >= $%d AND position_index < $%d`,
			sc.table, sc.cond, n+1, n+2, n+3,
		)
	}

	args := append(append([]any{}, sc.args...), int(models.StatusDeleted))
	if newIndex > oldIndex {
		args = append(args, oldIndex, newIndex)
	} else {
		args = append(args, newIndex, oldIndex)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("shift positions: %w", err)
	}
	return nil
}

// compactAfterRemoval closes the gap left by a row that left the
// dense ordering: every row ranked after removedIndex moves down by
// one. Archived rows sit at position -1 and are never matched, so no
// status filter is needed. Callers must skip this when the removed
// row was already archived, otherwise the scope would be compacted
// twice.
func compactAfterRemoval(ctx context.Context, tx *sql.Tx, sc scope, removedIndex int) error {
	n := len(sc.args)
	query := fmt.Sprintf(
		`UPDATE %s SET position_index = position_index - 1 WHERE %s AND position_index > $%d`,
		sc.table, sc.cond, n+1,
	)
	args := append(append([]any{}, sc.args...), removedIndex)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("compact positions: %w", err)
	}
	return nil
}

// clampIndex bounds a requested position to [0, max].
func clampIndex(requested, max int) int {
	if requested > max {
		return max
	}
	if requested < 0 {
		return 0
	}
	return requested
}
