package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/taskboard/internal/models"
)

// StartArchiveCleaner removes archived projects and tasks older than
// the retention window with the given interval. Archived rows carry
// position -1 and are invisible to the API, so deleting them does not
// touch the dense ordering of any scope.
func StartArchiveCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)

				res, err := db.ExecContext(ctx, `
                    DELETE FROM tasks
                     WHERE status_id = $1
                       AND updated_date < $2
                `, int(models.StatusDeleted), cutoff)
				if err != nil {
					log.Error("failed to clean archived tasks", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned archived tasks", zap.Int64("removed", rows))
				}

				res, err = db.ExecContext(ctx, `
                    DELETE FROM projects
                     WHERE status_id = $1
                       AND updated_date < $2
                `, int(models.StatusDeleted), cutoff)
				if err != nil {
					log.Error("failed to clean archived projects", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned archived projects", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
