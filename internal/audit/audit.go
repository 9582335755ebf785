// Package audit records user activity events. Events are written to
// the activity_log table and mirrored as structured log lines; a
// failed write is logged but never fails the operation that produced
// the event.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aetherium-hardware/internal/observability"
)

type Recorder struct {
	db     *sql.DB
	logger *observability.Logger
	now    func() time.Time
}

func NewRecorder(db *sql.DB, logger *observability.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, userID int64, action, details string) {
	at := r.now()

	r.logger.Info("activity", map[string]any{
		"user_id": userID,
		"action":  action,
		"details": details,
	})

	if err := r.insert(ctx, userID, action, details, at); err != nil {
		r.logger.Error("activity_write_failed", map[string]any{
			"user_id": userID,
			"action":  action,
			"error":   err.Error(),
		})
	}
}

func (r *Recorder) insert(ctx context.Context, userID int64, action, details string, at time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_log (event_id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id.String(), userID, action, details, at)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}

	return nil
}
