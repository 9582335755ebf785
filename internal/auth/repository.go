package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repository is the Postgres-backed store for users, lockout records
// and sessions. It implements Store, LockoutStore and SessionStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, bool, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("query user by email: %w", err)
	}

	return user, true, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (User, bool, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`, id).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, fmt.Errorf("query user by id: %w", err)
	}

	return user, true, nil
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string, now time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING user_id
	`, username, email, passwordHash, now.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	return id, nil
}

// userColumns maps updatable field names to their columns. Field names
// outside this map never reach the SQL text.
var userColumns = map[string]string{
	"username":      "username",
	"email":         "email",
	"password_hash": "password_hash",
}

func (r *Repository) UpdateUser(ctx context.Context, id int64, fields map[string]string, now time.Time) (int64, error) {
	assignments := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	args = append(args, id)

	// Iterate the whitelist, not the input, for a stable column order.
	for field, column := range userColumns {
		value, ok := fields[field]
		if !ok {
			continue
		}
		args = append(args, value)
		assignments = append(assignments, column+" = $"+strconv.Itoa(len(args)))
	}
	if len(assignments) == 0 {
		return 0, fmt.Errorf("update user: no updatable fields")
	}

	args = append(args, now.UTC())
	assignments = append(assignments, "updated_at = $"+strconv.Itoa(len(args)))

	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET `+strings.Join(assignments, ", ")+`
		WHERE user_id = $1
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update user rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) GetLockout(ctx context.Context, key string) (LockoutRecord, bool, error) {
	record := LockoutRecord{Key: key}
	err := r.db.QueryRowContext(ctx, `
		SELECT email, attempts, first_failed_at, last_failed_at
		FROM auth_lockouts
		WHERE lockout_key = $1
	`, key).Scan(&record.Email, &record.Attempts, &record.FirstFailedAt, &record.LastFailedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LockoutRecord{}, false, nil
		}
		return LockoutRecord{}, false, fmt.Errorf("query lockout record: %w", err)
	}

	return record, true, nil
}

func (r *Repository) PutLockout(ctx context.Context, record LockoutRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_lockouts (lockout_key, email, attempts, first_failed_at, last_failed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lockout_key)
		DO UPDATE SET
			attempts = EXCLUDED.attempts,
			first_failed_at = EXCLUDED.first_failed_at,
			last_failed_at = EXCLUDED.last_failed_at
	`, record.Key, record.Email, record.Attempts, record.FirstFailedAt.UTC(), record.LastFailedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert lockout record: %w", err)
	}

	return nil
}

func (r *Repository) DeleteLockout(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_lockouts
		WHERE lockout_key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("delete lockout record: %w", err)
	}

	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (Session, bool, error) {
	var session Session
	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, email, username, login_at
		FROM auth_sessions
		WHERE session_id = $1
	`, id).Scan(&session.ID, &session.UserID, &session.Email, &session.Username, &session.LoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("query session: %w", err)
	}

	return session, true, nil
}

func (r *Repository) PutSession(ctx context.Context, session Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (session_id, user_id, email, username, login_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			login_at = EXCLUDED.login_at
	`, session.ID, session.UserID, session.Email, session.Username, session.LoginAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// TouchSession slides the login timestamp forward. Touching a session
// deleted by a concurrent request affects zero rows and cannot revive
// it.
func (r *Repository) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET login_at = $2
		WHERE session_id = $1 AND login_at <= $2
	`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_sessions
		WHERE session_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// CleanupResult reports what a maintenance sweep removed.
type CleanupResult struct {
	DeletedSessions       int64 `json:"deleted_sessions"`
	DeletedLockouts       int64 `json:"deleted_lockouts"`
	DeletedActivityEvents int64 `json:"deleted_activity_events"`
}

// CleanupStaleAuthData batch-deletes expired sessions, lapsed lockout
// records and old activity rows. Lazy expiry already hides these from
// readers; the sweep only reclaims storage.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, sessionTimeout, lockoutWindow, activityRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if activityRetention <= 0 {
		activityRetention = 90 * 24 * time.Hour
	}

	now := time.Now().UTC()

	deletedSessions, err := r.deleteStaleSessions(ctx, now.Add(-sessionTimeout), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedLockouts, err := r.deleteStaleLockouts(ctx, now.Add(-lockoutWindow), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedEvents, err := r.deleteOldActivityEvents(ctx, now.Add(-activityRetention), batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedSessions:       deletedSessions,
		DeletedLockouts:       deletedLockouts,
		DeletedActivityEvents: deletedEvents,
	}, nil
}

func (r *Repository) deleteStaleSessions(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT session_id
			FROM auth_sessions
			WHERE login_at < $1
			ORDER BY login_at ASC
			LIMIT $2
		)
		DELETE FROM auth_sessions t
		USING stale
		WHERE t.session_id = stale.session_id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale sessions rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) deleteStaleLockouts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT lockout_key
			FROM auth_lockouts
			WHERE last_failed_at < $1
			ORDER BY last_failed_at ASC
			LIMIT $2
		)
		DELETE FROM auth_lockouts t
		USING stale
		WHERE t.lockout_key = stale.lockout_key
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale lockouts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale lockouts rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) deleteOldActivityEvents(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH old AS (
			SELECT event_id
			FROM activity_log
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM activity_log t
		USING old
		WHERE t.event_id = old.event_id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old activity events: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("old activity events rows affected: %w", err)
	}

	return affected, nil
}
