package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists sessions keyed by their opaque handle. Get
// returns (zero session, false, nil) when the handle is unknown.
// Touch moves the login timestamp forward only while the session
// still exists, so a concurrent delete cannot be undone.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (Session, bool, error)
	PutSession(ctx context.Context, session Session) error
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
}

// SessionManager owns login-state lifecycle: opaque handles, sliding
// expiration, lazy read-triggered expiry.
type SessionManager struct {
	store   SessionStore
	timeout time.Duration
}

func NewSessionManager(store SessionStore, timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &SessionManager{store: store, timeout: timeout}
}

// Create establishes a session for the identity and returns its
// handle. A collision on the handle overwrites the prior session.
func (m *SessionManager) Create(ctx context.Context, userID int64, email, username string, now time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	session := Session{
		ID:       id.String(),
		UserID:   userID,
		Email:    email,
		Username: username,
		LoginAt:  now,
	}
	if err := m.store.PutSession(ctx, session); err != nil {
		return "", err
	}

	return session.ID, nil
}

// Validate reports whether the handle names a live session. An expired
// session is deleted on the spot and never revived; a live one has its
// login timestamp refreshed to now (sliding window).
func (m *SessionManager) Validate(ctx context.Context, id string, now time.Time) (Session, bool, error) {
	if id == "" {
		return Session{}, false, nil
	}

	session, found, err := m.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, false, err
	}
	if !found {
		return Session{}, false, nil
	}

	if now.Sub(session.LoginAt) > m.timeout {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return Session{}, false, err
		}
		return Session{}, false, nil
	}

	if err := m.store.TouchSession(ctx, id, now); err != nil {
		return Session{}, false, err
	}
	session.LoginAt = now

	return session, true, nil
}

// Destroy removes the session. Destroying an unknown handle is a no-op.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, id)
}
