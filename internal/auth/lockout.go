package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// LockoutStore persists one record per tracked identity. Get returns
// (zero record, false, nil) when no record exists.
type LockoutStore interface {
	GetLockout(ctx context.Context, key string) (LockoutRecord, bool, error)
	PutLockout(ctx context.Context, record LockoutRecord) error
	DeleteLockout(ctx context.Context, key string) error
}

// LockoutTracker throttles repeated failed logins per identity.
// Expiry is lazy: a stale record is removed by the read that observes
// it, never by a background sweep.
type LockoutTracker struct {
	store       LockoutStore
	maxAttempts int
	window      time.Duration
}

func NewLockoutTracker(store LockoutStore, maxAttempts int, window time.Duration) *LockoutTracker {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LockoutTracker{store: store, maxAttempts: maxAttempts, window: window}
}

// lockoutKey derives the storage key from the email so raw addresses
// never appear as record keys.
func lockoutKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// IsLockedOut reports whether the identity has reached the failure
// threshold inside the lockout window. Reading a record whose window
// has elapsed deletes it and reports false.
func (t *LockoutTracker) IsLockedOut(ctx context.Context, email string, now time.Time) (bool, time.Time, error) {
	key := lockoutKey(email)
	record, found, err := t.store.GetLockout(ctx, key)
	if err != nil {
		return false, time.Time{}, err
	}
	if !found {
		return false, time.Time{}, nil
	}

	if now.Sub(record.LastFailedAt) > t.window {
		if err := t.store.DeleteLockout(ctx, key); err != nil {
			return false, time.Time{}, err
		}
		return false, time.Time{}, nil
	}

	if record.Attempts < t.maxAttempts {
		return false, time.Time{}, nil
	}

	return true, record.LastFailedAt.Add(t.window), nil
}

// RecordFailedAttempt counts one more failure for the identity. A
// failure outside the window starts a fresh count. Concurrent failures
// for the same identity may overwrite each other; the resulting
// undercount is tolerated.
func (t *LockoutTracker) RecordFailedAttempt(ctx context.Context, email string, now time.Time) error {
	key := lockoutKey(email)
	record, found, err := t.store.GetLockout(ctx, key)
	if err != nil {
		return err
	}

	attempts := 1
	firstFailedAt := now
	if found && now.Sub(record.LastFailedAt) <= t.window {
		attempts = record.Attempts + 1
		firstFailedAt = record.FirstFailedAt
	}

	return t.store.PutLockout(ctx, LockoutRecord{
		Key:           key,
		Email:         email,
		Attempts:      attempts,
		FirstFailedAt: firstFailedAt,
		LastFailedAt:  now,
	})
}

// ClearFailedAttempts removes any lockout state for the identity.
// Called on every successful login.
func (t *LockoutTracker) ClearFailedAttempts(ctx context.Context, email string) error {
	return t.store.DeleteLockout(ctx, lockoutKey(email))
}
