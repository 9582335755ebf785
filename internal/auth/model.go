package auth

import (
	"errors"
	"fmt"
	"time"
)

type User struct {
	ID           int64     `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session is the server-side login state bound to an opaque handle.
type Session struct {
	ID       string
	UserID   int64
	Email    string
	Username string
	LoginAt  time.Time
}

// LockoutRecord tracks consecutive failed logins for one identity.
// Every failure is persisted; the identity is locked once the count
// reaches the configured threshold within the lockout window.
type LockoutRecord struct {
	Key           string
	Email         string
	Attempts      int
	FirstFailedAt time.Time
	LastFailedAt  time.Time
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// ErrLocked is returned while an identity sits inside its lockout
// window. Until reports when the window elapses.
type ErrLocked struct {
	Until time.Time
}

func (e ErrLocked) Error() string {
	return "too many login attempts, please try again later"
}

// ValidationError carries a message safe to surface verbatim.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func validationf(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError signals a duplicate email or username on registration.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string {
	return e.Message
}
