package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const defaultPasswordMinLength = 8

// Store is the credential store the service orchestrates. Lookups
// return (zero value, false, nil) when no row matches.
type Store interface {
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	GetByID(ctx context.Context, id int64) (User, bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, username, email, passwordHash string, now time.Time) (int64, error)
	UpdateUser(ctx context.Context, id int64, fields map[string]string, now time.Time) (int64, error)
}

// AuditRecorder receives one event per completed auth operation.
// Recording must never fail the operation that triggered it.
type AuditRecorder interface {
	Record(ctx context.Context, userID int64, action, details string)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, int64, string, string) {}

// Service implements register, login, logout, profile and password
// changes, and token verification over the credential store, the
// lockout tracker and the session manager.
type Service struct {
	store          Store
	sessions       *SessionManager
	lockouts       *LockoutTracker
	tokens         *TokenCodec
	hasher         *Hasher
	audit          AuditRecorder
	minPasswordLen int
	now            func() time.Time
}

func NewService(store Store, sessions *SessionManager, lockouts *LockoutTracker, tokens *TokenCodec, hasher *Hasher) *Service {
	return &Service{
		store:          store,
		sessions:       sessions,
		lockouts:       lockouts,
		tokens:         tokens,
		hasher:         hasher,
		audit:          nopAudit{},
		minPasswordLen: defaultPasswordMinLength,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithAudit(recorder AuditRecorder) *Service {
	if recorder != nil {
		s.audit = recorder
	}
	return s
}

func (s *Service) WithPasswordMinLength(min int) *Service {
	if min > 0 {
		s.minPasswordLen = min
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates a new user and returns its id. The duplicate-email
// check runs before the duplicate-username check, so a dual conflict
// surfaces the email error.
func (s *Service) Register(ctx context.Context, username, email, password, confirm string) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if username == "" || email == "" || password == "" {
		return 0, ValidationError{Message: "All fields are required"}
	}
	if !emailRegex.MatchString(email) {
		return 0, ValidationError{Message: "Invalid email format"}
	}
	if len(password) < s.minPasswordLen {
		return 0, validationf("Password must be at least %d characters", s.minPasswordLen)
	}
	if password != confirm {
		return 0, ValidationError{Message: "Passwords do not match"}
	}

	emailTaken, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("registration failed: %w", err)
	}
	if emailTaken {
		return 0, ConflictError{Message: "Email already registered"}
	}

	usernameTaken, err := s.store.UsernameExists(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("registration failed: %w", err)
	}
	if usernameTaken {
		return 0, ConflictError{Message: "Username already taken"}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("registration failed: %w", err)
	}

	userID, err := s.store.CreateUser(ctx, username, email, hash, s.now())
	if err != nil {
		return 0, fmt.Errorf("registration failed: %w", err)
	}

	s.audit.Record(ctx, userID, "REGISTER", "User registered with email: "+email)

	return userID, nil
}

// Login verifies credentials and, on success, establishes a session
// and mints a bearer token. Unknown-email and wrong-password failures
// are indistinguishable to the caller, and both count against the
// lockout tracker for the submitted email.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" || password == "" {
		return User{}, "", "", ValidationError{Message: "Email and password are required"}
	}
	if !emailRegex.MatchString(email) {
		return User{}, "", "", ValidationError{Message: "Invalid email format"}
	}

	now := s.now()
	locked, until, err := s.lockouts.IsLockedOut(ctx, email, now)
	if err != nil {
		return User{}, "", "", fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		return User{}, "", "", ErrLocked{Until: until}
	}

	user, found, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return User{}, "", "", fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		if err := s.lockouts.RecordFailedAttempt(ctx, email, now); err != nil {
			return User{}, "", "", fmt.Errorf("record failed attempt: %w", err)
		}
		return User{}, "", "", ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if err := s.lockouts.RecordFailedAttempt(ctx, email, now); err != nil {
			return User{}, "", "", fmt.Errorf("record failed attempt: %w", err)
		}
		return User{}, "", "", ErrInvalidCredentials
	}

	if err := s.lockouts.ClearFailedAttempts(ctx, email); err != nil {
		return User{}, "", "", fmt.Errorf("clear failed attempts: %w", err)
	}

	sessionID, err := s.sessions.Create(ctx, user.ID, user.Email, user.Username, now)
	if err != nil {
		return User{}, "", "", fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Sign(user.ID, user.Email)
	if err != nil {
		// A failed login must not leave a live session behind.
		_ = s.sessions.Destroy(ctx, sessionID)
		return User{}, "", "", fmt.Errorf("sign token: %w", err)
	}

	s.audit.Record(ctx, user.ID, "LOGIN", "User logged in")

	return user, token, sessionID, nil
}

// Logout destroys the session unconditionally, auditing the event
// when the handle still named a live session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	session, ok, err := s.sessions.Validate(ctx, sessionID, s.now())
	if err != nil {
		return fmt.Errorf("validate session: %w", err)
	}
	if ok {
		s.audit.Record(ctx, session.UserID, "LOGOUT", "User logged out")
	}

	return s.sessions.Destroy(ctx, sessionID)
}

// IsLoggedIn reports whether the handle names a live session,
// refreshing its sliding window as a side effect.
func (s *Service) IsLoggedIn(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := s.sessions.Validate(ctx, sessionID, s.now())
	return ok, err
}

// CurrentUser resolves the session to its user row.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (User, error) {
	session, ok, err := s.sessions.Validate(ctx, sessionID, s.now())
	if err != nil {
		return User{}, fmt.Errorf("validate session: %w", err)
	}
	if !ok {
		return User{}, ErrNotAuthenticated
	}

	user, found, err := s.store.GetByID(ctx, session.UserID)
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		return User{}, ErrUserNotFound
	}

	return user, nil
}

// profileFields is the whitelist of columns a profile update may touch.
var profileFields = map[string]bool{
	"username": true,
	"email":    true,
}

// UpdateProfile applies whitelisted fields to the user row.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, fields map[string]string) error {
	sanitized := make(map[string]string, len(fields))
	for key, value := range fields {
		if !profileFields[key] {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if key == "email" {
			value = strings.ToLower(value)
			if !emailRegex.MatchString(value) {
				return ValidationError{Message: "Invalid email format"}
			}
		}
		sanitized[key] = value
	}
	if len(sanitized) == 0 {
		return ValidationError{Message: "No fields to update"}
	}

	affected, err := s.store.UpdateUser(ctx, userID, sanitized, s.now())
	if err != nil {
		return fmt.Errorf("profile update failed: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	s.audit.Record(ctx, userID, "UPDATE_PROFILE", "User updated profile information")

	return nil
}

// ChangePassword verifies the current password before storing a new
// hash. A wrong current password leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, newPassword, confirm string) error {
	if current == "" || newPassword == "" {
		return ValidationError{Message: "All fields are required"}
	}
	if len(newPassword) < s.minPasswordLen {
		return validationf("New password must be at least %d characters", s.minPasswordLen)
	}
	if newPassword != confirm {
		return ValidationError{Message: "New passwords do not match"}
	}

	user, found, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		return ErrUserNotFound
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		return ValidationError{Message: "Current password is incorrect"}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password change failed: %w", err)
	}

	if _, err := s.store.UpdateUser(ctx, userID, map[string]string{"password_hash": hash}, s.now()); err != nil {
		return fmt.Errorf("password change failed: %w", err)
	}

	s.audit.Record(ctx, userID, "CHANGE_PASSWORD", "User changed password")

	return nil
}

// VerifyToken checks a bearer token and returns its claims. All
// failure modes surface as one generic error.
func (s *Service) VerifyToken(token string) (jwt.MapClaims, error) {
	return s.tokens.Verify(token)
}
