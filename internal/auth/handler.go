package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	sessionCookieName = "session_id"
	maxJSONBodyBytes  = 1 << 20
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	userID, err := h.service.Register(r.Context(), body.Username, body.Email, body.Password, body.ConfirmPassword)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registration successful",
		"userId":  userID,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	user, token, sessionID, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeFailure(w, err)
		return
	}

	setSessionCookie(w, sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"userId":  user.ID,
		"token":   token,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), sessionIDFromRequest(r)); err != nil {
		writeFailure(w, err)
		return
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		writeFailure(w, err)
		return
	}

	var body updateProfileRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	fields := map[string]string{
		"username": body.Username,
		"email":    body.Email,
	}
	if err := h.service.UpdateProfile(r.Context(), user.ID, fields); err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile updated successfully",
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		writeFailure(w, err)
		return
	}

	var body changePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, body.CurrentPassword, body.NewPassword, body.ConfirmPassword); err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}

func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var body verifyTokenRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	claims, err := h.service.VerifyToken(body.Token)
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payload": claims,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Invalid JSON body",
		})
		return false
	}
	return true
}

func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeFailure maps the error taxonomy onto HTTP statuses and the
// {success, message} record shape. Unrecognized errors are reported to
// Sentry and collapse into a generic 500.
func writeFailure(w http.ResponseWriter, err error) {
	var validationErr ValidationError
	var conflictErr ConflictError
	var lockedErr ErrLocked

	switch {
	case errors.As(err, &validationErr):
		writeFailureMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &conflictErr):
		writeFailureMessage(w, http.StatusBadRequest, conflictErr.Message)
	case errors.As(err, &lockedErr):
		retryAfter := int(time.Until(lockedErr.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeFailureMessage(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later")
	case errors.Is(err, ErrInvalidCredentials):
		writeFailureMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ErrInvalidToken):
		writeFailureMessage(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, ErrNotAuthenticated):
		writeFailureMessage(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, ErrUserNotFound):
		writeFailureMessage(w, http.StatusNotFound, "User not found")
	default:
		sentry.CaptureException(err)
		writeFailureMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeFailureMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
