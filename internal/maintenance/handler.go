package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"aetherium-hardware/internal/auth"
	"aetherium-hardware/internal/observability"
)

// CleanupHandler reclaims storage from records that lazy expiry has
// already hidden: expired sessions, lapsed lockouts, old activity
// rows. Exposed only to the cron caller that knows the shared secret;
// the route plays dead when no secret is configured.
type CleanupHandler struct {
	repo              *auth.Repository
	logger            *observability.Logger
	cronSecret        string
	sessionTimeout    time.Duration
	lockoutWindow     time.Duration
	activityRetention time.Duration
	batchSize         int
}

func NewCleanupHandler(
	repo *auth.Repository,
	logger *observability.Logger,
	cronSecret string,
	sessionTimeout time.Duration,
	lockoutWindow time.Duration,
	activityRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		repo:              repo,
		logger:            logger,
		cronSecret:        strings.TrimSpace(cronSecret),
		sessionTimeout:    sessionTimeout,
		lockoutWindow:     lockoutWindow,
		activityRetention: activityRetention,
		batchSize:         batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.repo.CleanupStaleAuthData(r.Context(), h.sessionTimeout, h.lockoutWindow, h.activityRetention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_sessions":        result.DeletedSessions,
		"deleted_lockouts":        result.DeletedLockouts,
		"deleted_activity_events": result.DeletedActivityEvents,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
