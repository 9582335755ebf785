package auth

import (
	"net/http"
	"strings"
)

// Middleware guards a route behind the bearer token. The token is
// verified statelessly; no session lookup happens here.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeFailureMessage(w, http.StatusUnauthorized, "Missing authorization token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeFailureMessage(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		if _, err := h.service.VerifyToken(strings.TrimSpace(parts[1])); err != nil {
			writeFailureMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
