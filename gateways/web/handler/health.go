package handler

import (
	"net/http"
	"time"

	"github.com/voiceline/gateway/pkg/json"
)

// HealthHandler reports gateway liveness plus backend connectivity, which
// clients use to grey out upload controls when the backend is down.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	backendStatus := "connected"
	if _, err := h.backend.Health(r.Context()); err != nil {
		h.log.Warn("backend health check failed", "error", err)
		backendStatus = "disconnected"
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"backend": map[string]string{
			"status": backendStatus,
			"url":    h.cfg.Backend.URL,
		},
	})
}
