package handler

import (
	"fmt"
	"net/http"

	"github.com/voiceline/gateway/pkg/json"
)

func (h *Handler) AdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		h.log.Error("list users failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to get users"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

// AdminSessionsHandler is the cross-user view of processing sessions,
// including which ones are still being polled.
func (h *Handler) AdminSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListAllSessions()
	if err != nil {
		h.log.Error("list all sessions failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to get sessions"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions":       sessionViews(sessions),
		"total":          len(sessions),
		"active_watches": h.monitor.ActiveWatches(),
	})
}
