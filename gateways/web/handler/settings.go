package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voiceline/gateway/pkg/json"
	"github.com/voiceline/gateway/services/store"
)

func (h *Handler) UploadSettingsHandler(w http.ResponseWriter, r *http.Request) {
	options, err := h.store.ListUploadOptions()
	if err != nil {
		h.log.Error("list upload options failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to load settings"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{"options": options})
}

// ToggleUploadOptionHandler flips a single toggle and returns the full
// list so the caller can re-render without a second round trip.
func (h *Handler) ToggleUploadOptionHandler(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	key := chi.URLParam(r, "key")

	if kind != "structure" && kind != "parameter" {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("unknown option kind %q", kind))
		return
	}

	if err := h.store.ToggleUploadOption(kind, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.WriteError(w, http.StatusNotFound, fmt.Errorf("unknown option %q", key))
			return
		}
		h.log.Error("toggle option failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to toggle option"))
		return
	}

	options, err := h.store.ListUploadOptions()
	if err != nil {
		h.log.Error("list upload options failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to load settings"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{"options": options})
}
