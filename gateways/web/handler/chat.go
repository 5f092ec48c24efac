package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/pkg/json"
	"github.com/voiceline/gateway/services/store"
)

type chatRequest struct {
	Message     string `json:"message" validate:"required"`
	ContextType string `json:"context_type" validate:"omitempty,oneof=general transcript"`
}

// ChatHandler relays a chat message to the backend LLM and records both
// sides of the exchange.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}
	if req.ContextType == "" {
		req.ContextType = "transcript"
	}

	res, err := h.backend.Chat(r.Context(), &diarizer.ChatRequest{
		Message:     req.Message,
		SessionID:   sess.ID,
		ContextType: req.ContextType,
	})
	if err != nil {
		h.log.Error("chat failed", "session_id", sess.ID, "error", err)
		json.WriteError(w, http.StatusBadGateway, fmt.Errorf("chat failed"))
		return
	}

	// Record the exchange only once both sides exist, so a failed call
	// leaves no one-sided history.
	if _, err := h.store.AppendChat(sess.ID, "user", req.Message); err != nil {
		h.log.Error("record chat message failed", "error", err)
	}
	reply, err := h.store.AppendChat(sess.ID, "assistant", res.Response)
	if err != nil {
		h.log.Error("record chat reply failed", "error", err)
		reply = &store.ChatMessage{
			SessionID: sess.ID,
			Role:      "assistant",
			Content:   res.Response,
			CreatedAt: time.Now(),
		}
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"message": reply,
		"model":   res.Model,
	})
}

func (h *Handler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	messages, err := h.store.ListChat(sess.ID)
	if err != nil {
		h.log.Error("list chat failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to load chat history"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    len(messages),
	})
}
