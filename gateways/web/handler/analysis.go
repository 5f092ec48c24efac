package handler

import (
	stdjson "encoding/json"
	"fmt"
	"net/http"

	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/pkg/json"
	"github.com/voiceline/gateway/services/store"
	"github.com/voiceline/gateway/services/transcript"
)

type analyzeRequest struct {
	PromptKey    string `json:"prompt_key" validate:"required_without=CustomPrompt"`
	CustomPrompt string `json:"custom_prompt"`
	MaxTokens    int    `json:"max_tokens" validate:"gte=0,lte=8000"`
	Force        bool   `json:"force"`
}

func (h *Handler) PromptsHandler(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.backend.Prompts(r.Context())
	if err != nil {
		h.log.Error("prompts fetch failed", "error", err)
		json.WriteError(w, http.StatusBadGateway, fmt.Errorf("failed to load analysis templates"))
		return
	}
	json.WriteJSON(w, http.StatusOK, prompts)
}

// AnalyzeHandler runs an LLM analysis over the session transcript. Results
// are cached per session and prompt key; repeating a request serves the
// cache unless force is set.
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("a prompt key or custom prompt is required"))
		return
	}

	promptKey := req.PromptKey
	promptType := req.PromptKey
	if req.CustomPrompt != "" {
		promptKey = "custom"
		promptType = "custom"
	}

	if !req.Force {
		if cached, err := h.store.GetAnalysis(sess.ID, promptKey); err == nil {
			json.WriteJSON(w, http.StatusOK, map[string]any{"analysis": cached, "cached": true})
			return
		}
	}

	if !sess.HasResults() {
		json.WriteError(w, http.StatusConflict, fmt.Errorf("session has no transcript yet"))
		return
	}

	var results transcript.Results
	if err := stdjson.Unmarshal(sess.Results, &results); err != nil {
		h.log.Error("stored results corrupt", "session_id", sess.ID, "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("stored results are unreadable"))
		return
	}

	res, err := h.backend.Analyze(r.Context(), &diarizer.AnalyzeRequest{
		TranscriptData: transcriptData(&results),
		PromptType:     promptType,
		CustomPrompt:   req.CustomPrompt,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		h.log.Error("analysis failed", "session_id", sess.ID, "prompt", promptType, "error", err)
		json.WriteError(w, http.StatusBadGateway, fmt.Errorf("analysis failed"))
		return
	}

	analysis := &store.AnalysisResult{
		SessionID:      sess.ID,
		PromptKey:      promptKey,
		Response:       res.Response,
		Model:          res.Model,
		ProcessingTime: res.ProcessingTime,
	}
	if err := h.store.SaveAnalysis(analysis); err != nil {
		h.log.Error("cache analysis failed", "error", err)
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{"analysis": analysis, "cached": false})
}

func (h *Handler) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	analyses, err := h.store.ListAnalyses(sess.ID)
	if err != nil {
		h.log.Error("list analyses failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to list analyses"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"total":    len(analyses),
	})
}

func (h *Handler) ExportTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if !sess.HasResults() {
		json.WriteError(w, http.StatusNotFound, fmt.Errorf("results not available"))
		return
	}

	var results transcript.Results
	if err := stdjson.Unmarshal(sess.Results, &results); err != nil {
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("stored results are unreadable"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Filename+".txt"))
	w.Write([]byte(transcript.ExportText(&results)))
}

// transcriptData packages segments the way the backend's LLM endpoint
// expects them.
func transcriptData(results *transcript.Results) map[string]any {
	segments := make([]any, len(results.Segments))
	for i, s := range results.Segments {
		segments[i] = map[string]any{
			"speaker": s.Speaker,
			"start":   s.Start,
			"end":     s.End,
			"text":    s.Text,
		}
	}
	return map[string]any{"segments": segments}
}
