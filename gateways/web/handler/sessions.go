package handler

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/pkg/json"
	"github.com/voiceline/gateway/services/store"
)

// allowedExtensions is the client-side whitelist; anything else never
// reaches the backend.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

// UploadHandler validates the audio file, forwards it to the backend and
// starts polling the new session.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxSizeBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("audio file is required"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		json.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("unsupported file type %q: allowed types are wav, mp3, m4a, flac, ogg, webm", ext))
		return
	}
	if header.Size > h.cfg.Upload.MaxSizeBytes {
		json.WriteError(w, http.StatusBadRequest,
			fmt.Errorf("file too large: %d bytes exceeds the %d byte limit", header.Size, h.cfg.Upload.MaxSizeBytes))
		return
	}

	language := r.FormValue("language")
	numSpeakers := 0
	if v := r.FormValue("num_speakers"); v != "" {
		numSpeakers, err = strconv.Atoi(v)
		if err != nil || numSpeakers < 0 {
			json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid speaker count"))
			return
		}
	}

	preprocessing, optErr := h.store.UploadOptionEnabled("parameter", "preprocessing")
	if optErr != nil {
		h.log.Warn("read preprocessing toggle failed", "error", optErr)
	}

	res, err := h.backend.Upload(r.Context(), &diarizer.UploadRequest{
		Filename:      header.Filename,
		Content:       file,
		Language:      language,
		NumSpeakers:   numSpeakers,
		Preprocessing: preprocessing,
	})
	if err != nil {
		h.log.Error("backend upload failed", "error", err)
		json.WriteError(w, http.StatusBadGateway, fmt.Errorf("upload failed"))
		return
	}

	sess := &store.Session{
		ID:          res.SessionID,
		UserID:      claims.Subject,
		Filename:    header.Filename,
		SizeBytes:   header.Size,
		Language:    language,
		NumSpeakers: numSpeakers,
		Status:      store.StatusQueued,
	}
	if err := h.store.SaveSession(sess); err != nil {
		h.log.Error("persist session failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to track session"))
		return
	}

	h.monitor.Watch(sess.ID)

	json.WriteJSON(w, http.StatusAccepted, sess)
}

func (h *Handler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	sessions, err := h.store.ListSessions(claims.Subject)
	if err != nil {
		h.log.Error("list sessions failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to list sessions"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": sessionViews(sessions),
		"total":    len(sessions),
	})
}

func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	json.WriteJSON(w, http.StatusOK, sessionView(sess))
}

// ResultsHandler returns the normalized results for a completed session.
func (h *Handler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	if !sess.HasResults() {
		json.WriteError(w, http.StatusNotFound, fmt.Errorf("results not available"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"results":    stdjson.RawMessage(sess.Results),
	})
}

// ResetHandler clears the session back to its initial state and cancels
// any active poll. The cancel happens first so a stale poll cannot rewrite
// the cleared state.
func (h *Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	h.monitor.Cancel(sess.ID)

	if err := h.store.ResetSession(sess.ID); err != nil {
		h.log.Error("reset session failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to reset session"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]string{"message": "session reset"})
}

func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	h.monitor.Cancel(sess.ID)

	// Best effort: the backend may have cleaned the session up already.
	if err := h.backend.DeleteSession(r.Context(), sess.ID); err != nil {
		h.log.Warn("backend session cleanup failed", "session_id", sess.ID, "error", err)
	}

	if err := h.store.DeleteSession(sess.ID); err != nil {
		h.log.Error("delete session failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to delete session"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

// DownloadHandler streams a backend export (transcript .txt or results
// .json) through to the caller.
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	filename := chi.URLParam(r, "filename")
	if !strings.HasSuffix(filename, ".json") && !strings.HasSuffix(filename, ".txt") {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid file type"))
		return
	}

	body, contentType, err := h.backend.Download(r.Context(), sess.ID, filename)
	if err != nil {
		h.log.Error("download failed", "session_id", sess.ID, "error", err)
		json.WriteError(w, http.StatusBadGateway, fmt.Errorf("download failed"))
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	io.Copy(w, body)
}

// ownedSession loads the session from the URL and enforces ownership.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "sessionID")

	sess, err := h.store.GetSession(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.WriteError(w, http.StatusNotFound, fmt.Errorf("session not found"))
			return nil, false
		}
		h.log.Error("get session failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to load session"))
		return nil, false
	}

	if !canAccess(claims, sess.UserID) {
		json.WriteError(w, http.StatusForbidden, fmt.Errorf("access denied"))
		return nil, false
	}
	return sess, true
}

type sessionViewJSON struct {
	*store.Session
	HasResults bool `json:"has_results"`
}

func sessionView(sess *store.Session) sessionViewJSON {
	return sessionViewJSON{Session: sess, HasResults: sess.HasResults()}
}

func sessionViews(sessions []*store.Session) []sessionViewJSON {
	views := make([]sessionViewJSON, len(sessions))
	for i, sess := range sessions {
		views[i] = sessionView(sess)
	}
	return views
}
