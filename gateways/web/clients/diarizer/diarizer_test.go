package diarizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.BackendConfig{URL: srv.URL, Timeout: 5 * time.Second, LLMTimeout: 5 * time.Second}
	return New(cfg, logger.Default())
}

func TestUploadSendsMultipartFields(t *testing.T) {
	var gotLanguage, gotPreprocessing, gotSpeakers, gotFilename string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload-audio" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotPreprocessing = r.FormValue("apply_preprocessing")
		gotSpeakers = r.FormValue("num_speakers")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "accepted", "session_id": "abc-123", "file_info": {"filename": "meeting.wav", "size": 4}}`))
	}))

	res, err := c.Upload(context.Background(), &UploadRequest{
		Filename:      "meeting.wav",
		Content:       strings.NewReader("RIFF"),
		Language:      "en",
		NumSpeakers:   2,
		Preprocessing: true,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if res.SessionID != "abc-123" {
		t.Errorf("session id = %q", res.SessionID)
	}
	if gotFilename != "meeting.wav" || gotLanguage != "en" || gotPreprocessing != "true" || gotSpeakers != "2" {
		t.Errorf("form fields: filename=%q language=%q preprocessing=%q speakers=%q",
			gotFilename, gotLanguage, gotPreprocessing, gotSpeakers)
	}
}

func TestStatusAndRawResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/processing-status/abc":
			w.Write([]byte(`{"status": "processing", "progress": 40, "message": "working"}`))
		case "/api/results/abc":
			w.Write([]byte(`{"results": {"segments": []}}`))
		default:
			http.NotFound(w, r)
		}
	}))

	status, err := c.Status(context.Background(), "abc")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != "processing" || status.Progress != 40 {
		t.Errorf("unexpected status: %+v", status)
	}

	raw, err := c.RawResults(context.Background(), "abc")
	if err != nil {
		t.Fatalf("raw results: %v", err)
	}
	if string(raw) != `{"results": {"segments": []}}` {
		t.Errorf("results body altered: %s", raw)
	}
}

func TestStatusErrorIncludesBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Session not found"}`, http.StatusNotFound)
	}))

	_, err := c.Status(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "Session not found") {
		t.Errorf("unhelpful error: %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/llm-process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"response": "summary text", "model": "llama3", "prompt_type": "summary", "transcript_length": 42, "processing_time": 1.2}`))
	}))

	res, err := c.Analyze(context.Background(), &AnalyzeRequest{
		TranscriptData: map[string]any{"segments": []any{}},
		PromptType:     "summary",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Response != "summary text" || res.Model != "llama3" {
		t.Errorf("unexpected response: %+v", res)
	}
}
