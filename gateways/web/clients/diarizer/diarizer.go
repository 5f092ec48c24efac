package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	config "github.com/voiceline/gateway/config/web"
)

// Client talks to the external diarization/transcription backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	llmClient  *http.Client
	log        *slog.Logger
}

type UploadRequest struct {
	Filename      string
	Content       io.Reader
	Language      string
	NumSpeakers   int
	Preprocessing bool
}

type UploadResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	FileInfo  struct {
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	} `json:"file_info"`
}

type StatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

type AnalyzeRequest struct {
	TranscriptData map[string]any `json:"transcript_data"`
	PromptType     string         `json:"prompt_type"`
	CustomPrompt   string         `json:"custom_prompt,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
}

type AnalyzeResponse struct {
	Response         string  `json:"response"`
	Model            string  `json:"model"`
	PromptType       string  `json:"prompt_type"`
	TranscriptLength int     `json:"transcript_length"`
	ProcessingTime   float64 `json:"processing_time"`
}

type ChatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	ContextType string `json:"context_type"`
}

type ChatResponse struct {
	Response    string `json:"response"`
	Model       string `json:"model"`
	SessionID   string `json:"session_id"`
	ContextType string `json:"context_type"`
}

type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
}

type PromptsResponse struct {
	PredefinedPrompts map[string]Prompt `json:"predefined_prompts"`
	ModelInfo         struct {
		CurrentModel string `json:"current_model"`
		MaxChunkSize int    `json:"max_chunk_size"`
	} `json:"model_info"`
	Source string `json:"source"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func New(cfg *config.BackendConfig, log *slog.Logger) *Client {
	log.Debug("creating diarizer client", slog.String("base_url", cfg.URL))
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		llmClient:  &http.Client{Timeout: cfg.LLMTimeout},
		log:        log,
	}
}

// Upload streams the audio file to the backend and returns the assigned
// session id.
func (c *Client) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	c.log.Info("uploading audio", slog.String("filename", req.Filename))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}

	writer.WriteField("language", req.Language)
	writer.WriteField("apply_preprocessing", strconv.FormatBool(req.Preprocessing))
	if req.NumSpeakers > 0 {
		writer.WriteField("num_speakers", strconv.Itoa(req.NumSpeakers))
	} else {
		writer.WriteField("num_speakers", "")
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-audio", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var res UploadResponse
	if err := c.do(httpReq, &res); err != nil {
		return nil, err
	}
	c.log.Info("upload accepted", slog.String("session_id", res.SessionID))
	return &res, nil
}

func (c *Client) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	var res StatusResponse
	if err := c.get(ctx, "/api/processing-status/"+sessionID, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RawResults returns the results payload untouched so the normalizer can
// deal with whichever shape the backend chose this time.
func (c *Client) RawResults(ctx context.Context, sessionID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/results/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("build results request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read results body: %w", err)
	}
	return data, nil
}

func (c *Client) Prompts(ctx context.Context) (*PromptsResponse, error) {
	var res PromptsResponse
	if err := c.get(ctx, "/api/llm-prompts", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	c.log.Info("running llm analysis", slog.String("prompt_type", req.PromptType))
	var res AnalyzeResponse
	if err := c.post(ctx, c.llmClient, "/api/llm-process", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var res ChatResponse
	if err := c.post(ctx, c.llmClient, "/api/chat", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Download streams one of the backend's export files for a session.
func (c *Client) Download(ctx context.Context, sessionID, filename string) (io.ReadCloser, string, error) {
	url := fmt.Sprintf("%s/api/download/%s/%s", c.baseURL, sessionID, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, "", statusError(resp)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var res HealthResponse
	if err := c.get(ctx, "/health", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
}
