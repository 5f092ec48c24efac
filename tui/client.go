package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	config "github.com/voiceline/gateway/config/tui"
	"github.com/voiceline/gateway/services/store"
	"github.com/voiceline/gateway/services/transcript"
)

// Client is a thin consumer of the gateway's JSON API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GatewayURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Session is a gateway session listing entry.
type Session struct {
	store.Session
	HasResults bool `json:"has_results"`
}

type sessionListResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

type resultsResponse struct {
	SessionID string             `json:"session_id"`
	Results   transcript.Results `json:"results"`
}

type analysisListResponse struct {
	Analyses []store.AnalysisResult `json:"analyses"`
	Total    int                    `json:"total"`
}

type chatResponse struct {
	Message store.ChatMessage `json:"message"`
	Model   string            `json:"model"`
}

func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var res sessionListResponse
	if err := c.get(ctx, "/api/v1/sessions", &res); err != nil {
		return nil, err
	}
	return res.Sessions, nil
}

func (c *Client) Results(ctx context.Context, sessionID string) (*transcript.Results, error) {
	var res resultsResponse
	if err := c.get(ctx, "/api/v1/sessions/"+sessionID+"/results", &res); err != nil {
		return nil, err
	}
	return &res.Results, nil
}

func (c *Client) Analyses(ctx context.Context, sessionID string) ([]store.AnalysisResult, error) {
	var res analysisListResponse
	if err := c.get(ctx, "/api/v1/sessions/"+sessionID+"/analyses", &res); err != nil {
		return nil, err
	}
	return res.Analyses, nil
}

func (c *Client) Analyze(ctx context.Context, sessionID, promptKey string) (*store.AnalysisResult, error) {
	var res struct {
		Analysis store.AnalysisResult `json:"analysis"`
		Cached   bool                 `json:"cached"`
	}
	body := map[string]any{"prompt_key": promptKey}
	if err := c.post(ctx, "/api/v1/sessions/"+sessionID+"/analyses", body, &res); err != nil {
		return nil, err
	}
	return &res.Analysis, nil
}

func (c *Client) Chat(ctx context.Context, sessionID, message string) (*store.ChatMessage, error) {
	var res chatResponse
	body := map[string]any{"message": message, "context_type": "transcript"}
	if err := c.post(ctx, "/api/v1/sessions/"+sessionID+"/chat", body, &res); err != nil {
		return nil, err
	}
	return &res.Message, nil
}

func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	var res struct {
		Messages []store.ChatMessage `json:"messages"`
	}
	if err := c.get(ctx, "/api/v1/sessions/"+sessionID+"/chat", &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (c *Client) ResetSession(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/api/v1/sessions/"+sessionID+"/reset", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(res.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway: %s", apiErr.Error)
		}
		return fmt.Errorf("gateway returned %s", res.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
