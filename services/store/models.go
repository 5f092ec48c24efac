package store

import "time"

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Terminal reports whether a status will never change again.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Session tracks one audio-processing job from upload to results.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	Language    string    `json:"language,omitempty"`
	NumSpeakers int       `json:"num_speakers,omitempty"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	Results     []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasResults is what listings expose instead of the payload itself.
func (s *Session) HasResults() bool {
	return len(s.Results) > 0
}

// AnalysisResult caches one LLM call's output, keyed by session and prompt.
type AnalysisResult struct {
	SessionID      string    `json:"session_id"`
	PromptKey      string    `json:"prompt_key"`
	Response       string    `json:"response"`
	Model          string    `json:"model"`
	ProcessingTime float64   `json:"processing_time"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadOption is one structure/parameter toggle on the upload form.
type UploadOption struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name,omitempty"`
	Role       string    `json:"role"`
	Groups     string    `json:"groups,omitempty"`
	LastLogin  time.Time `json:"last_login"`
	LoginCount int       `json:"login_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthSession is one issued token pair, revocable by jti.
type AuthSession struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AccessJTI  string    `json:"-"`
	RefreshJTI string    `json:"-"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
}
