package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveAnalysis stores or replaces the cached result for a session/prompt
// pair. Re-running the same prompt overwrites the previous answer.
func (s *Store) SaveAnalysis(a *AnalysisResult) error {
	a.CreatedAt = time.Now()
	_, err := s.db.Exec(`
		INSERT INTO analyses (session_id, prompt_key, response, model, processing_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, prompt_key) DO UPDATE SET
			response = excluded.response,
			model = excluded.model,
			processing_time = excluded.processing_time,
			created_at = excluded.created_at
	`, a.SessionID, a.PromptKey, a.Response, a.Model, a.ProcessingTime, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (s *Store) GetAnalysis(sessionID, promptKey string) (*AnalysisResult, error) {
	row := s.db.QueryRow(`
		SELECT session_id, prompt_key, response, model, processing_time, created_at
		FROM analyses WHERE session_id = ? AND prompt_key = ?
	`, sessionID, promptKey)

	var a AnalysisResult
	var createdAt int64
	err := row.Scan(&a.SessionID, &a.PromptKey, &a.Response, &a.Model, &a.ProcessingTime, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

func (s *Store) ListAnalyses(sessionID string) ([]*AnalysisResult, error) {
	rows, err := s.db.Query(`
		SELECT session_id, prompt_key, response, model, processing_time, created_at
		FROM analyses WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var results []*AnalysisResult
	for rows.Next() {
		var a AnalysisResult
		var createdAt int64
		if err := rows.Scan(&a.SessionID, &a.PromptKey, &a.Response, &a.Model, &a.ProcessingTime, &createdAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, &a)
	}
	return results, rows.Err()
}
