package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Store) AppendChat(sessionID, role, content string) (*ChatMessage, error) {
	msg := &ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("append chat message: %w", err)
	}
	return msg, nil
}

func (s *Store) ListChat(sessionID string) ([]*ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
