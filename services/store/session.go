package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

func (s *Store) SaveSession(sess *Session) error {
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user_id, filename, size_bytes, language, num_speakers,
			status, progress, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.Filename, sess.SizeBytes, sess.Language, sess.NumSpeakers,
		sess.Status, sess.Progress, sess.Message, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateStatus applies a status poll result. Progress never moves backwards
// while the session is still active, which smooths over backends that
// report jittery percentages.
func (s *Store) UpdateStatus(id, status string, progress int, message string) error {
	res, err := s.db.Exec(`
		UPDATE sessions
		SET status = ?,
		    progress = CASE
		        WHEN ? = 'completed' THEN 100
		        WHEN ? = 'failed' THEN progress
		        WHEN ? > progress THEN ?
		        ELSE progress
		    END,
		    message = ?,
		    updated_at = ?
		WHERE id = ?
	`, status, status, status, progress, progress, message, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return checkAffected(res)
}

func (s *Store) AttachResults(id string, results []byte) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET results = ?, updated_at = ? WHERE id = ?
	`, results, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("attach results: %w", err)
	}
	return checkAffected(res)
}

func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, filename, size_bytes, language, num_speakers,
		       status, progress, message, results, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

func (s *Store) ListSessions(userID string) ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, filename, size_bytes, language, num_speakers,
		       status, progress, message, results, created_at, updated_at
		FROM sessions
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListAllSessions is the admin view across users.
func (s *Store) ListAllSessions() ([]*Session, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, filename, size_bytes, language, num_speakers,
		       status, progress, message, results, created_at, updated_at
		FROM sessions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ResetSession clears status, progress, message and results back to their
// initial zero values. Cached analyses and chat history for the session go
// with them.
func (s *Store) ResetSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE sessions
		SET status = '', progress = 0, message = '', results = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM analyses WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("reset analyses: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("reset chat: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return checkAffected(res)
}

func scanSession(row *sql.Row) (*Session, error) {
	var sess Session
	var createdAt, updatedAt int64
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Filename, &sess.SizeBytes,
		&sess.Language, &sess.NumSpeakers, &sess.Status, &sess.Progress,
		&sess.Message, &sess.Results, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		var sess Session
		var createdAt, updatedAt int64
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Filename, &sess.SizeBytes,
			&sess.Language, &sess.NumSpeakers, &sess.Status, &sess.Progress,
			&sess.Message, &sess.Results, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = time.Unix(createdAt, 0)
		sess.UpdatedAt = time.Unix(updatedAt, 0)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
