package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Default upload form toggles. Structures pick what the results view
// renders, parameters tune the processing request.
var defaultUploadOptions = []UploadOption{
	{Kind: "structure", Key: "speaker_labels", Label: "Speaker labels", Enabled: true},
	{Kind: "structure", Key: "timestamps", Label: "Timestamps", Enabled: true},
	{Kind: "structure", Key: "speaker_stats", Label: "Speaker statistics", Enabled: false},
	{Kind: "parameter", Key: "preprocessing", Label: "Audio preprocessing", Enabled: true},
	{Kind: "parameter", Key: "auto_language", Label: "Automatic language detection", Enabled: true},
	{Kind: "parameter", Key: "auto_speakers", Label: "Automatic speaker count", Enabled: true},
}

func (s *Store) seedUploadOptions() error {
	for i, opt := range defaultUploadOptions {
		_, err := s.db.Exec(`
			INSERT INTO upload_options (kind, key, label, enabled, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (kind, key) DO NOTHING
		`, opt.Kind, opt.Key, opt.Label, opt.Enabled, i)
		if err != nil {
			return fmt.Errorf("seed upload options: %w", err)
		}
	}
	return nil
}

// ListUploadOptions returns all toggles in their seeded order.
func (s *Store) ListUploadOptions() ([]UploadOption, error) {
	rows, err := s.db.Query(`
		SELECT kind, key, label, enabled
		FROM upload_options
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query upload options: %w", err)
	}
	defer rows.Close()

	var options []UploadOption
	for rows.Next() {
		var opt UploadOption
		if err := rows.Scan(&opt.Kind, &opt.Key, &opt.Label, &opt.Enabled); err != nil {
			return nil, fmt.Errorf("scan upload option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// ToggleUploadOption flips exactly one entry's enabled bit.
func (s *Store) ToggleUploadOption(kind, key string) error {
	res, err := s.db.Exec(`
		UPDATE upload_options SET enabled = NOT enabled
		WHERE kind = ? AND key = ?
	`, kind, key)
	if err != nil {
		return fmt.Errorf("toggle upload option: %w", err)
	}
	return checkAffected(res)
}

// UploadOptionEnabled reports one toggle's state; unknown keys are off.
func (s *Store) UploadOptionEnabled(kind, key string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(`
		SELECT enabled FROM upload_options WHERE kind = ? AND key = ?
	`, kind, key).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query upload option: %w", err)
	}
	return enabled, nil
}
