package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the schema changes; Open refuses to
// touch databases written by a newer build.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	num_speakers INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT '',
	progress INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	results BLOB,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	prompt_key TEXT NOT NULL,
	response TEXT NOT NULL,
	model TEXT NOT NULL,
	processing_time REAL NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, prompt_key)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_options (
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	label TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'user',
	groups TEXT NOT NULL DEFAULT '',
	last_login INTEGER NOT NULL DEFAULT 0,
	login_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	access_jti TEXT NOT NULL,
	refresh_jti TEXT NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	revoked INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user ON auth_sessions(user_id, created_at);
`

// Store holds all gateway state in a single SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database, applies the schema and stamps the
// schema version.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		db.Close()
		return nil, fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("stamp schema version: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedUploadOptions(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Sweep deletes terminal sessions older than the retention window and
// returns how many were removed.
func (s *Store) Sweep(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.Exec(`
		DELETE FROM sessions
		WHERE status IN (?, ?) AND updated_at < ?
	`, StatusCompleted, StatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return res.RowsAffected()
}
