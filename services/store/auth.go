package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertUser creates or refreshes a user record from SSO userinfo and
// bumps the login counters.
func (s *Store) UpsertUser(u *User) error {
	now := time.Now()
	u.LastLogin = now
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO users (id, username, email, full_name, role, groups, last_login, login_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (email) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			role = excluded.role,
			groups = excluded.groups,
			last_login = excluded.last_login,
			login_count = users.login_count + 1
	`, u.ID, u.Username, u.Email, u.FullName, u.Role, u.Groups, now.Unix(), u.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	// The conflict path keeps the original id; read it back.
	return s.db.QueryRow(`SELECT id FROM users WHERE email = ?`, u.Email).Scan(&u.ID)
}

func (s *Store) GetUser(id string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, username, email, full_name, role, groups, last_login, login_count, created_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (s *Store) ListUsers() ([]*User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, full_name, role, groups, last_login, login_count, created_at
		FROM users ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		var lastLogin, createdAt int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role,
			&u.Groups, &lastLogin, &u.LoginCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.LastLogin = time.Unix(lastLogin, 0)
		u.CreatedAt = time.Unix(createdAt, 0)
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *Store) CreateAuthSession(as *AuthSession) error {
	as.CreatedAt = time.Now()
	_, err := s.db.Exec(`
		INSERT INTO auth_sessions (id, user_id, access_jti, refresh_jti, ip_address, user_agent, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, as.ID, as.UserID, as.AccessJTI, as.RefreshJTI, as.IPAddress, as.UserAgent, as.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create auth session: %w", err)
	}
	return nil
}

func (s *Store) ListAuthSessions(userID string) ([]*AuthSession, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, access_jti, refresh_jti, ip_address, user_agent, revoked, created_at
		FROM auth_sessions
		WHERE user_id = ? AND revoked = 0
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query auth sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*AuthSession
	for rows.Next() {
		var as AuthSession
		var createdAt int64
		if err := rows.Scan(&as.ID, &as.UserID, &as.AccessJTI, &as.RefreshJTI,
			&as.IPAddress, &as.UserAgent, &as.Revoked, &createdAt); err != nil {
			return nil, fmt.Errorf("scan auth session: %w", err)
		}
		as.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, &as)
	}
	return sessions, rows.Err()
}

// RotateAccessJTI binds a freshly minted access token to the session
// that owns the refresh token, replacing the previous access jti.
func (s *Store) RotateAccessJTI(refreshJTI, accessJTI string) error {
	res, err := s.db.Exec(`
		UPDATE auth_sessions SET access_jti = ?
		WHERE refresh_jti = ? AND revoked = 0
	`, accessJTI, refreshJTI)
	if err != nil {
		return fmt.Errorf("rotate access jti: %w", err)
	}
	return checkAffected(res)
}

// RevokeAuthSession revokes one session owned by the given user.
func (s *Store) RevokeAuthSession(userID, sessionID string) error {
	res, err := s.db.Exec(`
		UPDATE auth_sessions SET revoked = 1 WHERE id = ? AND user_id = ?
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("revoke auth session: %w", err)
	}
	return checkAffected(res)
}

func (s *Store) RevokeAllAuthSessions(userID string) error {
	_, err := s.db.Exec(`UPDATE auth_sessions SET revoked = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("revoke auth sessions: %w", err)
	}
	return nil
}

// JTIRevoked reports whether the token id belongs to a revoked session.
// Unknown jtis count as revoked: a jti we never issued is not acceptable.
func (s *Store) JTIRevoked(jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRow(`
		SELECT revoked FROM auth_sessions WHERE access_jti = ? OR refresh_jti = ?
	`, jti, jti).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check jti: %w", err)
	}
	return revoked, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var lastLogin, createdAt int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role,
		&u.Groups, &lastLogin, &u.LoginCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.LastLogin = time.Unix(lastLogin, 0)
	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// GroupList splits the stored comma-joined groups claim.
func (u *User) GroupList() []string {
	if u.Groups == "" {
		return nil
	}
	return strings.Split(u.Groups, ",")
}
