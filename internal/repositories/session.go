package repositories

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// SessionRepository persists session cookies so the CLI stays logged in
// between invocations. Expired cookies are pruned on load.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save replaces the stored cookie set with the given one.
func (r *SessionRepository) Save(cookies []*http.Cookie) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_cookies`); err != nil {
		return fmt.Errorf("failed to clear stored cookies: %w", err)
	}

	for _, cookie := range cookies {
		var expires any
		if !cookie.Expires.IsZero() {
			expires = cookie.Expires.UTC()
		}
		_, err := tx.Exec(
			`INSERT INTO session_cookies (name, value, domain, path, expires_at) VALUES (?, ?, ?, ?, ?)`,
			cookie.Name, cookie.Value, cookie.Domain, cookie.Path, expires,
		)
		if err != nil {
			return fmt.Errorf("failed to store cookie %s: %w", cookie.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cookies: %w", err)
	}
	return nil
}

// Load returns the stored, unexpired cookies.
func (r *SessionRepository) Load() ([]*http.Cookie, error) {
	rows, err := r.db.Query(`SELECT name, value, domain, path, expires_at FROM session_cookies`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var cookies []*http.Cookie
	for rows.Next() {
		var cookie http.Cookie
		var expires sql.NullTime
		if err := rows.Scan(&cookie.Name, &cookie.Value, &cookie.Domain, &cookie.Path, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expires.Valid {
			if expires.Time.Before(now) {
				continue
			}
			cookie.Expires = expires.Time
		}
		cookies = append(cookies, &cookie)
	}
	return cookies, rows.Err()
}

// Clear drops every stored cookie, logging the user out locally.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM session_cookies`); err != nil {
		return fmt.Errorf("failed to clear stored cookies: %w", err)
	}
	return nil
}
