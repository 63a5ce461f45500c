package repositories

import (
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/quietloop/foliox/internal/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id   TEXT PRIMARY KEY,
	slug         TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	owner_handle TEXT NOT NULL DEFAULT '',
	view_count   INTEGER NOT NULL DEFAULT 0,
	like_count   INTEGER NOT NULL DEFAULT 0,
	synced_at    TIMESTAMP NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS session_cookies (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	domain     TEXT NOT NULL DEFAULT '',
	path       TEXT NOT NULL DEFAULT '/',
	expires_at TIMESTAMP
);
`

// Open opens (or creates) the cache database at path and ensures the schema
// exists. Schema setup holds a file lock next to the database; concurrent
// CLI processes block here instead of racing CREATE TABLE.
func Open(path string, maxOpenConns, maxIdleConns int) (*sql.DB, error) {
	if path != ":memory:" {
		lock := flock.New(path + ".lock")
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("failed to lock cache database: %w", err)
		}
		defer lock.Unlock()
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		shared.ConfigureDatabase(db, maxOpenConns, maxIdleConns)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}
