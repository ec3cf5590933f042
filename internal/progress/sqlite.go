package progress

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_progress (
    user_id TEXT PRIMARY KEY,
    document TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// SQLiteStore is the file-backed store used for local development and tests.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteStore{sqlStore{
		db: db,
		q: sqlQueries{
			load:          `SELECT document FROM user_progress WHERE user_id = ?`,
			loadForUpdate: `SELECT document FROM user_progress WHERE user_id = ?`,
			ensure: `INSERT INTO user_progress (user_id, document, updated_at)
			         VALUES (?, '{}', CURRENT_TIMESTAMP)
			         ON CONFLICT(user_id) DO NOTHING`,
			upsert: `INSERT INTO user_progress (user_id, document, updated_at)
			         VALUES (?, ?, ?)
			         ON CONFLICT(user_id) DO UPDATE
			         SET document = excluded.document, updated_at = excluded.updated_at`,
		},
	}}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
