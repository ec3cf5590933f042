package progress

import "database/sql"

// PostgresStore keeps progress documents in the user_progress JSONB table
// created by the database migrations.
type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{
		db: db,
		q: sqlQueries{
			load:          `SELECT document FROM user_progress WHERE user_id = $1`,
			ensure:        `INSERT INTO user_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			loadForUpdate: `SELECT document FROM user_progress WHERE user_id = $1 FOR UPDATE`,
			upsert: `INSERT INTO user_progress (user_id, document, updated_at)
			         VALUES ($1, $2::jsonb, $3)
			         ON CONFLICT (user_id) DO UPDATE
			         SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		},
	}}
}
