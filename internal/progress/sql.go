package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmv-prep/backend/internal/models"
)

// sqlQueries holds the dialect-specific statements of a document table.
type sqlQueries struct {
	load          string
	loadForUpdate string
	upsert        string

	// ensure inserts an empty document if the user has none, so that
	// loadForUpdate always has a row to lock.
	ensure string
}

// sqlStore keeps each user's document as JSON in a single row and merges in
// Go inside a transaction.
type sqlStore struct {
	db *sql.DB
	q  sqlQueries
}

func (s *sqlStore) Load(ctx context.Context, userID string) (*models.UserProgressDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.q.load, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return decodeDocument(userID, raw)
}

func (s *sqlStore) Save(ctx context.Context, userID string, update models.ProgressUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q.ensure, userID); err != nil {
		return fmt.Errorf("ensure progress row: %w", err)
	}

	doc := models.NewUserProgressDocument(userID)
	var raw string
	err = tx.QueryRowContext(ctx, s.q.loadForUpdate, userID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("lock progress: %w", err)
	default:
		if doc, err = decodeDocument(userID, raw); err != nil {
			return err
		}
	}

	Merge(doc, update)
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q.upsert, userID, string(data), doc.UpdatedAt); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

func decodeDocument(userID, raw string) (*models.UserProgressDocument, error) {
	doc := models.NewUserProgressDocument(userID)
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	doc.UserID = userID
	doc.Normalize()
	return doc, nil
}
