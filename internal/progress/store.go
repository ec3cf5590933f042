package progress

import (
	"context"
	"errors"

	"github.com/dmv-prep/backend/internal/models"
)

var ErrNotFound = errors.New("progress document not found")

// Store persists one progress document per user.
//
// Save applies a partial update with field-level merge semantics (see Merge)
// and must be idempotent: saving the same update twice leaves the stored
// document as it was after the first save. Loads may be stale.
type Store interface {
	Load(ctx context.Context, userID string) (*models.UserProgressDocument, error)
	Save(ctx context.Context, userID string, update models.ProgressUpdate) error
}
