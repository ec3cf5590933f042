package progress

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/dmv-prep/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 10 * time.Minute

// CachedStore is a read-through Redis cache in front of another Store.
// Saves go straight to the backing store and drop the cached copy. Cache
// failures are logged and never fail a call.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{next: next, client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return "progress:" + userID
}

func (c *CachedStore) Load(ctx context.Context, userID string) (*models.UserProgressDocument, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	switch {
	case err == nil:
		doc := models.NewUserProgressDocument(userID)
		if err := json.Unmarshal(data, doc); err == nil {
			doc.Normalize()
			return doc, nil
		}
		log.Printf("WARN: [progress] dropping undecodable cache entry for user %s", userID)
	case !errors.Is(err, redis.Nil):
		log.Printf("WARN: [progress] cache get for user %s: %v", userID, err)
	}

	doc, err := c.next.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(doc); err == nil {
		if err := c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err(); err != nil {
			log.Printf("WARN: [progress] cache set for user %s: %v", userID, err)
		}
	}
	return doc, nil
}

func (c *CachedStore) Save(ctx context.Context, userID string, update models.ProgressUpdate) error {
	if err := c.next.Save(ctx, userID, update); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		log.Printf("WARN: [progress] cache invalidate for user %s: %v", userID, err)
	}
	return nil
}
