package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/satprep/session-service/internal/models"
)

// Hot snapshots expire on their own; the database holds the durable copy.
const sessionTTL = 24 * time.Hour

// SessionCache keeps the latest snapshot of active sessions in redis so
// answer patches and resumes skip the database on the hot path.
type SessionCache struct {
	cache CacheService
}

func NewSessionCache(cache CacheService) *SessionCache {
	return &SessionCache{cache: cache}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (c *SessionCache) Put(ctx context.Context, session *models.Session) error {
	return c.cache.Set(ctx, sessionKey(session.ID), session, sessionTTL)
}

// Get returns ErrCacheMiss when no snapshot is cached; callers fall back
// to the database.
func (c *SessionCache) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := c.cache.Get(ctx, sessionKey(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *SessionCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.cache.Delete(ctx, sessionKey(sessionID))
}
