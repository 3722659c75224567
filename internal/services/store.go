package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/satprep/session-service/internal/cache"
	"github.com/satprep/session-service/internal/engine"
	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

// sessionStore persists session snapshots to Postgres and mirrors them
// into Redis. Restore is cache-first with a database fallback so a warm
// cache never costs a round trip and a cold one never loses a session.
type sessionStore struct {
	repo   repositories.Repository
	cache  *cache.SessionCache
	logger *slog.Logger
}

// NewSessionStore returns an engine.PersistenceAdapter backed by the
// repository and, optionally, the session cache. sessionCache may be nil.
// The HTTP services persist through the repository directly; this
// constructor is the bridge for embedders driving an engine.Controller
// in process.
func NewSessionStore(repo repositories.Repository, sessionCache *cache.SessionCache, logger *slog.Logger) engine.PersistenceAdapter {
	return &sessionStore{repo: repo, cache: sessionCache, logger: logger}
}

func (s *sessionStore) Snapshot(ctx context.Context, session *models.Session) error {
	if err := s.repo.Session().Save(ctx, session); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, session); err != nil {
			// The database copy is authoritative; a stale cache entry is
			// corrected by the next successful Put.
			s.logger.Warn("failed to cache session snapshot", "session_id", session.ID, "error", err)
		}
	}
	return nil
}

func (s *sessionStore) Restore(ctx context.Context, sessionID string) (*models.Session, error) {
	if s.cache != nil {
		session, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("session cache lookup failed", "session_id", sessionID, "error", err)
		}
	}

	session, err := s.repo.Session().GetByIDWithDetails(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, engine.ErrSessionNotFound
		}
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, session); err != nil {
			s.logger.Warn("failed to cache restored session", "session_id", sessionID, "error", err)
		}
	}
	return session, nil
}
