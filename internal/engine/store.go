package engine

import (
	"context"
	"sync"

	"github.com/satprep/session-service/internal/models"
)

// PersistenceAdapter mirrors session state to durable storage so a session
// survives process restarts and device switches. It holds no independent
// truth: Snapshot is idempotent and safe after every mutation, and a
// failed snapshot is non-fatal because the next successful one catches up
// (at-least-once, last write wins per question). Restore returns
// ErrSessionNotFound when no snapshot exists; that failure is fatal only
// for the resume attempt, never a reason to drop state already persisted.
type PersistenceAdapter interface {
	Snapshot(ctx context.Context, session *models.Session) error
	Restore(ctx context.Context, sessionID string) (*models.Session, error)
}

// MemoryStore is an in-process PersistenceAdapter used by tests and
// single-process embedding. Snapshots are deep copies, so later in-memory
// mutations do not leak into a restored session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *MemoryStore) Snapshot(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *MemoryStore) Restore(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	saved, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(saved), nil
}

func copySession(in *models.Session) *models.Session {
	out := *in
	out.Modules = make([]models.ExamModule, len(in.Modules))
	copy(out.Modules, in.Modules)
	out.Questions = make([]models.SessionQuestion, len(in.Questions))
	for i, q := range in.Questions {
		q.UserAnswer = append([]string(nil), q.UserAnswer...)
		out.Questions[i] = q
	}
	return &out
}
