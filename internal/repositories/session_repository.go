package repositories

import (
	"context"
	"time"

	"github.com/satprep/session-service/internal/models"
)

// SessionRepository persists assessment sessions. Save writes the full
// aggregate (session plus modules plus question rows) and is the target
// of engine snapshots, so it must be idempotent under replay.
type SessionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByIDWithDetails(ctx context.Context, id string) (*models.Session, error) // Include modules, question rows
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error // Soft delete

	// Query operations
	List(ctx context.Context, filters SessionFilters) ([]*models.Session, int64, error)
	GetByUser(ctx context.Context, userID string, filters SessionFilters) ([]*models.Session, int64, error)

	// Active session management
	GetActiveSession(ctx context.Context, userID string, kind models.SessionKind) (*models.Session, error)
	HasActiveSession(ctx context.Context, userID string, kind models.SessionKind) (bool, error)

	// Status management
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	GetExpiredSessions(ctx context.Context) ([]*models.Session, error)

	// Time warnings
	GetSessionsNearingDeadline(ctx context.Context, within time.Duration) ([]*models.Session, error)
	MarkWarned(ctx context.Context, id string, warnedAt time.Time) error

	// Scoring
	UpdateScores(ctx context.Context, id string, total, math, rw int) error
}

// SessionQuestionRepository handles the per-question answer rows of a
// session.
type SessionQuestionRepository interface {
	CreateBatch(ctx context.Context, rows []*models.SessionQuestion) error
	GetBySession(ctx context.Context, sessionID string) ([]*models.SessionQuestion, error)
	GetByModule(ctx context.Context, moduleID string) ([]*models.SessionQuestion, error)
	GetBySessionAndQuestion(ctx context.Context, sessionID, questionID string) (*models.SessionQuestion, error)
	UpsertAnswer(ctx context.Context, row *models.SessionQuestion) error
	UpdateBatch(ctx context.Context, rows []*models.SessionQuestion) error
	MarkCorrectness(ctx context.Context, id string, isCorrect bool) error
}

// ModuleRepository handles the timed modules of exam sessions.
type ModuleRepository interface {
	CreateBatch(ctx context.Context, modules []*models.ExamModule) error
	GetByID(ctx context.Context, id string) (*models.ExamModule, error)
	GetBySession(ctx context.Context, sessionID string) ([]*models.ExamModule, error)
	Update(ctx context.Context, module *models.ExamModule) error
	UpdateTimeRemaining(ctx context.Context, id string, seconds int) error
}
