package services

import (
	"context"

	"github.com/satprep/session-service/internal/engine"
	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

// ===== REQUEST / RESPONSE TYPES =====

type CreateSessionRequest struct {
	Kind models.SessionKind `json:"kind" validate:"required,session_kind"`

	// Practice sessions only
	TopicID          *string `json:"topic_id,omitempty" validate:"omitempty,uuid"`
	QuestionCount    int     `json:"question_count,omitempty" validate:"omitempty,min=1,max=50"`
	TimeLimitSeconds *int    `json:"time_limit_seconds,omitempty" validate:"omitempty,min=30,max=14400"`
}

type AnswerRequest struct {
	Answer           []string `json:"answer" validate:"required,min=1"`
	ConfidenceScore  *int     `json:"confidence_score,omitempty" validate:"omitempty,min=1,max=5"`
	TimeSpentSeconds *int     `json:"time_spent_seconds,omitempty" validate:"omitempty,min=0"`
}

type NavigateRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// SessionResponse is a session with the derived values clients need to
// render the timer and navigator without recomputing them.
type SessionResponse struct {
	Session              *models.Session    `json:"session"`
	TimeRemainingSeconds *int               `json:"time_remaining_seconds,omitempty"`
	ActiveModule         *models.ExamModule `json:"active_module,omitempty"`
	AnsweredCount        int                `json:"answered_count"`
	TotalQuestions       int                `json:"total_questions"`
}

// ModuleTransitionResponse reports what follows a completed module.
type ModuleTransitionResponse struct {
	Transition engine.Transition  `json:"transition"` // direct, break, final
	Module     *models.ExamModule `json:"module"`
	NextModule *models.ExamModule `json:"next_module,omitempty"`
	RawScore   int                `json:"raw_score"`
}

// ===== SERVICE INTERFACES =====

// SessionService drives single-module sessions (diagnostics and topic
// practice) and the operations shared by every session kind.
type SessionService interface {
	Create(ctx context.Context, req *CreateSessionRequest, userID string) (*SessionResponse, error)
	GetByID(ctx context.Context, sessionID, userID string) (*SessionResponse, error)
	List(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, int64, error)

	SubmitAnswer(ctx context.Context, sessionID, questionID string, req *AnswerRequest, userID string) (*models.SessionQuestion, error)
	ToggleMarkForReview(ctx context.Context, sessionID, questionID, userID string) (bool, error)
	Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) (*models.Session, error)

	Complete(ctx context.Context, sessionID, userID string) (*models.ExamResult, error)
	Abandon(ctx context.Context, sessionID, userID string) error
	Results(ctx context.Context, sessionID, userID string) (*models.ExamResult, error)

	// ExpireOverdue force-completes every in-progress session whose
	// deadline has passed and returns how many were closed.
	ExpireOverdue(ctx context.Context) (int, error)

	// WarnApproachingDeadlines emits one time-warning event per
	// in-progress countdown session entering the warning window and
	// returns how many were warned.
	WarnApproachingDeadlines(ctx context.Context) (int, error)
}

// ExamService owns the module lifecycle of full mock exams: fixed
// four-module layout, adaptive second modules, section-boundary breaks,
// and final scaled scoring.
type ExamService interface {
	CreateExam(ctx context.Context, userID string) (*SessionResponse, error)
	StartModule(ctx context.Context, sessionID, moduleID, userID string) (*SessionResponse, error)
	CompleteModule(ctx context.Context, sessionID, moduleID, userID string) (*ModuleTransitionResponse, error)
}

// ReportService renders completed-session results as downloadable
// artifacts.
type ReportService interface {
	ExportResultsXLSX(ctx context.Context, sessionID, userID string) ([]byte, string, error)
}

// SessionEventService publishes session lifecycle events. Failures are
// logged, never surfaced: event delivery must not fail user operations.
type SessionEventService interface {
	NotifySessionStarted(ctx context.Context, session *models.Session, questionCount int)
	NotifySessionCompleted(ctx context.Context, session *models.Session, answered, total int, forcedByExpiry bool)
	NotifySessionAbandoned(ctx context.Context, session *models.Session)
	NotifyModuleStarted(ctx context.Context, session *models.Session, module *models.ExamModule)
	NotifyModuleCompleted(ctx context.Context, session *models.Session, module *models.ExamModule, transition engine.Transition)
	NotifyTimeWarning(ctx context.Context, session *models.Session, moduleID *string, secondsRemaining int)
}
