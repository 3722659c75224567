package services

import (
	"context"
	"log/slog"

	"github.com/satprep/session-service/internal/engine"
	"github.com/satprep/session-service/internal/events"
	"github.com/satprep/session-service/internal/models"
)

// sessionEventService publishes session lifecycle events. Publishing is
// best-effort: a broker outage must never fail the user-facing operation,
// so every error is logged and swallowed here.
type sessionEventService struct {
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewSessionEventService(publisher events.EventPublisher, logger *slog.Logger) SessionEventService {
	return &sessionEventService{publisher: publisher, logger: logger}
}

func (s *sessionEventService) NotifySessionStarted(ctx context.Context, session *models.Session, questionCount int) {
	s.publish(ctx, events.NewSessionStartedEvent(session, questionCount))
}

func (s *sessionEventService) NotifySessionCompleted(ctx context.Context, session *models.Session, answered, total int, forced bool) {
	s.publish(ctx, events.NewSessionCompletedEvent(session, answered, total, forced))
}

func (s *sessionEventService) NotifySessionAbandoned(ctx context.Context, session *models.Session) {
	answered := 0
	for _, q := range session.Questions {
		if q.Status == models.AnswerAnswered {
			answered++
		}
	}
	s.publish(ctx, events.NewSessionAbandonedEvent(session, answered))
}

func (s *sessionEventService) NotifyModuleStarted(ctx context.Context, session *models.Session, module *models.ExamModule) {
	s.publish(ctx, events.NewModuleStartedEvent(session, module))
}

func (s *sessionEventService) NotifyModuleCompleted(ctx context.Context, session *models.Session, module *models.ExamModule, transition engine.Transition) {
	s.publish(ctx, events.NewModuleCompletedEvent(session, module, string(transition)))
}

func (s *sessionEventService) NotifyTimeWarning(ctx context.Context, session *models.Session, moduleID *string, secondsRemaining int) {
	s.publish(ctx, events.NewTimeWarningEvent(session, moduleID, secondsRemaining))
}

func (s *sessionEventService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish session event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}
