package services

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/satprep/session-service/internal/cache"
	apperrors "github.com/satprep/session-service/internal/errors"
	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
	"github.com/satprep/session-service/internal/scoring"
	"github.com/satprep/session-service/internal/utils"
)

// sessionService implements SessionService. It is stateless between
// requests: every operation loads the session aggregate, applies the
// mutation, and persists it, with expiry enforced lazily against the
// stored deadline rather than by a live timer.
type sessionService struct {
	repo      repositories.Repository
	cache     *cache.SessionCache
	events    SessionEventService
	picker    *questionPicker
	validator *utils.Validator
	logger    *slog.Logger
	now       func() time.Time

	// How far ahead of a session deadline the warning sweep fires.
	// Zero disables warnings.
	warnWithin time.Duration
}

func NewSessionService(repo repositories.Repository, sessionCache *cache.SessionCache, eventService SessionEventService, validator *utils.Validator, warnWithin time.Duration, logger *slog.Logger) SessionService {
	s := newSessionCore(repo, sessionCache, eventService, validator, logger)
	s.warnWithin = warnWithin
	return s
}

func newSessionCore(repo repositories.Repository, sessionCache *cache.SessionCache, eventService SessionEventService, validator *utils.Validator, logger *slog.Logger) *sessionService {
	return &sessionService{
		repo:      repo,
		cache:     sessionCache,
		events:    eventService,
		picker:    newQuestionPicker(repo, rand.New(rand.NewSource(time.Now().UnixNano()))),
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context, req *CreateSessionRequest, userID string) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.ToValidationErrors(err)
	}
	if req.Kind == models.KindExam {
		return nil, NewBusinessRuleError("exam_creation", "exam sessions are created through the exam endpoint", nil)
	}

	active, err := s.repo.Session().HasActiveSession(ctx, userID, req.Kind)
	if err != nil {
		s.logger.Error("failed to check active sessions", "user_id", userID, "error", err)
		return nil, ErrInternalError
	}
	if active {
		return nil, ErrActiveSessionExists
	}

	questions, err := s.pickQuestions(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		Kind:             req.Kind,
		Status:           models.SessionInProgress,
		TimeLimitSeconds: req.TimeLimitSeconds,
		TopicID:          req.TopicID,
		StartedAt:        &now,
	}

	rows := make([]*models.SessionQuestion, len(questions))
	for i, q := range questions {
		rows[i] = &models.SessionQuestion{
			ID:           uuid.NewString(),
			SessionID:    session.ID,
			QuestionID:   q.ID,
			DisplayOrder: i,
			Status:       models.AnswerNotStarted,
		}
	}

	err = s.repo.Transaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Session().Create(ctx, session); err != nil {
			return err
		}
		return repo.SessionQuestion().CreateBatch(ctx, rows)
	})
	if err != nil {
		s.logger.Error("failed to create session", "user_id", userID, "kind", req.Kind, "error", err)
		return nil, ErrInternalError
	}

	for i, row := range rows {
		row.Question = *questions[i]
		session.Questions = append(session.Questions, *row)
	}

	s.events.NotifySessionStarted(ctx, session, len(rows))
	s.cacheSession(ctx, session)

	s.logger.Info("session created",
		"session_id", session.ID, "user_id", userID, "kind", session.Kind, "questions", len(rows))
	return s.response(session), nil
}

func (s *sessionService) GetByID(ctx context.Context, sessionID, userID string) (*SessionResponse, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s.sessionExpired(session) {
		if _, err := s.finalize(ctx, session, true); err != nil {
			return nil, err
		}
	}
	return s.response(session), nil
}

func (s *sessionService) List(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	filters.UserID = &userID
	sessions, total, err := s.repo.Session().List(ctx, filters)
	if err != nil {
		s.logger.Error("failed to list sessions", "user_id", userID, "error", err)
		return nil, 0, ErrInternalError
	}
	return sessions, total, nil
}

// SubmitAnswer records a draft answer. Drafts stay in_progress until the
// user moves on or the session completes; only then do they commit to
// answered. Repeated submissions for the same question overwrite.
func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID, questionID string, req *AnswerRequest, userID string) (*models.SessionQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.ToValidationErrors(err)
	}
	normalized := scoring.Normalize(req.Answer)
	if len(normalized) == 0 {
		return nil, ErrInvalidAnswerPayload
	}

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWritable(ctx, session); err != nil {
		return nil, err
	}

	row, err := s.repo.SessionQuestion().GetBySessionAndQuestion(ctx, sessionID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotInSession
		}
		s.logger.Error("failed to load session question", "session_id", sessionID, "question_id", questionID, "error", err)
		return nil, ErrInternalError
	}

	now := s.now()
	row.UserAnswer = normalized
	row.Status = models.AnswerInProgress
	row.AnsweredAt = &now
	if req.ConfidenceScore != nil {
		row.ConfidenceScore = req.ConfidenceScore
	}
	if req.TimeSpentSeconds != nil {
		total := *req.TimeSpentSeconds
		if row.TimeSpentSeconds != nil {
			total += *row.TimeSpentSeconds
		}
		row.TimeSpentSeconds = &total
	}

	if err := s.repo.SessionQuestion().UpsertAnswer(ctx, row); err != nil {
		s.logger.Error("failed to save answer", "session_id", sessionID, "question_id", questionID, "error", err)
		return nil, ErrInternalError
	}
	s.invalidateCache(ctx, sessionID)
	return row, nil
}

func (s *sessionService) ToggleMarkForReview(ctx context.Context, sessionID, questionID, userID string) (bool, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return false, err
	}
	if err := s.ensureWritable(ctx, session); err != nil {
		return false, err
	}

	row, err := s.repo.SessionQuestion().GetBySessionAndQuestion(ctx, sessionID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrQuestionNotInSession
		}
		return false, ErrInternalError
	}

	row.IsMarkedForReview = !row.IsMarkedForReview
	if err := s.repo.SessionQuestion().UpsertAnswer(ctx, row); err != nil {
		s.logger.Error("failed to toggle review mark", "session_id", sessionID, "question_id", questionID, "error", err)
		return false, ErrInternalError
	}
	s.invalidateCache(ctx, sessionID)
	return row.IsMarkedForReview, nil
}

// Navigate commits the draft on the question being left, then moves the
// persisted position. Commit-then-move ordering means a crash mid-request
// never loses a committed answer to an advanced position.
func (s *sessionService) Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) (*models.Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.ToValidationErrors(err)
	}

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWritable(ctx, session); err != nil {
		return nil, err
	}
	if req.Index >= len(session.Questions) {
		return nil, apperrors.NewValidationError("index", "index is outside the question list", req.Index)
	}
	if session.Kind == models.KindExam {
		if err := s.ensureSameModule(session, req.Index); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if current := rowAt(session, session.CurrentIndex); current != nil && current.Status == models.AnswerInProgress {
		current.Status = models.AnswerAnswered
		current.AnsweredAt = &now
		if err := s.repo.SessionQuestion().UpsertAnswer(ctx, current); err != nil {
			s.logger.Error("failed to commit answer on navigation", "session_id", sessionID, "error", err)
			return nil, ErrInternalError
		}
	}

	session.CurrentIndex = req.Index
	if err := s.repo.Session().Save(ctx, session); err != nil {
		s.logger.Error("failed to persist navigation", "session_id", sessionID, "error", err)
		return nil, ErrInternalError
	}
	s.invalidateCache(ctx, sessionID)
	return session, nil
}

func (s *sessionService) Complete(ctx context.Context, sessionID, userID string) (*models.ExamResult, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionCompleted {
		return s.computeResult(ctx, session)
	}
	if session.Status == models.SessionAbandoned {
		return nil, ErrSessionNotActive
	}
	if session.Kind == models.KindExam && !allModulesCompleted(session) {
		return nil, NewBusinessRuleError("incomplete_modules",
			"an exam completes when its final module completes", map[string]interface{}{"session_id": sessionID})
	}
	return s.finalize(ctx, session, false)
}

func (s *sessionService) Abandon(ctx context.Context, sessionID, userID string) error {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	switch session.Status {
	case models.SessionCompleted:
		return ErrSessionCompleted
	case models.SessionAbandoned:
		return nil
	}

	session.Status = models.SessionAbandoned
	if err := s.repo.Session().Save(ctx, session); err != nil {
		s.logger.Error("failed to abandon session", "session_id", sessionID, "error", err)
		return ErrInternalError
	}
	s.events.NotifySessionAbandoned(ctx, session)
	s.invalidateCache(ctx, sessionID)
	s.logger.Info("session abandoned", "session_id", sessionID, "user_id", userID)
	return nil
}

func (s *sessionService) Results(ctx context.Context, sessionID, userID string) (*models.ExamResult, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		if s.sessionExpired(session) {
			return s.finalize(ctx, session, true)
		}
		return nil, ErrSessionNotCompleted
	}
	return s.computeResult(ctx, session)
}

// ExpireOverdue is the background sweep behind lazy expiry: sessions the
// user never came back to are force-completed here so their results
// exist without another request.
func (s *sessionService) ExpireOverdue(ctx context.Context) (int, error) {
	sessions, err := s.repo.Session().GetExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("failed to list expired sessions", "error", err)
		return 0, ErrInternalError
	}

	closed := 0
	for _, stale := range sessions {
		// Reload the full aggregate; the sweep query returns bare rows.
		session, err := s.repo.Session().GetByIDWithDetails(ctx, stale.ID)
		if err != nil {
			s.logger.Error("failed to load expired session", "session_id", stale.ID, "error", err)
			continue
		}
		if !s.sessionExpired(session) {
			continue
		}
		if _, err := s.finalize(ctx, session, true); err != nil {
			s.logger.Error("failed to expire session", "session_id", session.ID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// WarnApproachingDeadlines is ExpireOverdue's companion on the background
// sweep: each in-progress countdown session whose deadline falls within
// the configured window gets one session.time_warning event. MarkWarned
// lands before the event so a publish failure cannot cause a second
// warning on the next tick.
func (s *sessionService) WarnApproachingDeadlines(ctx context.Context) (int, error) {
	if s.warnWithin <= 0 {
		return 0, nil
	}
	sessions, err := s.repo.Session().GetSessionsNearingDeadline(ctx, s.warnWithin)
	if err != nil {
		s.logger.Error("failed to list sessions nearing deadline", "error", err)
		return 0, ErrInternalError
	}

	warned := 0
	now := s.now()
	for _, session := range sessions {
		if session.WarnedAt != nil || session.TimeLimitSeconds == nil || session.StartedAt == nil {
			continue
		}
		deadline := session.StartedAt.Add(time.Duration(*session.TimeLimitSeconds) * time.Second)
		remaining := int(deadline.Sub(now).Seconds())
		if remaining <= 0 {
			// Past the deadline already; the expiry sweep owns it.
			continue
		}
		if err := s.repo.Session().MarkWarned(ctx, session.ID, now); err != nil {
			s.logger.Error("failed to record time warning", "session_id", session.ID, "error", err)
			continue
		}
		session.WarnedAt = &now
		s.events.NotifyTimeWarning(ctx, session, nil, remaining)
		warned++
	}
	return warned, nil
}

// ===== INTERNAL HELPERS =====

func (s *sessionService) pickQuestions(ctx context.Context, req *CreateSessionRequest) ([]*models.Question, error) {
	switch req.Kind {
	case models.KindDiagnostic:
		return s.picker.PickDiagnostic(ctx)
	case models.KindPractice:
		if req.TopicID == nil {
			return nil, apperrors.NewValidationError("topic_id", "practice sessions require a topic", nil)
		}
		if _, err := s.repo.Taxonomy().GetTopicByID(ctx, *req.TopicID); err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrTopicNotFound
			}
			return nil, ErrInternalError
		}
		count := req.QuestionCount
		if count == 0 {
			count = DefaultPracticeCount
		}
		return s.picker.PickTopic(ctx, *req.TopicID, count)
	default:
		return nil, apperrors.NewValidationError("kind", "unknown session kind", req.Kind)
	}
}

// loadOwned fetches the full session aggregate and enforces ownership.
func (s *sessionService) loadOwned(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.repo.Session().GetByIDWithDetails(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		return nil, ErrInternalError
	}
	if session.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", "access", "session belongs to another user")
	}
	return session, nil
}

// sessionExpired reports whether a single-module countdown has run out.
// Exam module deadlines are enforced by the exam service.
func (s *sessionService) sessionExpired(session *models.Session) bool {
	if session.Status != models.SessionInProgress || session.Kind == models.KindExam {
		return false
	}
	if session.TimeLimitSeconds == nil || session.StartedAt == nil {
		return false
	}
	deadline := session.StartedAt.Add(time.Duration(*session.TimeLimitSeconds) * time.Second)
	return s.now().After(deadline)
}

// ensureWritable rejects mutations on sessions that are finished or past
// their deadline. An expired single-module session is force-completed
// before the rejection so its drafts are preserved.
func (s *sessionService) ensureWritable(ctx context.Context, session *models.Session) error {
	switch session.Status {
	case models.SessionCompleted:
		return ErrSessionCompleted
	case models.SessionAbandoned:
		return ErrSessionNotActive
	}
	if s.sessionExpired(session) {
		if _, err := s.finalize(ctx, session, true); err != nil {
			return err
		}
		return ErrSessionExpired
	}
	if session.Kind == models.KindExam {
		active := activeModule(session)
		if active == nil {
			return ErrModuleNotActive
		}
		if active.Expired(s.now()) {
			return ErrSessionExpired
		}
	}
	return nil
}

func (s *sessionService) ensureSameModule(session *models.Session, index int) error {
	active := activeModule(session)
	if active == nil {
		return ErrModuleNotActive
	}
	target := rowAt(session, index)
	if target == nil || target.ModuleID == nil || *target.ModuleID != active.ID {
		return NewBusinessRuleError("module_scope",
			"navigation is limited to the module in progress", map[string]interface{}{"index": index})
	}
	return nil
}

// finalize commits remaining drafts, grades the session, and marks it
// completed. Calling it on a completed session recomputes the result
// without touching state.
func (s *sessionService) finalize(ctx context.Context, session *models.Session, forced bool) (*models.ExamResult, error) {
	now := s.now()
	for i := range session.Questions {
		row := &session.Questions[i]
		if row.Status == models.AnswerInProgress {
			row.Status = models.AnswerAnswered
			if row.AnsweredAt == nil {
				row.AnsweredAt = &now
			}
		}
	}

	questions, err := s.questionBank(ctx, session)
	if err != nil {
		return nil, err
	}
	result := scoring.Score(session, questions, now)

	correct := make(map[string]bool, len(result.Questions))
	for _, qr := range result.Questions {
		correct[qr.QuestionID] = qr.IsCorrect
	}
	for i := range session.Questions {
		row := &session.Questions[i]
		v := correct[row.QuestionID]
		row.IsCorrect = &v
	}

	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	if result.Scaled != nil {
		session.TotalScore = &result.Scaled.Total
		session.MathScore = &result.Scaled.Math
		session.RWScore = &result.Scaled.RW
	}

	if err := s.repo.Session().Save(ctx, session); err != nil {
		s.logger.Error("failed to finalize session", "session_id", session.ID, "error", err)
		return nil, ErrInternalError
	}

	answered := 0
	for _, row := range session.Questions {
		if row.Answered() {
			answered++
		}
	}
	s.events.NotifySessionCompleted(ctx, session, answered, len(session.Questions), forced)
	s.invalidateCache(ctx, session.ID)

	s.logger.Info("session completed",
		"session_id", session.ID, "forced", forced,
		"correct", result.TotalCorrect, "total", result.TotalQuestions)
	return result, nil
}

// computeResult regrades a completed session. Pinning the computation
// time to CompletedAt keeps repeated calls byte-identical.
func (s *sessionService) computeResult(ctx context.Context, session *models.Session) (*models.ExamResult, error) {
	questions, err := s.questionBank(ctx, session)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if session.CompletedAt != nil {
		at = *session.CompletedAt
	}
	return scoring.Score(session, questions, at), nil
}

func (s *sessionService) questionBank(ctx context.Context, session *models.Session) ([]*models.Question, error) {
	ids := make([]string, len(session.Questions))
	for i, row := range session.Questions {
		ids[i] = row.QuestionID
	}
	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load question bank", "session_id", session.ID, "error", err)
		return nil, ErrInternalError
	}
	return questions, nil
}

func (s *sessionService) response(session *models.Session) *SessionResponse {
	resp := &SessionResponse{
		Session:        session,
		TotalQuestions: len(session.Questions),
	}
	for _, row := range session.Questions {
		if row.Status != models.AnswerNotStarted {
			resp.AnsweredCount++
		}
	}

	now := s.now()
	if session.Kind == models.KindExam {
		if active := activeModule(session); active != nil {
			resp.ActiveModule = active
			if deadline := active.Deadline(); deadline != nil {
				remaining := clampSeconds(deadline.Sub(now))
				resp.TimeRemainingSeconds = &remaining
			}
		}
	} else if session.Status == models.SessionInProgress && session.TimeLimitSeconds != nil && session.StartedAt != nil {
		deadline := session.StartedAt.Add(time.Duration(*session.TimeLimitSeconds) * time.Second)
		remaining := clampSeconds(deadline.Sub(now))
		resp.TimeRemainingSeconds = &remaining
	}
	return resp
}

func (s *sessionService) cacheSession(ctx context.Context, session *models.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, session); err != nil {
		s.logger.Warn("failed to cache session", "session_id", session.ID, "error", err)
	}
}

func (s *sessionService) invalidateCache(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("failed to invalidate session cache", "session_id", sessionID, "error", err)
	}
}

func rowAt(session *models.Session, index int) *models.SessionQuestion {
	if index < 0 || index >= len(session.Questions) {
		return nil
	}
	return &session.Questions[index]
}

func activeModule(session *models.Session) *models.ExamModule {
	for i := range session.Modules {
		if session.Modules[i].Status == models.ModuleInProgress {
			return &session.Modules[i]
		}
	}
	return nil
}

func allModulesCompleted(session *models.Session) bool {
	for _, m := range session.Modules {
		if m.Status != models.ModuleCompleted {
			return false
		}
	}
	return len(session.Modules) > 0
}

func clampSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
