package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/satprep/session-service/internal/cache"
	"github.com/satprep/session-service/internal/engine"
	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
	"github.com/satprep/session-service/internal/scoring"
	"github.com/satprep/session-service/internal/utils"
)

// examLayout is the fixed module order of a full mock exam. Each section
// runs two modules back to back; a break separates the sections.
var examLayout = []models.ModuleType{
	models.RWModule1,
	models.RWModule2,
	models.MathModule1,
	models.MathModule2,
}

// examService implements ExamService on top of the shared session core.
// Second modules adapt: their difficulty mix follows the raw score of the
// first module of the same section, and their questions are drawn only
// when the preceding module completes.
type examService struct {
	core *sessionService
}

func NewExamService(repo repositories.Repository, sessionCache *cache.SessionCache, eventService SessionEventService, validator *utils.Validator, logger *slog.Logger) ExamService {
	return &examService{core: newSessionCore(repo, sessionCache, eventService, validator, logger)}
}

// CreateExam lays out the four modules and draws the first module's
// questions. The session stays not_started until the first module starts,
// so the clock does not run while the user reads instructions.
func (s *examService) CreateExam(ctx context.Context, userID string) (*SessionResponse, error) {
	active, err := s.core.repo.Session().HasActiveSession(ctx, userID, models.KindExam)
	if err != nil {
		s.core.logger.Error("failed to check active exams", "user_id", userID, "error", err)
		return nil, ErrInternalError
	}
	if active {
		return nil, ErrActiveSessionExists
	}

	now := s.core.now()
	session := &models.Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Kind:   models.KindExam,
		Status: models.SessionNotStarted,
	}

	modules := make([]*models.ExamModule, len(examLayout))
	for i, moduleType := range examLayout {
		modules[i] = &models.ExamModule{
			ID:               uuid.NewString(),
			SessionID:        session.ID,
			ModuleType:       moduleType,
			ModuleNumber:     i%2 + 1,
			Position:         i + 1,
			TimeLimitSeconds: ModuleTimeLimitSeconds,
			Status:           models.ModuleNotStarted,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	first := modules[0]
	questions, err := s.core.picker.PickSection(ctx, first.ModuleType.Section(), ModuleQuestionCount, balancedDistribution, nil)
	if err != nil {
		return nil, err
	}
	rows := moduleRows(session.ID, first.ID, questions, 0)

	err = s.core.repo.Transaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Session().Create(ctx, session); err != nil {
			return err
		}
		if err := repo.Module().CreateBatch(ctx, modules); err != nil {
			return err
		}
		return repo.SessionQuestion().CreateBatch(ctx, rows)
	})
	if err != nil {
		s.core.logger.Error("failed to create exam", "user_id", userID, "error", err)
		return nil, ErrInternalError
	}

	for _, m := range modules {
		session.Modules = append(session.Modules, *m)
	}
	for i, row := range rows {
		row.Question = *questions[i]
		session.Questions = append(session.Questions, *row)
	}

	s.core.logger.Info("exam created", "session_id", session.ID, "user_id", userID)
	return s.core.response(session), nil
}

// StartModule moves the next pending module to in_progress. Modules start
// strictly in position order; restarting the module already in progress is
// the resume path and changes nothing but the navigator position.
func (s *examService) StartModule(ctx context.Context, sessionID, moduleID, userID string) (*SessionResponse, error) {
	session, err := s.loadExam(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionCompleted:
		return nil, ErrSessionCompleted
	case models.SessionAbandoned:
		return nil, ErrSessionNotActive
	}

	now := s.core.now()
	orch := engine.NewOrchestrator(modulePointers(session))

	// A module whose deadline passed while the client was away completes
	// before anything else happens.
	if active := orch.Active(); active != nil && active.Expired(now) && active.ID != moduleID {
		if _, err := s.completeModuleLocked(ctx, session, orch, active, true); err != nil {
			return nil, err
		}
	}

	next := orch.Next()
	if next == nil {
		return nil, ErrSessionCompleted
	}
	if next.ID != moduleID {
		return nil, ErrModuleOutOfOrder
	}

	module, err := orch.Start(moduleID, now)
	if err != nil {
		return nil, mapEngineError(err)
	}

	started := false
	if session.Status == models.SessionNotStarted {
		session.Status = models.SessionInProgress
		session.StartedAt = &now
		started = true
	}
	session.CurrentIndex = resumeIndex(session, module.ID)

	if err := s.core.repo.Session().Save(ctx, session); err != nil {
		s.core.logger.Error("failed to start module", "session_id", sessionID, "module_id", moduleID, "error", err)
		return nil, ErrInternalError
	}

	if started {
		s.core.events.NotifySessionStarted(ctx, session, len(session.Questions))
	}
	s.core.events.NotifyModuleStarted(ctx, session, module)
	s.core.invalidateCache(ctx, sessionID)

	s.core.logger.Info("module started",
		"session_id", sessionID, "module_id", moduleID, "module_type", module.ModuleType)
	return s.core.response(session), nil
}

// CompleteModule finishes the module in progress, scores it, draws the
// next module's questions, and finalizes the exam after the last module. A
// deadline that already passed clamps the recorded remaining time to zero
// but otherwise completes normally, so late clients lose no answers.
func (s *examService) CompleteModule(ctx context.Context, sessionID, moduleID, userID string) (*ModuleTransitionResponse, error) {
	session, err := s.loadExam(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionCompleted:
		return nil, ErrSessionCompleted
	case models.SessionAbandoned:
		return nil, ErrSessionNotActive
	}

	orch := engine.NewOrchestrator(modulePointers(session))
	module := findModule(session, moduleID)
	if module == nil {
		return nil, ErrModuleNotFound
	}
	if module.Status == models.ModuleCompleted {
		return nil, ErrModuleAlreadyCompleted
	}
	if module.Status != models.ModuleInProgress {
		return nil, ErrModuleNotActive
	}

	return s.completeModuleLocked(ctx, session, orch, module, false)
}

// completeModuleLocked runs the completion sequence on an in-progress
// module: commit drafts, record remaining time, score, generate the next
// module's questions, persist, and finalize on the last module.
func (s *examService) completeModuleLocked(ctx context.Context, session *models.Session, orch *engine.Orchestrator, module *models.ExamModule, forced bool) (*ModuleTransitionResponse, error) {
	now := s.core.now()

	moduleRowIdx := make([]int, 0, ModuleQuestionCount)
	for i := range session.Questions {
		row := &session.Questions[i]
		if row.ModuleID == nil || *row.ModuleID != module.ID {
			continue
		}
		moduleRowIdx = append(moduleRowIdx, i)
		if row.Status == models.AnswerInProgress {
			row.Status = models.AnswerAnswered
			if row.AnsweredAt == nil {
				row.AnsweredAt = &now
			}
		}
	}

	remaining := 0
	if deadline := module.Deadline(); deadline != nil {
		remaining = clampSeconds(deadline.Sub(now))
	}

	transition, next, err := orch.Complete(module.ID, &remaining, now)
	if err != nil {
		return nil, mapEngineError(err)
	}

	raw, total, err := s.scoreModule(ctx, session, moduleRowIdx)
	if err != nil {
		return nil, err
	}
	module.RawScore = &raw

	var newRows []*models.SessionQuestion
	if next != nil && !hasRows(session, next.ID) {
		newRows, err = s.drawModuleQuestions(ctx, session, next, raw, total)
		if err != nil {
			return nil, err
		}
	}

	err = s.core.repo.Transaction(ctx, func(repo repositories.Repository) error {
		if err := repo.Session().Save(ctx, session); err != nil {
			return err
		}
		if len(newRows) > 0 {
			return repo.SessionQuestion().CreateBatch(ctx, newRows)
		}
		return nil
	})
	if err != nil {
		s.core.logger.Error("failed to complete module", "session_id", session.ID, "module_id", module.ID, "error", err)
		return nil, ErrInternalError
	}
	for _, row := range newRows {
		session.Questions = append(session.Questions, *row)
	}

	s.core.events.NotifyModuleCompleted(ctx, session, module, transition)
	s.core.invalidateCache(ctx, session.ID)
	s.core.logger.Info("module completed",
		"session_id", session.ID, "module_id", module.ID, "module_type", module.ModuleType,
		"raw_score", raw, "transition", transition, "forced", forced)

	if transition == engine.TransitionFinal {
		if _, err := s.core.finalize(ctx, session, forced); err != nil {
			return nil, err
		}
	}

	return &ModuleTransitionResponse{
		Transition: transition,
		Module:     module,
		NextModule: next,
		RawScore:   raw,
	}, nil
}

// drawModuleQuestions draws the question set for a module about to become
// reachable. Second modules of a section adapt to the first module's
// percentage; first modules get the balanced mix.
func (s *examService) drawModuleQuestions(ctx context.Context, session *models.Session, module *models.ExamModule, prevRaw, prevTotal int) ([]*models.SessionQuestion, error) {
	dist := balancedDistribution
	if module.ModuleNumber == 2 && prevTotal > 0 {
		tier := TierForScore(float64(prevRaw) / float64(prevTotal))
		dist = tierDistributions[tier]
	}

	exclude := make([]string, 0, len(session.Questions))
	for _, row := range session.Questions {
		exclude = append(exclude, row.QuestionID)
	}

	questions, err := s.core.picker.PickSection(ctx, module.ModuleType.Section(), ModuleQuestionCount, dist, exclude)
	if err != nil {
		return nil, err
	}
	return moduleRows(session.ID, module.ID, questions, len(session.Questions)), nil
}

func (s *examService) scoreModule(ctx context.Context, session *models.Session, rowIdx []int) (raw, total int, err error) {
	ids := make([]string, 0, len(rowIdx))
	for _, i := range rowIdx {
		ids = append(ids, session.Questions[i].QuestionID)
	}
	questions, err := s.core.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		s.core.logger.Error("failed to load module questions", "session_id", session.ID, "error", err)
		return 0, 0, ErrInternalError
	}
	bank := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		bank[q.ID] = q
	}

	for _, i := range rowIdx {
		row := &session.Questions[i]
		total++
		q := bank[row.QuestionID]
		if q == nil || !row.Answered() {
			continue
		}
		if scoring.IsCorrect(q, row.UserAnswer) {
			raw++
		}
	}
	return raw, total, nil
}

func (s *examService) loadExam(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.core.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Kind != models.KindExam {
		return nil, NewBusinessRuleError("exam_only",
			"module operations apply to exam sessions only", map[string]interface{}{"kind": session.Kind})
	}
	return session, nil
}

func moduleRows(sessionID, moduleID string, questions []*models.Question, orderOffset int) []*models.SessionQuestion {
	rows := make([]*models.SessionQuestion, len(questions))
	for i, q := range questions {
		rows[i] = &models.SessionQuestion{
			ID:           uuid.NewString(),
			SessionID:    sessionID,
			ModuleID:     &moduleID,
			QuestionID:   q.ID,
			DisplayOrder: orderOffset + i,
			Status:       models.AnswerNotStarted,
		}
	}
	return rows
}

func modulePointers(session *models.Session) []*models.ExamModule {
	out := make([]*models.ExamModule, len(session.Modules))
	for i := range session.Modules {
		out[i] = &session.Modules[i]
	}
	return out
}

func findModule(session *models.Session, moduleID string) *models.ExamModule {
	for i := range session.Modules {
		if session.Modules[i].ID == moduleID {
			return &session.Modules[i]
		}
	}
	return nil
}

func hasRows(session *models.Session, moduleID string) bool {
	for _, row := range session.Questions {
		if row.ModuleID != nil && *row.ModuleID == moduleID {
			return true
		}
	}
	return false
}

// resumeIndex places the navigator on the first untouched question of a
// module, or its first question when every row has been touched.
func resumeIndex(session *models.Session, moduleID string) int {
	first := -1
	for i := range session.Questions {
		row := &session.Questions[i]
		if row.ModuleID == nil || *row.ModuleID != moduleID {
			continue
		}
		if first == -1 {
			first = i
		}
		if row.Status == models.AnswerNotStarted {
			return i
		}
	}
	if first == -1 {
		return 0
	}
	return first
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrModuleNotFound):
		return ErrModuleNotFound
	case errors.Is(err, engine.ErrModuleAlreadyCompleted):
		return ErrModuleAlreadyCompleted
	case errors.Is(err, engine.ErrNoActiveModule):
		return ErrModuleNotActive
	case errors.Is(err, engine.ErrSessionCompleted):
		return ErrSessionCompleted
	default:
		return err
	}
}
