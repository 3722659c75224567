package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satprep/session-service/internal/engine"
	"github.com/satprep/session-service/internal/events"
	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
	"github.com/satprep/session-service/internal/utils"
)

func newTestExamService(repo repositories.Repository) (ExamService, *events.MockEventPublisher) {
	logger := testLogger()
	pub := events.NewMockEventPublisher(logger)
	svc := NewExamService(repo, nil, NewSessionEventService(pub, logger), utils.NewValidator(), logger)
	return svc, pub
}

func questionSet(prefix string, n int, section models.Section) []*models.Question {
	out := make([]*models.Question, n)
	for i := range out {
		out[i] = svcQuestion(fmt.Sprintf("%s-%d", prefix, i), section, "a")
	}
	return out
}

// randomFilter matches a GetRandomQuestions call by section, difficulty,
// and requested count, so tests can pin the exact distribution drawn.
func randomFilter(section models.Section, difficulty *models.DifficultyLevel, count int) interface{} {
	return mock.MatchedBy(func(f repositories.RandomQuestionFilters) bool {
		if f.Section == nil || *f.Section != section || f.Count != count {
			return false
		}
		if difficulty == nil {
			return f.Difficulty == nil
		}
		return f.Difficulty != nil && *f.Difficulty == *difficulty
	})
}

func difficulty(d models.DifficultyLevel) *models.DifficultyLevel { return &d }

// examSessionFixture builds the four-module layout with no question rows.
func examSessionFixture() *models.Session {
	session := &models.Session{
		ID:     "exam-1",
		UserID: testUserID,
		Kind:   models.KindExam,
		Status: models.SessionNotStarted,
	}
	for i, moduleType := range examLayout {
		session.Modules = append(session.Modules, models.ExamModule{
			ID:               fmt.Sprintf("m%d", i+1),
			SessionID:        session.ID,
			ModuleType:       moduleType,
			ModuleNumber:     i%2 + 1,
			Position:         i + 1,
			TimeLimitSeconds: ModuleTimeLimitSeconds,
			Status:           models.ModuleNotStarted,
		})
	}
	return session
}

func addModuleRows(session *models.Session, moduleID string, questions ...*models.Question) {
	id := moduleID
	for _, q := range questions {
		session.Questions = append(session.Questions, models.SessionQuestion{
			ID:           fmt.Sprintf("row-%s-%s", moduleID, q.ID),
			SessionID:    session.ID,
			ModuleID:     &id,
			QuestionID:   q.ID,
			DisplayOrder: len(session.Questions),
			Status:       models.AnswerNotStarted,
			Question:     *q,
		})
	}
}

func rwCategories() []*models.Category {
	return []*models.Category{{
		ID: "cat-rw", Name: "Craft and Structure",
		Section: models.SectionReadingWriting, WeightInSection: 100,
	}}
}

func mathCategories() []*models.Category {
	return []*models.Category{{
		ID: "cat-math", Name: "Algebra",
		Section: models.SectionMath, WeightInSection: 100,
	}}
}

func TestExamService_CreateExam(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	rw := models.SectionReadingWriting
	repo.session.On("HasActiveSession", mock.Anything, testUserID, models.KindExam).Return(false, nil)
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, rw).Return(rwCategories(), nil)

	// Balanced draw for a 27-question module: 8 easy, 9 medium, 8 hard,
	// then a 2-question backfill for the rounding remainder.
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyEasy), 8)).
		Return(questionSet("rw-e", 8, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyMedium), 9)).
		Return(questionSet("rw-m", 9, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyHard), 8)).
		Return(questionSet("rw-h", 8, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, nil, 2)).
		Return(questionSet("rw-fill", 2, rw), nil)

	var createdModules []*models.ExamModule
	repo.session.On("Create", mock.Anything, mock.AnythingOfType("*models.Session")).Return(nil)
	repo.modules.On("CreateBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		createdModules = args.Get(1).([]*models.ExamModule)
	}).Return(nil)
	repo.rows.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.CreateExam(context.Background(), testUserID)

	require.NoError(t, err)
	assert.Equal(t, models.SessionNotStarted, resp.Session.Status)
	assert.Nil(t, resp.Session.StartedAt)
	assert.Equal(t, ModuleQuestionCount, resp.TotalQuestions)
	assert.Nil(t, resp.ActiveModule)

	require.Len(t, createdModules, 4)
	for i, m := range createdModules {
		assert.Equal(t, examLayout[i], m.ModuleType)
		assert.Equal(t, i+1, m.Position)
		assert.Equal(t, i%2+1, m.ModuleNumber)
		assert.Equal(t, ModuleTimeLimitSeconds, m.TimeLimitSeconds)
	}

	// Every drawn row belongs to the first module.
	firstID := createdModules[0].ID
	for _, row := range resp.Session.Questions {
		require.NotNil(t, row.ModuleID)
		assert.Equal(t, firstID, *row.ModuleID)
	}
}

func TestExamService_CreateExam_ActiveExists(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	repo.session.On("HasActiveSession", mock.Anything, testUserID, models.KindExam).Return(true, nil)

	_, err := svc.CreateExam(context.Background(), testUserID)
	assert.ErrorIs(t, err, ErrActiveSessionExists)
}

func TestExamService_StartModule_OrderEnforced(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	session := examSessionFixture()
	addModuleRows(session, "m1", svcQuestion("q1", models.SectionReadingWriting, "a"))
	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)

	_, err := svc.StartModule(context.Background(), session.ID, "m2", testUserID)
	assert.ErrorIs(t, err, ErrModuleOutOfOrder)
}

func TestExamService_StartModule_FirstModuleStartsSession(t *testing.T) {
	repo := newMockRepository()
	svc, pub := newTestExamService(repo)

	session := examSessionFixture()
	addModuleRows(session, "m1", svcQuestion("q1", models.SectionReadingWriting, "a"))
	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.session.On("Save", mock.Anything, session).Return(nil)

	resp, err := svc.StartModule(context.Background(), session.ID, "m1", testUserID)

	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, resp.Session.Status)
	assert.NotNil(t, resp.Session.StartedAt)
	assert.Equal(t, models.ModuleInProgress, session.Modules[0].Status)
	assert.NotNil(t, session.Modules[0].StartedAt)
	assert.Equal(t, 0, resp.Session.CurrentIndex)
	require.NotNil(t, resp.ActiveModule)
	assert.Equal(t, "m1", resp.ActiveModule.ID)
	require.NotNil(t, resp.TimeRemainingSeconds)
	assert.InDelta(t, ModuleTimeLimitSeconds, *resp.TimeRemainingSeconds, 2)

	require.Len(t, pub.Events, 2)
	assert.Equal(t, events.EventSessionStarted, pub.Events[0].Type)
	assert.Equal(t, events.EventModuleStarted, pub.Events[1].Type)
}

func TestExamService_StartModule_ResumePlacesNavigator(t *testing.T) {
	repo := newMockRepository()
	svc, pub := newTestExamService(repo)

	session := examSessionFixture()
	addModuleRows(session, "m1",
		svcQuestion("q1", models.SectionReadingWriting, "a"),
		svcQuestion("q2", models.SectionReadingWriting, "b"),
	)
	started := time.Now().Add(-5 * time.Minute)
	session.Status = models.SessionInProgress
	session.StartedAt = &started
	session.Modules[0].Status = models.ModuleInProgress
	session.Modules[0].StartedAt = &started
	session.Questions[0].Status = models.AnswerAnswered

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.session.On("Save", mock.Anything, session).Return(nil)

	resp, err := svc.StartModule(context.Background(), session.ID, "m1", testUserID)

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Session.CurrentIndex)
	// The original deadline holds across the resume.
	assert.Equal(t, started, *session.Modules[0].StartedAt)

	require.Len(t, pub.Events, 1)
	assert.Equal(t, events.EventModuleStarted, pub.Events[0].Type)
}

func TestExamService_CompleteModule_AdaptiveSecondModule(t *testing.T) {
	repo := newMockRepository()
	svc, pub := newTestExamService(repo)

	rw := models.SectionReadingWriting
	q1 := svcQuestion("q1", rw, "a")
	q2 := svcQuestion("q2", rw, "b")
	session := examSessionFixture()
	addModuleRows(session, "m1", q1, q2)

	started := time.Now().Add(-10 * time.Minute)
	session.Status = models.SessionInProgress
	session.StartedAt = &started
	session.Modules[0].Status = models.ModuleInProgress
	session.Modules[0].StartedAt = &started

	// Both answers correct: a perfect first module selects the hard mix
	// for the second.
	now := time.Now()
	for i, answer := range []string{"a", "b"} {
		session.Questions[i].Status = models.AnswerAnswered
		session.Questions[i].UserAnswer = []string{answer}
		session.Questions[i].AnsweredAt = &now
	}

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.question.On("GetByIDs", mock.Anything, mock.Anything).Return([]*models.Question{q1, q2}, nil)
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, rw).Return(rwCategories(), nil)

	// Hard mix for 27 questions: 4 easy, 9 medium, 13 hard, 1 backfill.
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyEasy), 4)).
		Return(questionSet("rw2-e", 4, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyMedium), 9)).
		Return(questionSet("rw2-m", 9, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, difficulty(models.DifficultyHard), 13)).
		Return(questionSet("rw2-h", 13, rw), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(rw, nil, 1)).
		Return(questionSet("rw2-fill", 1, rw), nil)

	var newRows []*models.SessionQuestion
	repo.session.On("Save", mock.Anything, session).Return(nil)
	repo.rows.On("CreateBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		newRows = args.Get(1).([]*models.SessionQuestion)
	}).Return(nil)

	resp, err := svc.CompleteModule(context.Background(), session.ID, "m1", testUserID)

	require.NoError(t, err)
	assert.Equal(t, engine.TransitionDirect, resp.Transition)
	assert.Equal(t, 2, resp.RawScore)
	require.NotNil(t, resp.NextModule)
	assert.Equal(t, "m2", resp.NextModule.ID)

	assert.Equal(t, models.ModuleCompleted, session.Modules[0].Status)
	require.NotNil(t, session.Modules[0].TimeRemainingSeconds)
	assert.InDelta(t, ModuleTimeLimitSeconds-600, *session.Modules[0].TimeRemainingSeconds, 2)
	require.NotNil(t, session.Modules[0].RawScore)
	assert.Equal(t, 2, *session.Modules[0].RawScore)

	require.Len(t, newRows, ModuleQuestionCount)
	for _, row := range newRows {
		require.NotNil(t, row.ModuleID)
		assert.Equal(t, "m2", *row.ModuleID)
	}

	require.Len(t, pub.Events, 1)
	assert.Equal(t, events.EventModuleCompleted, pub.Events[0].Type)
}

func TestExamService_CompleteModule_BreakAtSectionBoundary(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	rw := models.SectionReadingWriting
	math := models.SectionMath
	q1 := svcQuestion("q1", rw, "a")
	q2 := svcQuestion("q2", rw, "b")
	session := examSessionFixture()
	addModuleRows(session, "m1", q1)
	addModuleRows(session, "m2", q2)

	started := time.Now().Add(-time.Hour)
	session.Status = models.SessionInProgress
	session.StartedAt = &started
	raw := 1
	session.Modules[0].Status = models.ModuleCompleted
	session.Modules[0].RawScore = &raw
	moduleStart := time.Now().Add(-10 * time.Minute)
	session.Modules[1].Status = models.ModuleInProgress
	session.Modules[1].StartedAt = &moduleStart

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.question.On("GetByIDs", mock.Anything, mock.Anything).Return([]*models.Question{q1, q2}, nil)
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, math).Return(mathCategories(), nil)

	// A first module of the next section draws the balanced mix.
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(math, difficulty(models.DifficultyEasy), 8)).
		Return(questionSet("math-e", 8, math), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(math, difficulty(models.DifficultyMedium), 9)).
		Return(questionSet("math-m", 9, math), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(math, difficulty(models.DifficultyHard), 8)).
		Return(questionSet("math-h", 8, math), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, randomFilter(math, nil, 2)).
		Return(questionSet("math-fill", 2, math), nil)

	repo.session.On("Save", mock.Anything, session).Return(nil)
	repo.rows.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.CompleteModule(context.Background(), session.ID, "m2", testUserID)

	require.NoError(t, err)
	assert.Equal(t, engine.TransitionBreak, resp.Transition)
	require.NotNil(t, resp.NextModule)
	assert.Equal(t, models.MathModule1, resp.NextModule.ModuleType)
}

func TestExamService_CompleteModule_FinalFinalizesExam(t *testing.T) {
	repo := newMockRepository()
	svc, pub := newTestExamService(repo)

	rw := models.SectionReadingWriting
	math := models.SectionMath
	questions := []*models.Question{
		svcQuestion("q1", rw, "a"),
		svcQuestion("q2", rw, "a"),
		svcQuestion("q3", math, "a"),
		svcQuestion("q4", math, "a"),
	}
	session := examSessionFixture()
	for i, q := range questions {
		addModuleRows(session, fmt.Sprintf("m%d", i+1), q)
	}

	started := time.Now().Add(-3 * time.Hour)
	session.Status = models.SessionInProgress
	session.StartedAt = &started
	raw := 1
	for i := 0; i < 3; i++ {
		session.Modules[i].Status = models.ModuleCompleted
		session.Modules[i].RawScore = &raw
	}
	moduleStart := time.Now().Add(-10 * time.Minute)
	session.Modules[3].Status = models.ModuleInProgress
	session.Modules[3].StartedAt = &moduleStart

	now := time.Now()
	for i := range session.Questions {
		session.Questions[i].Status = models.AnswerAnswered
		session.Questions[i].UserAnswer = []string{"a"}
		session.Questions[i].AnsweredAt = &now
	}

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.question.On("GetByIDs", mock.Anything, mock.Anything).Return(questions, nil)
	repo.session.On("Save", mock.Anything, session).Return(nil)

	resp, err := svc.CompleteModule(context.Background(), session.ID, "m4", testUserID)

	require.NoError(t, err)
	assert.Equal(t, engine.TransitionFinal, resp.Transition)
	assert.Nil(t, resp.NextModule)

	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.NotNil(t, session.CompletedAt)
	// Every answer was correct, so both sections scale to the ceiling.
	require.NotNil(t, session.TotalScore)
	assert.Equal(t, 1600, *session.TotalScore)
	require.NotNil(t, session.MathScore)
	assert.Equal(t, 800, *session.MathScore)

	require.Len(t, pub.Events, 2)
	assert.Equal(t, events.EventModuleCompleted, pub.Events[0].Type)
	assert.Equal(t, events.EventSessionCompleted, pub.Events[1].Type)
}

func TestExamService_CompleteModule_ExpiredClampsRemaining(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	rw := models.SectionReadingWriting
	q1 := svcQuestion("q1", rw, "a")
	q2 := svcQuestion("q2", rw, "b")
	session := examSessionFixture()
	addModuleRows(session, "m1", q1)
	// Pre-drawn second module rows keep the completion path free of
	// question generation.
	addModuleRows(session, "m2", q2)

	expired := time.Now().Add(-40 * time.Minute)
	session.Status = models.SessionInProgress
	session.StartedAt = &expired
	session.Modules[0].Status = models.ModuleInProgress
	session.Modules[0].StartedAt = &expired

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.question.On("GetByIDs", mock.Anything, mock.Anything).Return([]*models.Question{q1}, nil)
	repo.session.On("Save", mock.Anything, session).Return(nil)

	resp, err := svc.CompleteModule(context.Background(), session.ID, "m1", testUserID)

	require.NoError(t, err)
	assert.Equal(t, engine.TransitionDirect, resp.Transition)
	require.NotNil(t, session.Modules[0].TimeRemainingSeconds)
	assert.Equal(t, 0, *session.Modules[0].TimeRemainingSeconds)
}

func TestExamService_CompleteModule_AlreadyCompleted(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	session := examSessionFixture()
	session.Status = models.SessionInProgress
	session.Modules[0].Status = models.ModuleCompleted

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)

	_, err := svc.CompleteModule(context.Background(), session.ID, "m1", testUserID)
	assert.ErrorIs(t, err, ErrModuleAlreadyCompleted)
}

func TestExamService_StartModule_ExpiredModuleAutoCompletes(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	rw := models.SectionReadingWriting
	q1 := svcQuestion("q1", rw, "a")
	q2 := svcQuestion("q2", rw, "b")
	session := examSessionFixture()
	addModuleRows(session, "m1", q1)
	addModuleRows(session, "m2", q2)

	expired := time.Now().Add(-40 * time.Minute)
	session.Status = models.SessionInProgress
	session.StartedAt = &expired
	session.Modules[0].Status = models.ModuleInProgress
	session.Modules[0].StartedAt = &expired

	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)
	repo.question.On("GetByIDs", mock.Anything, mock.Anything).Return([]*models.Question{q1}, nil)
	repo.session.On("Save", mock.Anything, session).Return(nil)

	resp, err := svc.StartModule(context.Background(), session.ID, "m2", testUserID)

	require.NoError(t, err)
	assert.Equal(t, models.ModuleCompleted, session.Modules[0].Status)
	require.NotNil(t, session.Modules[0].TimeRemainingSeconds)
	assert.Equal(t, 0, *session.Modules[0].TimeRemainingSeconds)
	assert.Equal(t, models.ModuleInProgress, session.Modules[1].Status)
	require.NotNil(t, resp.ActiveModule)
	assert.Equal(t, "m2", resp.ActiveModule.ID)
}

func TestExamService_ModuleOpsRejectNonExam(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo)

	session := practiceFixture(svcQuestion("q1", models.SectionMath, "a"))
	repo.session.On("GetByIDWithDetails", mock.Anything, session.ID).Return(session, nil)

	_, err := svc.StartModule(context.Background(), session.ID, "m1", testUserID)
	require.Error(t, err)
	assert.True(t, IsBusinessRule(err))
}
