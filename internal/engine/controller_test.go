package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satprep/session-service/internal/models"
)

func practiceSession(timeLimitSeconds *int, questionIDs ...string) (*models.Session, []*models.Question) {
	session := &models.Session{
		ID:               "session-1",
		UserID:           "user-1",
		Kind:             models.KindPractice,
		Status:           models.SessionNotStarted,
		TimeLimitSeconds: timeLimitSeconds,
		Questions:        sampleRowsValues(nil, questionIDs...),
	}
	return session, sampleQuestions(questionIDs...)
}

func examSession() (*models.Session, []*models.Question) {
	session := &models.Session{
		ID:     "exam-1",
		UserID: "user-1",
		Kind:   models.KindExam,
		Status: models.SessionNotStarted,
	}
	var bank []*models.Question
	for _, m := range examModules() {
		session.Modules = append(session.Modules, *m)
		moduleID := m.ID
		ids := []string{moduleID + "-q1", moduleID + "-q2"}
		session.Questions = append(session.Questions, sampleRowsValues(&moduleID, ids...)...)
		bank = append(bank, sampleQuestions(ids...)...)
	}
	return session, bank
}

func sampleRowsValues(moduleID *string, questionIDs ...string) []models.SessionQuestion {
	rows := make([]models.SessionQuestion, 0, len(questionIDs))
	for i, id := range questionIDs {
		rows = append(rows, models.SessionQuestion{
			ID:           "sq-" + id,
			SessionID:    "session-1",
			ModuleID:     moduleID,
			QuestionID:   id,
			DisplayOrder: i,
			Status:       models.AnswerNotStarted,
		})
	}
	return rows
}

func newController(t *testing.T, session *models.Session, bank []*models.Question, clock Clock, store PersistenceAdapter) *Controller {
	t.Helper()
	c, err := New(Config{
		Session:   session,
		Questions: bank,
		Store:     store,
		Clock:     clock,
	})
	require.NoError(t, err)
	return c
}

func TestController_SubmitBeforeMove(t *testing.T) {
	ctx := context.Background()
	session, bank := practiceSession(nil, "q1", "q2", "q3")
	c := newController(t, session, bank, newClock(), nil)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	assert.Equal(t, models.AnswerInProgress, c.AnswerState("q1").Status)

	q, err := c.GoNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q2", q.ID)
	assert.Equal(t, 1, c.Index())

	// Moving away committed the draft.
	assert.Equal(t, models.AnswerAnswered, c.AnswerState("q1").Status)
	assert.Equal(t, 1, c.Session().CurrentIndex)
}

func TestController_NavigationPreservesUncommittedAnswer(t *testing.T) {
	ctx := context.Background()
	session, bank := practiceSession(nil, "q1", "q2")
	c := newController(t, session, bank, newClock(), nil)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	_, err := c.GoNext(ctx)
	require.NoError(t, err)
	_, err = c.GoPrevious(ctx)
	require.NoError(t, err)

	state := c.AnswerState("q1")
	assert.Equal(t, []string{"A"}, []string(state.UserAnswer))
	assert.Equal(t, models.AnswerAnswered, state.Status)
}

func TestController_CompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	session, bank := practiceSession(nil, "q1", "q2")
	c := newController(t, session, bank, clock, nil)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	require.NoError(t, c.Complete(ctx))
	assert.Equal(t, models.SessionCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)
	completedAt := *session.CompletedAt

	// A draft answer is committed on completion.
	assert.Equal(t, models.AnswerAnswered, c.AnswerState("q1").Status)

	clock.Advance(time.Minute)
	require.NoError(t, c.Complete(ctx))
	assert.Equal(t, completedAt, *session.CompletedAt)

	// A completed session rejects further mutation.
	assert.ErrorIs(t, c.Answer(ctx, "q2", []string{"B"}), ErrSessionCompleted)
	_, err := c.GoNext(ctx)
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestController_TimerExpiryForcesCompletion(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	limit := 60
	session, bank := practiceSession(&limit, "q1", "q2")
	c := newController(t, session, bank, clock, nil)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	clock.Advance(time.Minute)

	// Expiry completed the session and captured the in-progress answer.
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, models.AnswerAnswered, c.AnswerState("q1").Status)
	assert.Equal(t, models.AnswerNotStarted, c.AnswerState("q2").Status)
}

func TestController_ManualCompletionWinsOverExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	limit := 60
	session, bank := practiceSession(&limit, "q1")
	c := newController(t, session, bank, clock, nil)
	require.NoError(t, c.Start(ctx))

	clock.Advance(50 * time.Second)
	require.NoError(t, c.Complete(ctx))
	completedAt := *session.CompletedAt

	// The cancelled countdown never fires.
	clock.Advance(time.Hour)
	assert.Equal(t, completedAt, *session.CompletedAt)
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestController_ResumeFromSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore()
	session, bank := practiceSession(nil, "q1", "q2", "q3")
	c := newController(t, session, bank, clock, store)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	_, err := c.GoNext(ctx)
	require.NoError(t, err)

	// A fresh controller over the snapshot resumes at the first untouched
	// question with the committed answer intact.
	resumed, err := Load(ctx, store, session.ID, bank, clock, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Index())
	assert.Equal(t, "q2", resumed.Current().ID)

	state := resumed.AnswerState("q1")
	require.NotNil(t, state)
	assert.Equal(t, models.AnswerAnswered, state.Status)
	assert.Equal(t, []string{"A"}, []string(state.UserAnswer))

	// Mutations after the snapshot are isolated from the restored copy.
	require.NoError(t, resumed.Answer(ctx, "q2", []string{"B"}))
	assert.Nil(t, c.AnswerState("q2").UserAnswer)
}

func TestController_LoadMissingSession(t *testing.T) {
	_, err := Load(context.Background(), NewMemoryStore(), "nope", nil, newClock(), nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestController_ExamModuleFlow(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	session, bank := examSession()
	c := newController(t, session, bank, clock, nil)

	// Exam sessions start per module.
	assert.ErrorIs(t, c.Start(ctx), ErrNoActiveModule)

	module, err := c.StartModule(ctx, "rw_module_1")
	require.NoError(t, err)
	assert.Equal(t, models.ModuleInProgress, module.Status)
	assert.Equal(t, "rw_module_1-q1", c.Current().ID)
	assert.Equal(t, 32*time.Minute, c.TimeRemaining())

	require.NoError(t, c.Answer(ctx, "rw_module_1-q1", []string{"A"}))
	clock.Advance(5 * time.Minute)

	transition, next, err := c.CompleteModule(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionDirect, transition)
	require.NotNil(t, next)
	assert.Equal(t, models.RWModule2, next.ModuleType)

	// Remaining time and the draft answer were captured at completion.
	first := &session.Modules[0]
	require.NotNil(t, first.TimeRemainingSeconds)
	assert.Equal(t, 27*60, *first.TimeRemainingSeconds)
	assert.Equal(t, models.AnswerAnswered, c.AnswerState("rw_module_1-q1").Status)

	// rw_module_2 -> math_module_1 crosses the section boundary.
	_, err = c.StartModule(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, "rw_module_2-q1", c.Current().ID)
	transition, next, err = c.CompleteModule(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionBreak, transition)
	assert.Equal(t, models.MathModule1, next.ModuleType)

	_, err = c.StartModule(ctx, next.ID)
	require.NoError(t, err)
	transition, next, err = c.CompleteModule(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionDirect, transition)

	// Completing the last module finalizes the session.
	_, err = c.StartModule(ctx, next.ID)
	require.NoError(t, err)
	transition, next, err = c.CompleteModule(ctx)
	require.NoError(t, err)
	assert.Equal(t, TransitionFinal, transition)
	assert.Nil(t, next)
	assert.Equal(t, models.SessionCompleted, session.Status)

	_, err = c.StartModule(ctx, "math_module_2")
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestController_ModuleExpiryAutoCompletes(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	session, bank := examSession()
	c := newController(t, session, bank, clock, nil)

	_, err := c.StartModule(ctx, "rw_module_1")
	require.NoError(t, err)
	require.NoError(t, c.Answer(ctx, "rw_module_1-q1", []string{"A"}))

	clock.Advance(32 * time.Minute)

	first := &session.Modules[0]
	assert.Equal(t, models.ModuleCompleted, first.Status)
	require.NotNil(t, first.TimeRemainingSeconds)
	assert.Equal(t, 0, *first.TimeRemainingSeconds)
	assert.Equal(t, models.AnswerAnswered, c.AnswerState("rw_module_1-q1").Status)

	// The session itself stays open for the next module.
	assert.Equal(t, models.SessionInProgress, session.Status)
	assert.Equal(t, models.ModuleNotStarted, session.Modules[1].Status)
}

func TestController_ModuleResumeKeepsRemainingTime(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore()
	session, bank := examSession()
	c := newController(t, session, bank, clock, store)

	_, err := c.StartModule(ctx, "rw_module_1")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	transition, _, err := c.CompleteModule(ctx)
	require.NoError(t, err)
	require.Equal(t, TransitionDirect, transition)

	// Restore and reopen the next module; the first stays completed and
	// navigation scopes to the new module's questions.
	resumed, err := Load(ctx, store, session.ID, bank, clock, nil)
	require.NoError(t, err)
	module, err := resumed.StartModule(ctx, "rw_module_2")
	require.NoError(t, err)
	assert.Equal(t, models.RWModule2, module.ModuleType)
	assert.Equal(t, "rw_module_2-q1", resumed.Current().ID)
	assert.Equal(t, 32*time.Minute, resumed.TimeRemaining())
}

type failingStore struct{ calls int }

func (s *failingStore) Snapshot(context.Context, *models.Session) error {
	s.calls++
	return errors.New("backend down")
}

func (s *failingStore) Restore(context.Context, string) (*models.Session, error) {
	return nil, ErrSessionNotFound
}

func TestController_SnapshotFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	session, bank := practiceSession(nil, "q1", "q2")
	c := newController(t, session, bank, newClock(), store)

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))
	_, err := c.GoNext(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx))

	assert.Greater(t, store.calls, 0)
	assert.Equal(t, models.SessionCompleted, session.Status)
}

func TestController_Abandon(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session, bank := practiceSession(nil, "q1")
	c := newController(t, session, bank, newClock(), store)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Answer(ctx, "q1", []string{"A"}))

	require.NoError(t, c.Abandon(ctx))
	assert.Equal(t, models.SessionAbandoned, session.Status)

	// Progress survives the abandon.
	saved, err := store.Restore(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, []string(saved.Questions[0].UserAnswer))
}
