package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satprep/session-service/internal/models"
)

func sampleRows(questionIDs ...string) []*models.SessionQuestion {
	rows := make([]*models.SessionQuestion, 0, len(questionIDs))
	for i, id := range questionIDs {
		rows = append(rows, &models.SessionQuestion{
			ID:           "sq-" + id,
			SessionID:    "session-1",
			QuestionID:   id,
			DisplayOrder: i,
			Status:       models.AnswerNotStarted,
		})
	}
	return rows
}

func TestAnswerStore_SetAnswerMarksInProgress(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1", "q2"), newClock())

	state, err := store.SetAnswer("q1", []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, models.AnswerInProgress, state.Status)
	assert.Equal(t, []string{"A"}, []string(state.UserAnswer))
	assert.Nil(t, state.AnsweredAt)

	// Re-answering overwrites, not appends.
	state, err = store.SetAnswer("q1", []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, []string(state.UserAnswer))
}

func TestAnswerStore_SetAnswerRejectsBlank(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1"), newClock())

	_, err := store.SetAnswer("q1", nil)
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = store.SetAnswer("q1", []string{"   "})
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	// Prior state untouched after a rejected write.
	_, err = store.SetAnswer("q1", []string{"A"})
	require.NoError(t, err)
	_, err = store.SetAnswer("q1", []string{""})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	assert.Equal(t, []string{"A"}, []string(store.Get("q1").UserAnswer))
}

func TestAnswerStore_SetAnswerUnknownQuestion(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1"), newClock())

	_, err := store.SetAnswer("missing", []string{"A"})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestAnswerStore_CommitPromotesToAnswered(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1", "q2"), newClock())

	_, err := store.SetAnswer("q1", []string{"A"})
	require.NoError(t, err)

	state, err := store.Commit("q1")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerAnswered, state.Status)
	require.NotNil(t, state.AnsweredAt)

	// Committing an untouched question leaves it not_started.
	state, err = store.Commit("q2")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerNotStarted, state.Status)
	assert.False(t, store.IsComplete("q2"))

	assert.Equal(t, 1, store.AnsweredCount())
}

func TestAnswerStore_CommitAll(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1", "q2", "q3"), newClock())

	_, err := store.SetAnswer("q1", []string{"A"})
	require.NoError(t, err)
	_, err = store.SetAnswer("q3", []string{"42"})
	require.NoError(t, err)

	store.CommitAll()
	assert.True(t, store.IsComplete("q1"))
	assert.False(t, store.IsComplete("q2"))
	assert.True(t, store.IsComplete("q3"))
}

func TestAnswerStore_ToggleMarkForReview(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1"), newClock())

	// Independent of answer status: works on an unanswered question.
	marked, err := store.ToggleMarkForReview("q1")
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Equal(t, models.AnswerNotStarted, store.Get("q1").Status)

	marked, err = store.ToggleMarkForReview("q1")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestAnswerStore_FirstUnanswered(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1", "q2", "q3"), newClock())
	assert.Equal(t, 0, store.FirstUnanswered())

	_, err := store.SetAnswer("q1", []string{"A"})
	require.NoError(t, err)
	store.CommitAll()
	assert.Equal(t, 1, store.FirstUnanswered())

	_, err = store.SetAnswer("q2", []string{"B"})
	require.NoError(t, err)
	_, err = store.SetAnswer("q3", []string{"C"})
	require.NoError(t, err)
	store.CommitAll()

	// Everything touched: fall back to the first question.
	assert.Equal(t, 0, store.FirstUnanswered())
}

func TestAnswerStore_AddTimeSpent(t *testing.T) {
	store := NewAnswerStore(sampleRows("q1"), newClock())

	require.NoError(t, store.AddTimeSpent("q1", 30))
	require.NoError(t, store.AddTimeSpent("q1", 15))
	require.NotNil(t, store.Get("q1").TimeSpentSeconds)
	assert.Equal(t, 45, *store.Get("q1").TimeSpentSeconds)
}
