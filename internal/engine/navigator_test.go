package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satprep/session-service/internal/models"
)

func sampleQuestions(ids ...string) []*models.Question {
	qs := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		qs = append(qs, &models.Question{ID: id, Type: models.MultipleChoice})
	}
	return qs
}

func TestNavigator_NextPrevious(t *testing.T) {
	nav := NewNavigator(sampleQuestions("q1", "q2", "q3"))

	assert.Equal(t, "q1", nav.Current().ID)
	assert.Equal(t, 0, nav.Index())
	assert.Equal(t, 3, nav.Len())

	q, err := nav.Next()
	require.NoError(t, err)
	assert.Equal(t, "q2", q.ID)

	q, err = nav.Previous()
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
}

func TestNavigator_Bounds(t *testing.T) {
	nav := NewNavigator(sampleQuestions("q1", "q2"))

	_, err := nav.Previous()
	assert.ErrorIs(t, err, ErrStartOfList)
	assert.Equal(t, 0, nav.Index())

	_, err = nav.Next()
	require.NoError(t, err)
	_, err = nav.Next()
	assert.ErrorIs(t, err, ErrEndOfList)
	assert.Equal(t, 1, nav.Index())
}

func TestNavigator_JumpTo(t *testing.T) {
	nav := NewNavigator(sampleQuestions("q1", "q2", "q3"))

	q, err := nav.JumpTo(2)
	require.NoError(t, err)
	assert.Equal(t, "q3", q.ID)

	_, err = nav.JumpTo(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = nav.JumpTo(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 2, nav.Index())
}

func TestNavigator_Empty(t *testing.T) {
	nav := NewNavigator(nil)

	assert.Nil(t, nav.Current())
	assert.Equal(t, 0, nav.Len())
	_, err := nav.Next()
	assert.ErrorIs(t, err, ErrEndOfList)
}
