package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

func newTestPicker(repo repositories.Repository) *questionPicker {
	return newQuestionPicker(repo, rand.New(rand.NewSource(1)))
}

// easyOnly makes every category share land on a single difficulty call,
// so the per-category counts are exact.
var easyOnly = DifficultyDistribution{models.DifficultyEasy: 1.0}

func categoryFilter(categoryID string, count int) interface{} {
	return mock.MatchedBy(func(f repositories.RandomQuestionFilters) bool {
		return f.CategoryID != nil && *f.CategoryID == categoryID && f.Count == count
	})
}

func TestQuestionPicker_CategoryWeightsSplitTheDraw(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	math := models.SectionMath
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, math).Return([]*models.Category{
		{ID: "cat-algebra", Name: "Algebra", Section: math, WeightInSection: 60},
		{ID: "cat-geometry", Name: "Geometry", Section: math, WeightInSection: 40},
	}, nil)

	repo.question.On("GetRandomQuestions", mock.Anything, categoryFilter("cat-algebra", 6)).
		Return(questionSet("alg", 6, math), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, categoryFilter("cat-geometry", 4)).
		Return(questionSet("geo", 4, math), nil)

	picked, err := picker.PickSection(context.Background(), math, 10, easyOnly, nil)

	require.NoError(t, err)
	assert.Len(t, picked, 10)
	repo.question.AssertNumberOfCalls(t, "GetRandomQuestions", 2)
}

func TestQuestionPicker_BackfillTopsUpSparseCategories(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	math := models.SectionMath
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, math).Return([]*models.Category{
		{ID: "cat-algebra", Name: "Algebra", Section: math, WeightInSection: 100},
	}, nil)

	// The category can only supply half of its share.
	repo.question.On("GetRandomQuestions", mock.Anything, categoryFilter("cat-algebra", 4)).
		Return(questionSet("alg", 2, math), nil)
	repo.question.On("GetRandomQuestions", mock.Anything, mock.MatchedBy(func(f repositories.RandomQuestionFilters) bool {
		return f.CategoryID == nil && f.Difficulty == nil && f.Count == 2
	})).Return(questionSet("fill", 2, math), nil)

	picked, err := picker.PickSection(context.Background(), math, 4, easyOnly, nil)

	require.NoError(t, err)
	assert.Len(t, picked, 4)
}

func TestQuestionPicker_InsufficientBank(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	math := models.SectionMath
	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, math).Return([]*models.Category{
		{ID: "cat-algebra", Name: "Algebra", Section: math, WeightInSection: 100},
	}, nil)
	repo.question.On("GetRandomQuestions", mock.Anything, mock.Anything).
		Return([]*models.Question{svcQuestion("only", math, "a")}, nil)

	_, err := picker.PickSection(context.Background(), math, 5, easyOnly, nil)
	assert.ErrorIs(t, err, ErrInsufficientBank)
}

func TestQuestionPicker_ExcludedQuestionsNeverRepeat(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	math := models.SectionMath
	used := svcQuestion("used", math, "a")
	fresh := svcQuestion("fresh", math, "b")
	extra := svcQuestion("extra", math, "c")

	repo.taxonomy.On("GetCategoriesBySection", mock.Anything, math).Return([]*models.Category{
		{ID: "cat-algebra", Name: "Algebra", Section: math, WeightInSection: 100},
	}, nil)
	// The bank echoes back an already-used question; the picker must drop
	// it and backfill.
	repo.question.On("GetRandomQuestions", mock.Anything, categoryFilter("cat-algebra", 2)).
		Return([]*models.Question{used, fresh}, nil)
	repo.question.On("GetRandomQuestions", mock.Anything, mock.MatchedBy(func(f repositories.RandomQuestionFilters) bool {
		return f.CategoryID == nil && f.Count == 1
	})).Return([]*models.Question{extra}, nil)

	picked, err := picker.PickSection(context.Background(), math, 2, easyOnly, []string{"used"})

	require.NoError(t, err)
	require.Len(t, picked, 2)
	for _, q := range picked {
		assert.NotEqual(t, "used", q.ID)
	}
}

func TestQuestionPicker_PickTopic(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	repo.question.On("GetRandomQuestions", mock.Anything, mock.MatchedBy(func(f repositories.RandomQuestionFilters) bool {
		return f.TopicID != nil && *f.TopicID == testTopicID
	})).Return(questionSet("topic", 2, models.SectionMath), nil)

	picked, err := picker.PickTopic(context.Background(), testTopicID, 2)

	require.NoError(t, err)
	assert.Len(t, picked, 2)
}

func TestQuestionPicker_PickTopic_EmptyBank(t *testing.T) {
	repo := newMockRepository()
	picker := newTestPicker(repo)

	repo.question.On("GetRandomQuestions", mock.Anything, mock.Anything).
		Return([]*models.Question{}, nil)

	_, err := picker.PickTopic(context.Background(), testTopicID, 5)
	assert.ErrorIs(t, err, ErrInsufficientBank)
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
		want ModuleTier
	}{
		{"perfect score selects hard", 1.0, TierHard},
		{"seventy percent selects hard", 0.7, TierHard},
		{"just under seventy selects medium", 0.69, TierMedium},
		{"forty percent selects medium", 0.4, TierMedium},
		{"just under forty selects easy", 0.39, TierEasy},
		{"zero selects easy", 0.0, TierEasy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TierForScore(tt.pct))
		})
	}
}
