package repositories

import (
	"context"

	"github.com/satprep/session-service/internal/models"
)

// QuestionRepository serves the question bank. The bank is read-only from
// the session engine's point of view; writes exist for seeding and content
// management.
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id string) (*models.Question, error)
	GetByIDWithDetails(ctx context.Context, id string) (*models.Question, error) // Include topic, category
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id string) error

	// Query operations
	GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error)
	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)
	CountByFilters(ctx context.Context, filters QuestionFilters) (int64, error)

	// Session assembly
	GetRandomQuestions(ctx context.Context, filters RandomQuestionFilters) ([]*models.Question, error)
}

// TaxonomyRepository serves the section -> category -> topic hierarchy
// that drives question selection weights and result breakdowns.
type TaxonomyRepository interface {
	GetCategoriesBySection(ctx context.Context, section models.Section) ([]*models.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
	GetTopicByID(ctx context.Context, id string) (*models.Topic, error)
	GetTopicsByCategory(ctx context.Context, categoryID string) ([]*models.Topic, error)
}
