package services

import (
	"context"
	"log/slog"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

// QuestionService is the read surface over the question bank: lookups,
// filtered listing, and the taxonomy clients browse before starting
// practice. The bank itself is immutable content loaded out of band.
type QuestionService interface {
	GetByID(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error)

	Categories(ctx context.Context, section models.Section) ([]*models.Category, error)
	Topics(ctx context.Context, categoryID string) ([]*models.Topic, error)
}

type questionService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger) QuestionService {
	return &questionService{repo: repo, logger: logger}
}

func (s *questionService) GetByID(ctx context.Context, id string) (*models.Question, error) {
	question, err := s.repo.Question().GetByIDWithDetails(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		s.logger.Error("failed to load question", "question_id", id, "error", err)
		return nil, ErrInternalError
	}
	return question, nil
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	questions, total, err := s.repo.Question().List(ctx, filters)
	if err != nil {
		s.logger.Error("failed to list questions", "error", err)
		return nil, 0, ErrInternalError
	}
	return questions, total, nil
}

func (s *questionService) Categories(ctx context.Context, section models.Section) ([]*models.Category, error) {
	categories, err := s.repo.Taxonomy().GetCategoriesBySection(ctx, section)
	if err != nil {
		s.logger.Error("failed to list categories", "section", section, "error", err)
		return nil, ErrInternalError
	}
	return categories, nil
}

func (s *questionService) Topics(ctx context.Context, categoryID string) ([]*models.Topic, error) {
	if _, err := s.repo.Taxonomy().GetCategoryByID(ctx, categoryID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, ErrInternalError
	}
	topics, err := s.repo.Taxonomy().GetTopicsByCategory(ctx, categoryID)
	if err != nil {
		s.logger.Error("failed to list topics", "category_id", categoryID, "error", err)
		return nil, ErrInternalError
	}
	return topics, nil
}
