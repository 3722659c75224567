package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	return q.db.WithContext(ctx).Create(question).Error
}

func (q QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return q.db.WithContext(ctx).Create(questions).Error
}

func (q QuestionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).First(&question, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q QuestionPostgreSQL) GetByIDWithDetails(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Topic").
		Preload("Topic.Category").
		First(&question, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	return q.db.WithContext(ctx).Save(question).Error
}

func (q QuestionPostgreSQL) Delete(ctx context.Context, id string) error {
	return q.db.WithContext(ctx).Delete(&models.Question{}, "id = ?", id).Error
}

func (q QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error) {
	var questions []*models.Question
	if len(ids) == 0 {
		return questions, nil
	}
	if err := q.db.WithContext(ctx).
		Preload("Topic").
		Preload("Topic.Category").
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	var questions []*models.Question
	var total int64

	// apply filter first
	query := q.db.WithContext(ctx).Model(&models.Question{})
	query = q.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = q.applyPaginationAndSort(query, filters)

	if err := query.Preload("Topic").Preload("Topic.Category").Find(&questions).Error; err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

func (q QuestionPostgreSQL) CountByFilters(ctx context.Context, filters repositories.QuestionFilters) (int64, error) {
	var total int64
	query := q.db.WithContext(ctx).Model(&models.Question{})
	query = q.applyFilters(query, filters)
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (q QuestionPostgreSQL) GetRandomQuestions(ctx context.Context, filters repositories.RandomQuestionFilters) ([]*models.Question, error) {
	var questions []*models.Question

	query := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Joins("JOIN topics ON topics.id = questions.topic_id").
		Joins("JOIN categories ON categories.id = topics.category_id").
		Where("questions.is_active = ?", true)

	if filters.Section != nil {
		query = query.Where("categories.section = ?", *filters.Section)
	}
	if filters.CategoryID != nil {
		query = query.Where("topics.category_id = ?", *filters.CategoryID)
	}
	if filters.TopicID != nil {
		query = query.Where("questions.topic_id = ?", *filters.TopicID)
	}
	if filters.Difficulty != nil {
		query = query.Where("questions.difficulty = ?", *filters.Difficulty)
	}
	if len(filters.ExcludeIDs) > 0 {
		query = query.Where("questions.id NOT IN ?", filters.ExcludeIDs)
	}

	if err := query.
		Preload("Topic").
		Preload("Topic.Category").
		Order("RANDOM()").
		Limit(filters.Count).
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q QuestionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	if filters.Type != nil {
		query = query.Where("questions.type = ?", *filters.Type)
	}
	if filters.Difficulty != nil {
		query = query.Where("questions.difficulty = ?", *filters.Difficulty)
	}
	if filters.TopicID != nil {
		query = query.Where("questions.topic_id = ?", *filters.TopicID)
	}
	if filters.CategoryID != nil || filters.Section != nil {
		query = query.Joins("JOIN topics ON topics.id = questions.topic_id")
		if filters.CategoryID != nil {
			query = query.Where("topics.category_id = ?", *filters.CategoryID)
		}
		if filters.Section != nil {
			query = query.
				Joins("JOIN categories ON categories.id = topics.category_id").
				Where("categories.section = ?", *filters.Section)
		}
	}
	if filters.ActiveOnly {
		query = query.Where("questions.is_active = ?", true)
	}
	return query
}

func (q QuestionPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order("questions." + sortBy + " " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

type TaxonomyPostgreSQL struct {
	db *gorm.DB
}

func NewTaxonomyPostgreSQL(db *gorm.DB) repositories.TaxonomyRepository {
	return &TaxonomyPostgreSQL{db: db}
}

func (t TaxonomyPostgreSQL) GetCategoriesBySection(ctx context.Context, section models.Section) ([]*models.Category, error) {
	var categories []*models.Category
	if err := t.db.WithContext(ctx).
		Where("section = ?", section).
		Order("name asc").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (t TaxonomyPostgreSQL) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := t.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (t TaxonomyPostgreSQL) GetTopicByID(ctx context.Context, id string) (*models.Topic, error) {
	var topic models.Topic
	if err := t.db.WithContext(ctx).
		Preload("Category").
		First(&topic, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (t TaxonomyPostgreSQL) GetTopicsByCategory(ctx context.Context, categoryID string) ([]*models.Topic, error) {
	var topics []*models.Topic
	if err := t.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name asc").
		Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}
