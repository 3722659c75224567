package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/satprep/session-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type QuestionFilters struct {
	Type       *models.QuestionType    `json:"type"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	Section    *models.Section         `json:"section"`
	TopicID    *string                 `json:"topic_id"`
	CategoryID *string                 `json:"category_id"`
	ActiveOnly bool                    `json:"active_only"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`    // "created_at", "difficulty"
	SortOrder  string                  `json:"sort_order"` // "asc", "desc"
}

type RandomQuestionFilters struct {
	Section    *models.Section         `json:"section"`
	CategoryID *string                 `json:"category_id"`
	TopicID    *string                 `json:"topic_id"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	ExcludeIDs []string                `json:"exclude_ids"`
	Count      int                     `json:"count"`
}

type SessionFilters struct {
	UserID    *string               `json:"user_id"`
	Kind      *models.SessionKind   `json:"kind"`
	Status    *models.SessionStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "created_at", "completed_at"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY MANAGER =====

// Repository bundles the per-aggregate repositories with transaction
// support. Transaction runs fn against a Repository bound to a single
// database transaction; a returned error rolls everything back.
type Repository interface {
	Question() QuestionRepository
	Taxonomy() TaxonomyRepository
	Session() SessionRepository
	SessionQuestion() SessionQuestionRepository
	Module() ModuleRepository

	Transaction(ctx context.Context, fn func(repo Repository) error) error
}

// IsNotFoundError reports whether err is the backend's missing-record
// error, so services can map it onto their own sentinels.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
