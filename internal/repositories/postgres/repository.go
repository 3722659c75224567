package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/satprep/session-service/internal/repositories"
)

// Repository is the GORM-backed repository manager. Transaction hands the
// callback a manager bound to the transaction's *gorm.DB, so services
// compose multi-aggregate writes without touching GORM directly.
type Repository struct {
	db              *gorm.DB
	question        repositories.QuestionRepository
	taxonomy        repositories.TaxonomyRepository
	session         repositories.SessionRepository
	sessionQuestion repositories.SessionQuestionRepository
	module          repositories.ModuleRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:              db,
		question:        NewQuestionPostgreSQL(db),
		taxonomy:        NewTaxonomyPostgreSQL(db),
		session:         NewSessionPostgreSQL(db),
		sessionQuestion: NewSessionQuestionPostgreSQL(db),
		module:          NewModulePostgreSQL(db),
	}
}

func (r *Repository) Question() repositories.QuestionRepository { return r.question }

func (r *Repository) Taxonomy() repositories.TaxonomyRepository { return r.taxonomy }

func (r *Repository) Session() repositories.SessionRepository { return r.session }

func (r *Repository) SessionQuestion() repositories.SessionQuestionRepository {
	return r.sessionQuestion
}

func (r *Repository) Module() repositories.ModuleRepository { return r.module }

func (r *Repository) Transaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
