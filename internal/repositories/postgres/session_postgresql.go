package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s SessionPostgreSQL) Create(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s SessionPostgreSQL) GetByIDWithDetails(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_modules.position asc")
		}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("session_questions.display_order asc")
		}).
		First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Save upserts the whole aggregate. Snapshots replay the same state, so
// every write uses ON CONFLICT DO UPDATE semantics via Save.
func (s SessionPostgreSQL) Save(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Modules", "Questions").Clauses(clause.OnConflict{UpdateAll: true}).Create(session).Error; err != nil {
			return err
		}
		for i := range session.Modules {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&session.Modules[i]).Error; err != nil {
				return err
			}
		}
		for i := range session.Questions {
			if err := tx.Omit("Question").Clauses(clause.OnConflict{UpdateAll: true}).Create(&session.Questions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s SessionPostgreSQL) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error
}

func (s SessionPostgreSQL) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	var sessions []*models.Session
	var total int64

	// apply filter first
	query := s.db.WithContext(ctx).Model(&models.Session{})
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = s.applyPaginationAndSort(query, filters)

	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (s SessionPostgreSQL) GetByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	filters.UserID = &userID
	return s.List(ctx, filters)
}

func (s SessionPostgreSQL) GetActiveSession(ctx context.Context, userID string, kind models.SessionKind) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND status = ?", userID, kind, models.SessionInProgress).
		Order("created_at desc").
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// HasActiveSession counts not-started sessions as active too: exams are
// created not_started, and an unopened exam still blocks creating another.
func (s SessionPostgreSQL) HasActiveSession(ctx context.Context, userID string, kind models.SessionKind) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND kind = ? AND status IN ?", userID, kind,
			[]models.SessionStatus{models.SessionNotStarted, models.SessionInProgress}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s SessionPostgreSQL) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// GetExpiredSessions finds in-progress single-module sessions whose
// deadline has passed, for the reaper to force-complete. Exam sessions
// carry no session-level time limit; their module deadlines are enforced
// on contact by the exam service, so they are out of scope here.
func (s SessionPostgreSQL) GetExpiredSessions(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.SessionInProgress).
		Where("time_limit_seconds IS NOT NULL").
		Where("started_at IS NOT NULL").
		Where("started_at + (time_limit_seconds || ' seconds')::interval < ?", time.Now()).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionsNearingDeadline finds in-progress countdown sessions whose
// deadline falls within the warning window and that have not been warned
// yet. Sessions already past their deadline belong to GetExpiredSessions.
func (s SessionPostgreSQL) GetSessionsNearingDeadline(ctx context.Context, within time.Duration) ([]*models.Session, error) {
	now := time.Now()
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.SessionInProgress).
		Where("time_limit_seconds IS NOT NULL").
		Where("started_at IS NOT NULL").
		Where("warned_at IS NULL").
		Where("started_at + (time_limit_seconds || ' seconds')::interval BETWEEN ? AND ?", now, now.Add(within)).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s SessionPostgreSQL) MarkWarned(ctx context.Context, id string, warnedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Update("warned_at", warnedAt).Error
}

func (s SessionPostgreSQL) UpdateScores(ctx context.Context, id string, total, math, rw int) error {
	return s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_score": total,
			"math_score":  math,
			"rw_score":    rw,
		}).Error
}

func (s SessionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (s SessionPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

type SessionQuestionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionQuestionPostgreSQL(db *gorm.DB) repositories.SessionQuestionRepository {
	return &SessionQuestionPostgreSQL{db: db}
}

func (r SessionQuestionPostgreSQL) CreateBatch(ctx context.Context, rows []*models.SessionQuestion) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Question").Create(rows).Error
}

func (r SessionQuestionPostgreSQL) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionQuestion, error) {
	var rows []*models.SessionQuestion
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("display_order asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r SessionQuestionPostgreSQL) GetByModule(ctx context.Context, moduleID string) ([]*models.SessionQuestion, error) {
	var rows []*models.SessionQuestion
	if err := r.db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("display_order asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r SessionQuestionPostgreSQL) GetBySessionAndQuestion(ctx context.Context, sessionID, questionID string) (*models.SessionQuestion, error) {
	var row models.SessionQuestion
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertAnswer is last-write-wins on the answer columns, keyed by the
// row's primary key.
func (r SessionQuestionPostgreSQL) UpsertAnswer(ctx context.Context, row *models.SessionQuestion) error {
	return r.db.WithContext(ctx).
		Omit("Question").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "user_answer", "is_marked_for_review",
				"confidence_score", "time_spent_seconds", "answered_at", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r SessionQuestionPostgreSQL) UpdateBatch(ctx context.Context, rows []*models.SessionQuestion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Omit("Question").Save(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r SessionQuestionPostgreSQL) MarkCorrectness(ctx context.Context, id string, isCorrect bool) error {
	return r.db.WithContext(ctx).
		Model(&models.SessionQuestion{}).
		Where("id = ?", id).
		Update("is_correct", isCorrect).Error
}

type ModulePostgreSQL struct {
	db *gorm.DB
}

func NewModulePostgreSQL(db *gorm.DB) repositories.ModuleRepository {
	return &ModulePostgreSQL{db: db}
}

func (m ModulePostgreSQL) CreateBatch(ctx context.Context, modules []*models.ExamModule) error {
	if len(modules) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Create(modules).Error
}

func (m ModulePostgreSQL) GetByID(ctx context.Context, id string) (*models.ExamModule, error) {
	var module models.ExamModule
	if err := m.db.WithContext(ctx).First(&module, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func (m ModulePostgreSQL) GetBySession(ctx context.Context, sessionID string) ([]*models.ExamModule, error) {
	var modules []*models.ExamModule
	if err := m.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position asc").
		Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (m ModulePostgreSQL) Update(ctx context.Context, module *models.ExamModule) error {
	return m.db.WithContext(ctx).Save(module).Error
}

func (m ModulePostgreSQL) UpdateTimeRemaining(ctx context.Context, id string, seconds int) error {
	return m.db.WithContext(ctx).
		Model(&models.ExamModule{}).
		Where("id = ?", id).
		Update("time_remaining_seconds", seconds).Error
}
