package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id string) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByIDWithDetails(ctx context.Context, id string) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) Update(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Question), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuestionRepository) CountByFilters(ctx context.Context, filters repositories.QuestionFilters) (int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuestionRepository) GetRandomQuestions(ctx context.Context, filters repositories.RandomQuestionFilters) ([]*models.Question, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Question), args.Error(1)
}

// MockTaxonomyRepository is a mock implementation of TaxonomyRepository
type MockTaxonomyRepository struct {
	mock.Mock
}

func (m *MockTaxonomyRepository) GetCategoriesBySection(ctx context.Context, section models.Section) ([]*models.Category, error) {
	args := m.Called(ctx, section)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Category), args.Error(1)
}

func (m *MockTaxonomyRepository) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockTaxonomyRepository) GetTopicByID(ctx context.Context, id string) (*models.Topic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Topic), args.Error(1)
}

func (m *MockTaxonomyRepository) GetTopicsByCategory(ctx context.Context, categoryID string) ([]*models.Topic, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Topic), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) GetByIDWithDetails(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Save(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*models.Session), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) GetByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, int64, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*models.Session), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) GetActiveSession(ctx context.Context, userID string, kind models.SessionKind) (*models.Session, error) {
	args := m.Called(ctx, userID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) HasActiveSession(ctx context.Context, userID string, kind models.SessionKind) (bool, error) {
	args := m.Called(ctx, userID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockSessionRepository) GetExpiredSessions(ctx context.Context) ([]*models.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockSessionRepository) GetSessionsNearingDeadline(ctx context.Context, within time.Duration) ([]*models.Session, error) {
	args := m.Called(ctx, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockSessionRepository) MarkWarned(ctx context.Context, id string, warnedAt time.Time) error {
	args := m.Called(ctx, id, warnedAt)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateScores(ctx context.Context, id string, total, math, rw int) error {
	args := m.Called(ctx, id, total, math, rw)
	return args.Error(0)
}

// MockSessionQuestionRepository is a mock implementation of SessionQuestionRepository
type MockSessionQuestionRepository struct {
	mock.Mock
}

func (m *MockSessionQuestionRepository) CreateBatch(ctx context.Context, rows []*models.SessionQuestion) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockSessionQuestionRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.SessionQuestion, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SessionQuestion), args.Error(1)
}

func (m *MockSessionQuestionRepository) GetByModule(ctx context.Context, moduleID string) ([]*models.SessionQuestion, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SessionQuestion), args.Error(1)
}

func (m *MockSessionQuestionRepository) GetBySessionAndQuestion(ctx context.Context, sessionID, questionID string) (*models.SessionQuestion, error) {
	args := m.Called(ctx, sessionID, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionQuestion), args.Error(1)
}

func (m *MockSessionQuestionRepository) UpsertAnswer(ctx context.Context, row *models.SessionQuestion) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockSessionQuestionRepository) UpdateBatch(ctx context.Context, rows []*models.SessionQuestion) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockSessionQuestionRepository) MarkCorrectness(ctx context.Context, id string, isCorrect bool) error {
	args := m.Called(ctx, id, isCorrect)
	return args.Error(0)
}

// MockModuleRepository is a mock implementation of ModuleRepository
type MockModuleRepository struct {
	mock.Mock
}

func (m *MockModuleRepository) CreateBatch(ctx context.Context, modules []*models.ExamModule) error {
	args := m.Called(ctx, modules)
	return args.Error(0)
}

func (m *MockModuleRepository) GetByID(ctx context.Context, id string) (*models.ExamModule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamModule), args.Error(1)
}

func (m *MockModuleRepository) GetBySession(ctx context.Context, sessionID string) ([]*models.ExamModule, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExamModule), args.Error(1)
}

func (m *MockModuleRepository) Update(ctx context.Context, module *models.ExamModule) error {
	args := m.Called(ctx, module)
	return args.Error(0)
}

func (m *MockModuleRepository) UpdateTimeRemaining(ctx context.Context, id string, seconds int) error {
	args := m.Called(ctx, id, seconds)
	return args.Error(0)
}

// mockRepository bundles the mocks behind the Repository manager.
// Transaction runs the callback against the same mocks, so expectations
// set on them cover transactional calls too.
type mockRepository struct {
	question *MockQuestionRepository
	taxonomy *MockTaxonomyRepository
	session  *MockSessionRepository
	rows     *MockSessionQuestionRepository
	modules  *MockModuleRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		question: new(MockQuestionRepository),
		taxonomy: new(MockTaxonomyRepository),
		session:  new(MockSessionRepository),
		rows:     new(MockSessionQuestionRepository),
		modules:  new(MockModuleRepository),
	}
}

func (m *mockRepository) Question() repositories.QuestionRepository { return m.question }

func (m *mockRepository) Taxonomy() repositories.TaxonomyRepository { return m.taxonomy }

func (m *mockRepository) Session() repositories.SessionRepository { return m.session }

func (m *mockRepository) SessionQuestion() repositories.SessionQuestionRepository { return m.rows }

func (m *mockRepository) Module() repositories.ModuleRepository { return m.modules }

func (m *mockRepository) Transaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	return fn(m)
}
