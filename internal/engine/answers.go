package engine

import (
	"strings"

	"github.com/satprep/session-service/internal/models"
)

// AnswerStore is the single source of mutable per-question truth for a
// running session. Every mutation is applied synchronously so the next
// snapshot always captures the latest state, including a forced capture on
// timer expiry. All other components read from it; only the session
// controller's typed operations write to it.
type AnswerStore struct {
	states map[string]*models.SessionQuestion
	order  []string // question ids in display order
	clock  Clock
}

func NewAnswerStore(rows []*models.SessionQuestion, clock Clock) *AnswerStore {
	s := &AnswerStore{
		states: make(map[string]*models.SessionQuestion, len(rows)),
		order:  make([]string, 0, len(rows)),
		clock:  clock,
	}
	for _, row := range rows {
		s.states[row.QuestionID] = row
		s.order = append(s.order, row.QuestionID)
	}
	return s
}

// Get returns the answer state for a question, or nil when the question is
// not part of the session.
func (s *AnswerStore) Get(questionID string) *models.SessionQuestion {
	return s.states[questionID]
}

// SetAnswer captures the user's current input for a question. The state
// moves to in_progress; committing to answered happens on navigation or
// completion (see Commit). An empty or blank value fails with
// ErrInvalidAnswer and leaves the prior state untouched.
func (s *AnswerStore) SetAnswer(questionID string, value []string) (*models.SessionQuestion, error) {
	state, ok := s.states[questionID]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	if !validAnswer(value) {
		return nil, ErrInvalidAnswer
	}

	state.UserAnswer = append([]string(nil), value...)
	if state.Status != models.AnswerAnswered {
		state.Status = models.AnswerInProgress
	}
	state.UpdatedAt = s.clock.Now()
	return state, nil
}

// Commit promotes an in-progress answer to answered. Questions with no
// captured input stay as they are; the answered status always implies a
// non-empty user answer.
func (s *AnswerStore) Commit(questionID string) (*models.SessionQuestion, error) {
	state, ok := s.states[questionID]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	if state.Status == models.AnswerInProgress && len(state.UserAnswer) > 0 {
		state.Status = models.AnswerAnswered
		now := s.clock.Now()
		state.AnsweredAt = &now
		state.UpdatedAt = now
	}
	return state, nil
}

// CommitAll commits every in-progress answer. Used on forced completion so
// the latest keystroke state already captured here is never lost.
func (s *AnswerStore) CommitAll() {
	for _, id := range s.order {
		s.Commit(id) //nolint:errcheck // ids come from the order slice
	}
}

// ToggleMarkForReview flips the review flag. The flag is independent of
// answer status and may be set on unanswered questions.
func (s *AnswerStore) ToggleMarkForReview(questionID string) (bool, error) {
	state, ok := s.states[questionID]
	if !ok {
		return false, ErrQuestionNotFound
	}
	state.IsMarkedForReview = !state.IsMarkedForReview
	state.UpdatedAt = s.clock.Now()
	return state.IsMarkedForReview, nil
}

// SetConfidence records the optional 1-5 self-assessment for a question.
func (s *AnswerStore) SetConfidence(questionID string, score int) error {
	state, ok := s.states[questionID]
	if !ok {
		return ErrQuestionNotFound
	}
	state.ConfidenceScore = &score
	state.UpdatedAt = s.clock.Now()
	return nil
}

// AddTimeSpent accumulates seconds spent on a question.
func (s *AnswerStore) AddTimeSpent(questionID string, seconds int) error {
	state, ok := s.states[questionID]
	if !ok {
		return ErrQuestionNotFound
	}
	total := seconds
	if state.TimeSpentSeconds != nil {
		total += *state.TimeSpentSeconds
	}
	state.TimeSpentSeconds = &total
	state.UpdatedAt = s.clock.Now()
	return nil
}

// IsComplete reports whether the question holds a committed answer.
func (s *AnswerStore) IsComplete(questionID string) bool {
	state, ok := s.states[questionID]
	return ok && state.Status == models.AnswerAnswered
}

// AnsweredCount returns how many questions have committed answers.
func (s *AnswerStore) AnsweredCount() int {
	n := 0
	for _, state := range s.states {
		if state.Status == models.AnswerAnswered {
			n++
		}
	}
	return n
}

// FirstUnanswered returns the display index of the first question that has
// not been started, or 0 when every question has been touched. Used to
// place the navigator on restore.
func (s *AnswerStore) FirstUnanswered() int {
	for i, id := range s.order {
		if s.states[id].Status == models.AnswerNotStarted {
			return i
		}
	}
	return 0
}

// Rows returns the answer states in display order. The returned slice is
// fresh but the states are the live ones: mutations made through the store
// are visible to an immediately following snapshot.
func (s *AnswerStore) Rows() []*models.SessionQuestion {
	rows := make([]*models.SessionQuestion, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, s.states[id])
	}
	return rows
}

func validAnswer(value []string) bool {
	if len(value) == 0 {
		return false
	}
	for _, v := range value {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
