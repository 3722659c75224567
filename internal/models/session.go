package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionKind string

const (
	KindDiagnostic SessionKind = "diagnostic"
	KindPractice   SessionKind = "practice"
	KindExam       SessionKind = "exam"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

type AnswerStatus string

const (
	AnswerNotStarted AnswerStatus = "not_started"
	AnswerInProgress AnswerStatus = "in_progress"
	AnswerAnswered   AnswerStatus = "answered"
)

// Session is one assessment attempt: a diagnostic test, a quick practice
// run, or a full mock exam. Exam sessions additionally own an ordered list
// of timed modules; single-module sessions carry their question rows
// directly with a nil module reference.
type Session struct {
	ID     string        `json:"id" gorm:"primaryKey;size:36"`
	UserID string        `json:"user_id" gorm:"not null;size:255;index"`
	Kind   SessionKind   `json:"kind" gorm:"not null;index" validate:"required,session_kind"`
	Status SessionStatus `json:"status" gorm:"default:not_started;index"`

	// Navigator position, persisted so a reload resumes where the user left off.
	CurrentIndex int `json:"current_index" gorm:"default:0"`

	// Optional countdown for single-module sessions. Exams carry time limits
	// per module instead; practice runs with no limit use a stopwatch.
	TimeLimitSeconds *int `json:"time_limit_seconds,omitempty"`

	// Practice sessions are scoped to one topic.
	TopicID *string `json:"topic_id,omitempty" gorm:"size:36;index"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Set once when the time-warning event fires, so the sweep never
	// warns the same session twice.
	WarnedAt *time.Time `json:"-"`

	// Scaled scores, set once when an exam session is finalized.
	TotalScore *int `json:"total_score,omitempty"`
	MathScore  *int `json:"math_score,omitempty"`
	RWScore    *int `json:"rw_score,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Modules   []ExamModule      `json:"modules,omitempty" gorm:"foreignKey:SessionID"`
	Questions []SessionQuestion `json:"questions,omitempty" gorm:"foreignKey:SessionID"`
}

// SessionQuestion is the per-question answer state of a session: the
// user's answer, its lifecycle status, and the mark-for-review flag. One
// row per question per session, created when the question set is drawn and
// kept until the session is deleted.
type SessionQuestion struct {
	ID         string  `json:"id" gorm:"primaryKey;size:36"`
	SessionID  string  `json:"session_id" gorm:"not null;size:36;index:idx_session_order"`
	ModuleID   *string `json:"module_id,omitempty" gorm:"size:36;index"`
	QuestionID string  `json:"question_id" gorm:"not null;size:36;index"`

	DisplayOrder int `json:"display_order" gorm:"not null;index:idx_session_order"`

	Status            AnswerStatus                `json:"status" gorm:"default:not_started"`
	UserAnswer        datatypes.JSONSlice[string] `json:"user_answer" gorm:"type:jsonb"`
	IsMarkedForReview bool                        `json:"is_marked_for_review" gorm:"default:false"`
	IsCorrect         *bool                       `json:"is_correct,omitempty"`

	ConfidenceScore  *int `json:"confidence_score,omitempty" validate:"omitempty,min=1,max=5"`
	TimeSpentSeconds *int `json:"time_spent_seconds,omitempty"`

	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Question Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

// Answered reports whether the question holds a committed answer. The
// status invariant (answered implies a non-empty user answer) is enforced
// by the engine's answer store, not here.
func (sq *SessionQuestion) Answered() bool {
	return sq.Status == AnswerAnswered
}

func (Session) TableName() string {
	return "sessions"
}

func (SessionQuestion) TableName() string {
	return "session_questions"
}
