package models

import (
	"strings"
	"time"
)

type ModuleType string

const (
	RWModule1   ModuleType = "rw_module_1"
	RWModule2   ModuleType = "rw_module_2"
	MathModule1 ModuleType = "math_module_1"
	MathModule2 ModuleType = "math_module_2"
)

// Section returns the exam section a module type belongs to. The break
// rule between modules is derived from this, not from hard-coded module
// type pairs, so module layouts other than the fixed four-module SAT
// remain expressible.
func (t ModuleType) Section() Section {
	if strings.HasPrefix(string(t), "math") {
		return SectionMath
	}
	return SectionReadingWriting
}

type ModuleStatus string

const (
	ModuleNotStarted ModuleStatus = "not_started"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
)

// ExamModule is one timed sub-block of a multi-module session. Exactly one
// module of a session is in progress at a time; questions are shared
// read-only references into the question bank via SessionQuestion rows
// keyed by ModuleID.
type ExamModule struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	SessionID    string     `json:"session_id" gorm:"not null;size:36;index"`
	ModuleType   ModuleType `json:"module_type" gorm:"not null" validate:"required,module_type"`
	ModuleNumber int        `json:"module_number" gorm:"not null"` // 1 or 2 within the section
	Position     int        `json:"position" gorm:"not null"`      // 1-based order within the session

	TimeLimitSeconds     int  `json:"time_limit_seconds" gorm:"not null"`
	TimeRemainingSeconds *int `json:"time_remaining_seconds,omitempty"`

	Status      ModuleStatus `json:"status" gorm:"default:not_started;index"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`

	// Count of correct answers, set at module completion.
	RawScore *int `json:"raw_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deadline returns the wall-clock instant the module expires, or nil when
// the module has not been started. A resumed module keeps its original
// deadline so backgrounded clients reconcile to real elapsed time.
func (m *ExamModule) Deadline() *time.Time {
	if m.StartedAt == nil {
		return nil
	}
	d := m.StartedAt.Add(time.Duration(m.TimeLimitSeconds) * time.Second)
	return &d
}

func (m *ExamModule) Expired(now time.Time) bool {
	deadline := m.Deadline()
	return deadline != nil && now.After(*deadline)
}

func (ExamModule) TableName() string {
	return "exam_modules"
}
