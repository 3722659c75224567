package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/satprep/session-service/internal/models"
)

// EventType represents different types of session events
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"
	EventSessionExpired   EventType = "session.expired"

	// Module events
	EventModuleStarted   EventType = "module.started"
	EventModuleCompleted EventType = "module.completed"

	// Timer events
	EventTimeWarning EventType = "session.time_warning"
)

// SessionEvent is the base event structure for all session events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id"`
	Kind          models.SessionKind `json:"kind"`
	QuestionCount int                `json:"question_count"`
	StartedAt     time.Time          `json:"started_at"`
	TimeLimit     *int               `json:"time_limit_seconds,omitempty"`
}

type SessionCompletedEvent struct {
	SessionID        string             `json:"session_id"`
	UserID           string             `json:"user_id"`
	Kind             models.SessionKind `json:"kind"`
	CompletedAt      time.Time          `json:"completed_at"`
	AnsweredCount    int                `json:"answered_count"`
	TotalQuestions   int                `json:"total_questions"`
	ForcedByExpiry   bool               `json:"forced_by_expiry"`
	TotalScaledScore *int               `json:"total_scaled_score,omitempty"`
}

type SessionAbandonedEvent struct {
	SessionID     string             `json:"session_id"`
	UserID        string             `json:"user_id"`
	Kind          models.SessionKind `json:"kind"`
	AbandonedAt   time.Time          `json:"abandoned_at"`
	AnsweredCount int                `json:"answered_count"`
}

type ModuleStartedEvent struct {
	SessionID  string            `json:"session_id"`
	UserID     string            `json:"user_id"`
	ModuleID   string            `json:"module_id"`
	ModuleType models.ModuleType `json:"module_type"`
	StartedAt  time.Time         `json:"started_at"`
	TimeLimit  int               `json:"time_limit_seconds"`
}

type ModuleCompletedEvent struct {
	SessionID     string            `json:"session_id"`
	UserID        string            `json:"user_id"`
	ModuleID      string            `json:"module_id"`
	ModuleType    models.ModuleType `json:"module_type"`
	CompletedAt   time.Time         `json:"completed_at"`
	TimeRemaining *int              `json:"time_remaining_seconds,omitempty"`
	Transition    string            `json:"transition"` // direct, break, final
}

type TimeWarningEvent struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	ModuleID         *string   `json:"module_id,omitempty"`
	SecondsRemaining int       `json:"seconds_remaining"`
	WarningTime      time.Time `json:"warning_time"`
}

// Event factory functions

func NewSessionStartedEvent(session *models.Session, questionCount int) *SessionEvent {
	startedAt := time.Now()
	if session.StartedAt != nil {
		startedAt = *session.StartedAt
	}
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:     session.ID,
		UserID:        session.UserID,
		Kind:          session.Kind,
		QuestionCount: questionCount,
		StartedAt:     startedAt,
		TimeLimit:     session.TimeLimitSeconds,
	})
}

func NewSessionCompletedEvent(session *models.Session, answered, total int, forced bool) *SessionEvent {
	completedAt := time.Now()
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}
	eventType := EventSessionCompleted
	if forced {
		eventType = EventSessionExpired
	}
	return newEvent(eventType, SessionCompletedEvent{
		SessionID:        session.ID,
		UserID:           session.UserID,
		Kind:             session.Kind,
		CompletedAt:      completedAt,
		AnsweredCount:    answered,
		TotalQuestions:   total,
		ForcedByExpiry:   forced,
		TotalScaledScore: session.TotalScore,
	})
}

func NewSessionAbandonedEvent(session *models.Session, answered int) *SessionEvent {
	return newEvent(EventSessionAbandoned, SessionAbandonedEvent{
		SessionID:     session.ID,
		UserID:        session.UserID,
		Kind:          session.Kind,
		AbandonedAt:   time.Now(),
		AnsweredCount: answered,
	})
}

func NewModuleStartedEvent(session *models.Session, module *models.ExamModule) *SessionEvent {
	startedAt := time.Now()
	if module.StartedAt != nil {
		startedAt = *module.StartedAt
	}
	return newEvent(EventModuleStarted, ModuleStartedEvent{
		SessionID:  session.ID,
		UserID:     session.UserID,
		ModuleID:   module.ID,
		ModuleType: module.ModuleType,
		StartedAt:  startedAt,
		TimeLimit:  module.TimeLimitSeconds,
	})
}

func NewModuleCompletedEvent(session *models.Session, module *models.ExamModule, transition string) *SessionEvent {
	completedAt := time.Now()
	if module.CompletedAt != nil {
		completedAt = *module.CompletedAt
	}
	return newEvent(EventModuleCompleted, ModuleCompletedEvent{
		SessionID:     session.ID,
		UserID:        session.UserID,
		ModuleID:      module.ID,
		ModuleType:    module.ModuleType,
		CompletedAt:   completedAt,
		TimeRemaining: module.TimeRemainingSeconds,
		Transition:    transition,
	})
}

func NewTimeWarningEvent(session *models.Session, moduleID *string, secondsRemaining int) *SessionEvent {
	return newEvent(EventTimeWarning, TimeWarningEvent{
		SessionID:        session.ID,
		UserID:           session.UserID,
		ModuleID:         moduleID,
		SecondsRemaining: secondsRemaining,
		WarningTime:      time.Now(),
	})
}

func newEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "session-service",
		Version:   "1.0",
		Data:      data,
	}
}

// GenerateEventID returns a unique id for event deduplication downstream.
func GenerateEventID() string {
	return uuid.NewString()
}
