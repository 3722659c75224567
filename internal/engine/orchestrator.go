package engine

import (
	"time"

	"github.com/satprep/session-service/internal/models"
)

// Transition is what happens after a module completes: straight into the
// next module, a break screen first, or the end of the session.
type Transition string

const (
	TransitionDirect Transition = "direct"
	TransitionBreak  Transition = "break"
	TransitionFinal  Transition = "final"
)

// Orchestrator sequences the timed modules of a multi-module session. It
// owns the module state machine (not_started -> in_progress -> completed)
// and the section-boundary break rule; question state and timing belong to
// the answer store and timer.
type Orchestrator struct {
	modules []*models.ExamModule
}

func NewOrchestrator(modules []*models.ExamModule) *Orchestrator {
	return &Orchestrator{modules: modules}
}

func (o *Orchestrator) Modules() []*models.ExamModule { return o.modules }

// Active returns the module currently in progress, or nil.
func (o *Orchestrator) Active() *models.ExamModule {
	for _, m := range o.modules {
		if m.Status == models.ModuleInProgress {
			return m
		}
	}
	return nil
}

// Next returns the first module that is not yet completed, or nil when the
// session is done.
func (o *Orchestrator) Next() *models.ExamModule {
	for _, m := range o.modules {
		if m.Status != models.ModuleCompleted {
			return m
		}
	}
	return nil
}

// AllCompleted reports whether every module has finished.
func (o *Orchestrator) AllCompleted() bool {
	return o.Next() == nil
}

// Start moves a module to in_progress. Starting an already running module
// is a no-op so a reload cannot corrupt the state machine.
func (o *Orchestrator) Start(moduleID string, now time.Time) (*models.ExamModule, error) {
	m := o.find(moduleID)
	if m == nil {
		return nil, ErrModuleNotFound
	}
	switch m.Status {
	case models.ModuleCompleted:
		return nil, ErrModuleAlreadyCompleted
	case models.ModuleInProgress:
		return m, nil
	}
	m.Status = models.ModuleInProgress
	if m.StartedAt == nil {
		m.StartedAt = &now
	}
	m.UpdatedAt = now
	return m, nil
}

// Complete finishes a module, records the remaining time at the moment of
// completion, and decides the transition: direct between modules of the
// same section, a break across a section boundary, final when no module
// remains. Completing twice returns ErrModuleAlreadyCompleted so callers
// can treat concurrent expiry and manual completion as an idempotent
// no-op.
func (o *Orchestrator) Complete(moduleID string, timeRemaining *int, now time.Time) (Transition, *models.ExamModule, error) {
	m := o.find(moduleID)
	if m == nil {
		return "", nil, ErrModuleNotFound
	}
	if m.Status == models.ModuleCompleted {
		return "", nil, ErrModuleAlreadyCompleted
	}

	m.Status = models.ModuleCompleted
	m.CompletedAt = &now
	m.TimeRemainingSeconds = timeRemaining
	m.UpdatedAt = now

	next := o.Next()
	if next == nil {
		return TransitionFinal, nil, nil
	}
	if next.ModuleType.Section() != m.ModuleType.Section() {
		return TransitionBreak, next, nil
	}
	return TransitionDirect, next, nil
}

func (o *Orchestrator) find(moduleID string) *models.ExamModule {
	for _, m := range o.modules {
		if m.ID == moduleID {
			return m
		}
	}
	return nil
}
