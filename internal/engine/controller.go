package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/satprep/session-service/internal/models"
)

// Controller drives the full assessment lifecycle over one session:
// load -> answer loop -> submit/advance -> complete -> score-ready. It
// presents the same interface whether the session is a single-module
// diagnostic or quick practice run, or a multi-module mock exam; the
// orchestrator is only engaged when the session owns modules.
//
// All mutation flows through the controller's typed operations. The
// answer store stays the single source of mutable truth, the persistence
// adapter and the scoring package only read from it.
type Controller struct {
	mu     sync.Mutex
	clock  Clock
	logger *slog.Logger
	store  PersistenceAdapter

	session *models.Session
	bank    map[string]*models.Question

	answers *AnswerStore
	nav     *Navigator
	timer   *Timer
	orch    *Orchestrator
}

// Config assembles a controller. Store may be nil for purely in-memory
// runs; Clock and Logger default to the real clock and slog.Default.
type Config struct {
	Session   *models.Session
	Questions []*models.Question
	Store     PersistenceAdapter
	Clock     Clock
	Logger    *slog.Logger
}

// New builds a controller over a session. The navigator is placed on the
// first not-started question of the active scope, or index 0 when every
// question has been touched, which is also the resume position after a
// restore.
func New(cfg Config) (*Controller, error) {
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	bank := make(map[string]*models.Question, len(cfg.Questions))
	for _, q := range cfg.Questions {
		bank[q.ID] = q
	}

	rows := make([]*models.SessionQuestion, 0, len(cfg.Session.Questions))
	for i := range cfg.Session.Questions {
		rows = append(rows, &cfg.Session.Questions[i])
	}

	c := &Controller{
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		store:   cfg.Store,
		session: cfg.Session,
		bank:    bank,
		answers: NewAnswerStore(rows, cfg.Clock),
	}

	if len(cfg.Session.Modules) > 0 {
		modules := make([]*models.ExamModule, 0, len(cfg.Session.Modules))
		for i := range cfg.Session.Modules {
			modules = append(modules, &cfg.Session.Modules[i])
		}
		c.orch = NewOrchestrator(modules)
	}

	if err := c.rebuildNavigator(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load restores a session from the persistence adapter and builds a
// controller on it. A missing snapshot surfaces ErrSessionNotFound; the
// caller degrades to starting a new session rather than losing answers
// already persisted elsewhere.
func Load(ctx context.Context, store PersistenceAdapter, sessionID string, questions []*models.Question, clock Clock, logger *slog.Logger) (*Controller, error) {
	session, err := store.Restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return New(Config{
		Session:   session,
		Questions: questions,
		Store:     store,
		Clock:     clock,
		Logger:    logger,
	})
}

// Session returns the live session. Callers must not mutate it directly.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start begins a single-module session: a countdown when the session has a
// time limit, a stopwatch otherwise. Exam sessions start per module via
// StartModule.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return ErrSessionCompleted
	}
	if c.orch != nil {
		return ErrNoActiveModule
	}

	c.markStarted()
	c.armTimer(c.session.TimeLimitSeconds, func() { c.expireSession() })
	c.snapshot(ctx, "start")
	return nil
}

// StartModule opens a module of an exam session and arms its countdown.
// A module resumed mid-flight keeps its persisted remaining time.
func (c *Controller) StartModule(ctx context.Context, moduleID string) (*models.ExamModule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orch == nil {
		return nil, ErrModuleNotFound
	}
	if c.session.Status == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}

	now := c.clock.Now()
	module, err := c.orch.Start(moduleID, now)
	if err != nil {
		return nil, err
	}

	c.markStarted()
	if err := c.rebuildNavigator(); err != nil {
		return nil, err
	}

	limit := module.TimeLimitSeconds
	if module.TimeRemainingSeconds != nil {
		limit = *module.TimeRemainingSeconds
	}
	id := module.ID
	c.armTimer(&limit, func() { c.expireModule(id) })

	c.snapshot(ctx, "start_module")
	return module, nil
}

// Answer captures input for a question. The state becomes in_progress and
// is committed to answered when the user navigates away or the session
// completes; the snapshot after every change means a forced completion
// never loses the latest keystroke state.
func (c *Controller) Answer(ctx context.Context, questionID string, value []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return ErrSessionCompleted
	}
	if _, err := c.answers.SetAnswer(questionID, value); err != nil {
		return err
	}
	c.snapshot(ctx, "answer")
	return nil
}

// MarkForReview toggles the review flag, independent of answer status.
func (c *Controller) MarkForReview(ctx context.Context, questionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return false, ErrSessionCompleted
	}
	marked, err := c.answers.ToggleMarkForReview(questionID)
	if err != nil {
		return false, err
	}
	c.snapshot(ctx, "mark_for_review")
	return marked, nil
}

// Current returns the question under the navigator.
func (c *Controller) Current() *models.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Current()
}

// Index returns the navigator position within the active scope.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Index()
}

// GoNext submits the current question's answer, then advances. The commit
// and snapshot happen before the index changes so question N+1 is never
// shown while unsaved state for question N exists.
func (c *Controller) GoNext(ctx context.Context) (*models.Question, error) {
	return c.navigate(ctx, func() (*models.Question, error) { return c.nav.Next() })
}

// GoPrevious submits the current answer, then steps back.
func (c *Controller) GoPrevious(ctx context.Context) (*models.Question, error) {
	return c.navigate(ctx, func() (*models.Question, error) { return c.nav.Previous() })
}

// GoTo submits the current answer, then jumps to the given index.
func (c *Controller) GoTo(ctx context.Context, index int) (*models.Question, error) {
	return c.navigate(ctx, func() (*models.Question, error) { return c.nav.JumpTo(index) })
}

func (c *Controller) navigate(ctx context.Context, move func() (*models.Question, error)) (*models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}

	if current := c.nav.Current(); current != nil {
		if _, err := c.answers.Commit(current.ID); err != nil && !errors.Is(err, ErrQuestionNotFound) {
			return nil, err
		}
		c.snapshot(ctx, "navigate")
	}

	q, err := move()
	if err != nil {
		return nil, err
	}
	c.session.CurrentIndex = c.nav.Index()
	return q, nil
}

// CompleteModule finishes the active module at the user's request and
// reports the transition: direct into the next module of the same section,
// a break across a section boundary, or final when the exam is done. A
// concurrent timer expiry is suppressed because the module status flips
// under the controller lock before the timer callback can observe it.
func (c *Controller) CompleteModule(ctx context.Context) (Transition, *models.ExamModule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orch == nil {
		return "", nil, ErrNoActiveModule
	}
	active := c.orch.Active()
	if active == nil {
		return "", nil, ErrNoActiveModule
	}
	return c.completeModuleLocked(ctx, active.ID)
}

func (c *Controller) completeModuleLocked(ctx context.Context, moduleID string) (Transition, *models.ExamModule, error) {
	c.answers.CommitAll()

	var remaining *int
	if c.timer != nil {
		secs := int(c.timer.Remaining() / time.Second)
		remaining = &secs
		c.timer.Stop()
	}

	transition, next, err := c.orch.Complete(moduleID, remaining, c.clock.Now())
	if err != nil {
		return "", nil, err
	}

	if transition == TransitionFinal {
		c.finalize()
	}
	c.snapshot(ctx, "complete_module")
	return transition, next, nil
}

// Complete finishes the session. Idempotent: a second call is a no-op that
// leaves completed_at untouched, so concurrent expiry- and user-initiated
// completions cannot double-submit.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return nil
	}

	c.answers.CommitAll()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.orch != nil {
		if active := c.orch.Active(); active != nil {
			if _, _, err := c.completeModuleLocked(ctx, active.ID); err != nil && !errors.Is(err, ErrModuleAlreadyCompleted) {
				return err
			}
		}
	}

	c.finalize()
	c.snapshot(ctx, "complete")
	return nil
}

// Abandon marks the session abandoned on an explicit exit. Progress stays
// persisted; the session remains restorable as a historical record.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return ErrSessionCompleted
	}
	if c.timer != nil {
		c.timer.Pause() //nolint:errcheck // pausing a non-running timer is fine
	}
	c.session.Status = models.SessionAbandoned
	c.snapshot(ctx, "abandon")
	return nil
}

// AnswerState exposes a question's current answer state for rendering.
func (c *Controller) AnswerState(questionID string) *models.SessionQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Get(questionID)
}

// TimeRemaining returns the live countdown balance of the active timer.
func (c *Controller) TimeRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	return c.timer.Remaining()
}

// PauseTimer and ResumeTimer map the user-facing timer controls.
func (c *Controller) PauseTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return ErrTimerState
	}
	return c.timer.Pause()
}

func (c *Controller) ResumeTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return ErrTimerState
	}
	return c.timer.Resume()
}

// ===== internal =====

func (c *Controller) markStarted() {
	if c.session.Status == models.SessionNotStarted || c.session.Status == models.SessionAbandoned {
		c.session.Status = models.SessionInProgress
	}
	if c.session.StartedAt == nil {
		now := c.clock.Now()
		c.session.StartedAt = &now
	}
}

func (c *Controller) finalize() {
	if c.session.Status == models.SessionCompleted {
		return
	}
	c.session.Status = models.SessionCompleted
	now := c.clock.Now()
	c.session.CompletedAt = &now
}

// armTimer replaces the active timer. A nil limit means an unbounded
// stopwatch run.
func (c *Controller) armTimer(limitSeconds *int, onExpire func()) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = NewTimer(c.clock, onExpire)
	if limitSeconds == nil {
		c.timer.StartStopwatch() //nolint:errcheck // fresh timer is idle
		return
	}
	c.timer.Start(time.Duration(*limitSeconds) * time.Second) //nolint:errcheck // fresh timer is idle
}

// expireModule is the countdown callback for an exam module. The latest
// answer state is already in the store, so the forced completion captures
// it; if the user completed the module in the same time step, the
// double-completion guard turns this into a no-op.
func (c *Controller) expireModule(moduleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	transition, _, err := c.completeModuleLocked(ctx, moduleID)
	if err != nil {
		if !errors.Is(err, ErrModuleAlreadyCompleted) {
			c.logger.Error("forced module completion failed", "module_id", moduleID, "error", err)
		}
		return
	}
	c.logger.Info("module auto-completed on expiry",
		"session_id", c.session.ID,
		"module_id", moduleID,
		"transition", transition)
}

// expireSession is the countdown callback for a timed single-module
// session.
func (c *Controller) expireSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status == models.SessionCompleted {
		return
	}
	c.answers.CommitAll()
	c.finalize()
	c.snapshot(context.Background(), "expire")
	c.logger.Info("session auto-completed on expiry", "session_id", c.session.ID)
}

// rebuildNavigator scopes navigation to the active module's questions, or
// the whole session for single-module runs, and places the index on the
// first untouched question.
func (c *Controller) rebuildNavigator() error {
	var scope []*models.SessionQuestion
	if c.orch != nil {
		active := c.orch.Active()
		if active == nil {
			active = c.orch.Next()
		}
		if active != nil {
			for _, row := range c.answers.Rows() {
				if row.ModuleID != nil && *row.ModuleID == active.ID {
					scope = append(scope, row)
				}
			}
		}
	} else {
		scope = c.answers.Rows()
	}

	questions := make([]*models.Question, 0, len(scope))
	for _, row := range scope {
		q, ok := c.bank[row.QuestionID]
		if !ok {
			return ErrQuestionNotFound
		}
		questions = append(questions, q)
	}

	c.nav = NewNavigator(questions)
	for i, row := range scope {
		if row.Status == models.AnswerNotStarted {
			c.nav.JumpTo(i) //nolint:errcheck // i is in range by construction
			break
		}
	}
	c.session.CurrentIndex = c.nav.Index()
	return nil
}

// snapshot mirrors the session to the persistence adapter. Failures are
// logged and swallowed: durability is at-least-once and must never block
// local progress.
func (c *Controller) snapshot(ctx context.Context, op string) {
	if c.store == nil {
		return
	}
	if err := c.store.Snapshot(ctx, c.session); err != nil {
		c.logger.Warn("session snapshot failed",
			"session_id", c.session.ID,
			"op", op,
			"error", err)
	}
}
