package engine

import "errors"

var (
	// ErrInvalidAnswer rejects empty or blank answer values; the prior
	// answer state is kept untouched.
	ErrInvalidAnswer = errors.New("answer value must not be empty")

	// ErrQuestionNotFound indicates a question id with no answer state in
	// the session.
	ErrQuestionNotFound = errors.New("question not found in session")

	// ErrIndexOutOfRange indicates a jump target outside [0, length).
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrEndOfList and ErrStartOfList flag navigation past either end of
	// the fixed question order.
	ErrEndOfList   = errors.New("already at the last question")
	ErrStartOfList = errors.New("already at the first question")

	// ErrSessionNotFound is returned by a persistence adapter's Restore
	// when no snapshot exists for the session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCompleted rejects mutations on a finished session.
	ErrSessionCompleted = errors.New("session already completed")

	// ErrModuleAlreadyCompleted is the double-completion guard: completing
	// a module twice is an idempotent no-op surfaced with this sentinel.
	ErrModuleAlreadyCompleted = errors.New("module already completed")

	// ErrModuleNotFound indicates an unknown module id.
	ErrModuleNotFound = errors.New("module not found in session")

	// ErrNoActiveModule indicates a module operation while no module is in
	// progress.
	ErrNoActiveModule = errors.New("no module in progress")

	// ErrTimerState rejects a timer transition not allowed from the
	// current state.
	ErrTimerState = errors.New("invalid timer state transition")
)
