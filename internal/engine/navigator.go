package engine

import "github.com/satprep/session-service/internal/models"

// Navigator traverses a fixed, ordered question list. The order is set at
// session creation and never reshuffled mid-session, so a restored session
// lands on the same sequence. Navigation never touches answer state;
// submit-before-move is the controller's job.
type Navigator struct {
	questions []*models.Question
	index     int
}

func NewNavigator(questions []*models.Question) *Navigator {
	return &Navigator{questions: questions}
}

func (n *Navigator) Current() *models.Question {
	if len(n.questions) == 0 {
		return nil
	}
	return n.questions[n.index]
}

func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Len() int { return len(n.questions) }

func (n *Navigator) Next() (*models.Question, error) {
	if n.index >= len(n.questions)-1 {
		return nil, ErrEndOfList
	}
	n.index++
	return n.questions[n.index], nil
}

func (n *Navigator) Previous() (*models.Question, error) {
	if n.index <= 0 {
		return nil, ErrStartOfList
	}
	n.index--
	return n.questions[n.index], nil
}

func (n *Navigator) JumpTo(index int) (*models.Question, error) {
	if index < 0 || index >= len(n.questions) {
		return nil, ErrIndexOutOfRange
	}
	n.index = index
	return n.questions[n.index], nil
}
