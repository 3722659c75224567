package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *utils.Validator
}

func NewSessionHandler(
	sessionService services.SessionService,
	validator *utils.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// CreateSession starts a diagnostic or practice session
// @Summary Create session
// @Description Starts a new diagnostic or topic-practice session and draws its question set
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.CreateSessionRequest true "Session data"
// @Success 201 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req services.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession retrieves a session with its derived timer state
// @Summary Get session
// @Description Retrieves a session with timer and progress information
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListSessions lists the authenticated user's sessions
// @Summary List sessions
// @Description Lists the user's sessions with optional kind/status filters
// @Tags sessions
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	sessions, total, err := h.sessionService.List(c.Request.Context(), userID, sessionFiltersFromQuery(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

// SubmitAnswer records a draft answer for a question
// @Summary Submit answer
// @Description Records or overwrites the draft answer for one question of the session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param answer body services.AnswerRequest true "Answer data"
// @Success 200 {object} models.SessionQuestion
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /sessions/{id}/answers/{question_id} [patch]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	row, err := h.sessionService.SubmitAnswer(c.Request.Context(), sessionID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// ToggleMarkForReview flips the review flag on a question
// @Summary Toggle mark for review
// @Description Toggles the mark-for-review flag independent of answer state
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/answers/{question_id}/review [post]
func (h *SessionHandler) ToggleMarkForReview(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	marked, err := h.sessionService.ToggleMarkForReview(c.Request.Context(), sessionID, questionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_marked_for_review": marked})
}

// Navigate moves the session's current question position
// @Summary Navigate
// @Description Commits the current draft and moves the navigator to the given index
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param navigation body services.NavigateRequest true "Target index"
// @Success 200 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Navigate(c.Request.Context(), sessionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CompleteSession finishes and grades a session
// @Summary Complete session
// @Description Commits outstanding drafts, grades the session, and returns the result
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.ExamResult
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Completing session", "session_id", sessionID)

	result, err := h.sessionService.Complete(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AbandonSession abandons a session without grading
// @Summary Abandon session
// @Description Marks the session abandoned; recorded answers are kept but never graded
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/abandon [post]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), sessionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session abandoned"})
}

// GetResults returns the graded result of a completed session
// @Summary Get results
// @Description Returns per-question results and topic/category/section breakdowns
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.ExamResult
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/results [get]
func (h *SessionHandler) GetResults(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.sessionService.Results(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
