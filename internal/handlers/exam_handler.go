package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
}

func NewExamHandler(examService services.ExamService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
	}
}

// CreateExam creates a full four-module mock exam
// @Summary Create mock exam
// @Description Creates a mock exam session with its fixed module layout; the first module's questions are drawn immediately
// @Tags exams
// @Produce json
// @Success 201 {object} services.SessionResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating mock exam")

	session, err := h.examService.CreateExam(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// StartModule starts or resumes an exam module
// @Summary Start module
// @Description Starts the next module in order, or resumes the active one; the first start activates the session clock
// @Tags exams
// @Produce json
// @Param id path string true "Session ID"
// @Param module_id path string true "Module ID"
// @Success 200 {object} services.SessionResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/modules/{module_id}/start [post]
func (h *ExamHandler) StartModule(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	moduleID := ParseStringIDParam(c, "module_id")
	if moduleID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.examService.StartModule(c.Request.Context(), sessionID, moduleID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CompleteModule completes the active exam module
// @Summary Complete module
// @Description Completes the active module, draws the next module's questions, and reports the transition (direct, break, or final)
// @Tags exams
// @Produce json
// @Param id path string true "Session ID"
// @Param module_id path string true "Module ID"
// @Success 200 {object} services.ModuleTransitionResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/modules/{module_id}/complete [post]
func (h *ExamHandler) CompleteModule(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	moduleID := ParseStringIDParam(c, "module_id")
	if moduleID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Completing module", "session_id", sessionID, "module_id", moduleID)

	transition, err := h.examService.CompleteModule(c.Request.Context(), sessionID, moduleID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, transition)
}
