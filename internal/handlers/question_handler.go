package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
)

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
	}
}

// GetQuestion retrieves a question by ID
// @Summary Get question
// @Description Retrieves a question with its topic and category
// @Tags questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// ListQuestions lists questions with filters
// @Summary List questions
// @Description Lists bank questions with optional type/difficulty/section/topic filters
// @Tags questions
// @Produce json
// @Param type query string false "Question type"
// @Param difficulty query string false "Difficulty level"
// @Param section query string false "Section"
// @Param topic_id query string false "Topic ID"
// @Success 200 {object} SuccessResponse
// @Router /questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, total, err := h.questionService.List(c.Request.Context(), questionFiltersFromQuery(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"total":     total,
	})
}

// ListCategories lists the categories of a section
// @Summary List categories
// @Description Lists the skill categories of a section with their weights
// @Tags taxonomy
// @Produce json
// @Param section query string true "Section (math or reading_writing)"
// @Success 200 {object} []models.Category
// @Failure 400 {object} ErrorResponse
// @Router /categories [get]
func (h *QuestionHandler) ListCategories(c *gin.Context) {
	section := models.Section(c.Query("section"))
	if section != models.SectionMath && section != models.SectionReadingWriting {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid section",
			Details: "section must be math or reading_writing",
		})
		return
	}

	categories, err := h.questionService.Categories(c.Request.Context(), section)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

// ListTopics lists the topics of a category
// @Summary List topics
// @Description Lists the practice topics belonging to a category
// @Tags taxonomy
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} []models.Topic
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id}/topics [get]
func (h *QuestionHandler) ListTopics(c *gin.Context) {
	categoryID := ParseStringIDParam(c, "id")
	if categoryID == "" {
		return
	}

	topics, err := h.questionService.Topics(c.Request.Context(), categoryID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, topics)
}
