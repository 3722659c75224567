package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	examHandler     *ExamHandler
	questionHandler *QuestionHandler
	reportHandler   *ReportHandler
}

func NewHandlerManager(
	sessionService services.SessionService,
	examService services.ExamService,
	questionService services.QuestionService,
	reportService services.ReportService,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler:  NewSessionHandler(sessionService, validator, logger),
		examHandler:     NewExamHandler(examService, logger),
		questionHandler: NewQuestionHandler(questionService, logger),
		reportHandler:   NewReportHandler(reportService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "session-service",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		// Session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.CreateSession)
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.PATCH("/:id/answers/:question_id", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/answers/:question_id/review", hm.sessionHandler.ToggleMarkForReview)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.POST("/:id/complete", hm.sessionHandler.CompleteSession)
			sessions.POST("/:id/abandon", hm.sessionHandler.AbandonSession)
			sessions.GET("/:id/results", hm.sessionHandler.GetResults)
			sessions.GET("/:id/results/export", hm.reportHandler.ExportResults)

			// Exam module lifecycle
			sessions.POST("/:id/modules/:module_id/start", hm.examHandler.StartModule)
			sessions.POST("/:id/modules/:module_id/complete", hm.examHandler.CompleteModule)
		}

		// Exam routes
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)
		}

		// Question bank routes (read-only; bank content is loaded out of band)
		questions := v1.Group("/questions")
		{
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
		}

		// Taxonomy routes
		categories := v1.Group("/categories")
		{
			categories.GET("", hm.questionHandler.ListCategories)
			categories.GET("/:id/topics", hm.questionHandler.ListTopics)
		}
	}
}
