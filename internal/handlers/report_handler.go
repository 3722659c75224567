package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/services"
	"github.com/satprep/session-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	BaseHandler
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   NewBaseHandler(logger),
		reportService: reportService,
	}
}

// ExportResults downloads a completed session's results as a workbook
// @Summary Export results
// @Description Renders the graded results of a completed session as an xlsx download
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/results/export [get]
func (h *ReportHandler) ExportResults(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	data, filename, err := h.reportService.ExportResultsXLSX(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
