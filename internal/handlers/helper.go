package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/satprep/session-service/internal/models"
	"github.com/satprep/session-service/internal/repositories"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// parsePagination reads limit/offset with sane bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func sessionFiltersFromQuery(c *gin.Context) repositories.SessionFilters {
	filters := repositories.SessionFilters{
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	filters.Limit, filters.Offset = parsePagination(c)

	if v := c.Query("kind"); v != "" {
		kind := models.SessionKind(v)
		filters.Kind = &kind
	}
	if v := c.Query("status"); v != "" {
		status := models.SessionStatus(v)
		filters.Status = &status
	}
	return filters
}

func questionFiltersFromQuery(c *gin.Context) repositories.QuestionFilters {
	filters := repositories.QuestionFilters{
		ActiveOnly: c.Query("include_inactive") != "true",
		SortBy:     c.DefaultQuery("sort_by", "created_at"),
		SortOrder:  c.DefaultQuery("sort_order", "desc"),
	}
	filters.Limit, filters.Offset = parsePagination(c)

	if v := c.Query("type"); v != "" {
		questionType := models.QuestionType(v)
		filters.Type = &questionType
	}
	if v := c.Query("difficulty"); v != "" {
		difficulty := models.DifficultyLevel(v)
		filters.Difficulty = &difficulty
	}
	if v := c.Query("section"); v != "" {
		section := models.Section(v)
		filters.Section = &section
	}
	if v := c.Query("topic_id"); v != "" {
		topicID := v
		filters.TopicID = &topicID
	}
	if v := c.Query("category_id"); v != "" {
		categoryID := v
		filters.CategoryID = &categoryID
	}
	return filters
}
