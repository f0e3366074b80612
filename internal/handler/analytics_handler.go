package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classwatch/classwatch-api/internal/middleware"
	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/service"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
	"github.com/classwatch/classwatch-api/pkg/response"
)

// AnalyticsHandler exposes focus session ingestion and aggregation endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// RecordSession scores and stores one sensor-capture window.
func (h *AnalyticsHandler) RecordSession(c *gin.Context) {
	var req service.RecordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}

	result, err := h.analytics.RecordSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// StudentSummary returns a student's sessions and trend summary.
func (h *AnalyticsHandler) StudentSummary(c *gin.Context) {
	filter, err := parseFocusFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, cacheHit, err := h.analytics.StudentSummary(c.Request.Context(), c.Param("studentId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// ClassSummary returns a class's sessions with engagement metrics.
func (h *AnalyticsHandler) ClassSummary(c *gin.Context) {
	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date parameter"))
			return
		}
		date = &parsed
	}

	result, cacheHit, err := h.analytics.ClassSummary(c.Request.Context(), c.Param("classId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Trend returns the trend summary over the requested period.
func (h *AnalyticsHandler) Trend(c *gin.Context) {
	periodDays := 30
	if raw := c.Query("period_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid period_days parameter"))
			return
		}
		periodDays = parsed
	}

	summary, err := h.analytics.Trend(c.Request.Context(), c.Param("studentId"), periodDays)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Dashboard returns the organisation-wide view for one day.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	asOf := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date parameter"))
			return
		}
		asOf = parsed
	}

	summary, cacheHit, err := h.analytics.Dashboard(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

func parseFocusFilter(c *gin.Context) (models.FocusFilter, error) {
	var filter models.FocusFilter
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_from parameter")
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid date_to parameter")
		}
		filter.DateTo = &parsed
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid limit parameter")
		}
		filter.Limit = limit
	}
	return filter, nil
}
