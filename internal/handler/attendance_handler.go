package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classwatch/classwatch-api/internal/dto"
	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/service"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
	"github.com/classwatch/classwatch-api/pkg/response"
)

// AttendanceHandler exposes check-in, checkout and listing endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	export     *service.ExportService
}

// NewAttendanceHandler constructs the attendance handler.
func NewAttendanceHandler(attendance *service.AttendanceService, export *service.ExportService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, export: export}
}

// Mark admits one check-in event. A duplicate within the same class period
// returns 400 with the original record so the device can reconcile.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid check-in payload"))
		return
	}

	record, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrDuplicateAttendance.Code && record != nil {
			c.JSON(appErr.Status, response.Envelope{Data: record, Error: appErr})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Checkout stamps the check-out time on an existing record.
func (h *AttendanceHandler) Checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid checkout payload"))
		return
	}

	record, err := h.attendance.Checkout(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// StudentHistory lists a student's attendance records.
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	filter, err := parseAttendanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.attendance.StudentHistory(c.Request.Context(), c.Param("studentId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AttendanceHistoryResponse{Records: records}, nil)
}

// ClassAttendance lists a class's records with the status breakdown.
func (h *AttendanceHandler) ClassAttendance(c *gin.Context) {
	filter, err := parseAttendanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, summary, err := h.attendance.ClassAttendance(c.Request.Context(), c.Param("classId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ClassAttendanceResponse{Records: records, Summary: summary}, nil)
}

// Export streams the class attendance report in the requested format.
func (h *AttendanceHandler) Export(c *gin.Context) {
	filter, err := parseAttendanceFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))

	result, err := h.export.ClassAttendanceReport(c.Request.Context(), c.Param("classId"), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func parseAttendanceFilter(c *gin.Context) (models.AttendanceFilter, error) {
	var filter models.AttendanceFilter
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
