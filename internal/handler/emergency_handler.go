package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classwatch/classwatch-api/internal/dto"
	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/service"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
	"github.com/classwatch/classwatch-api/pkg/response"
)

// EmergencyHandler exposes the alert lifecycle endpoints.
type EmergencyHandler struct {
	emergency *service.EmergencyService
}

// NewEmergencyHandler constructs the emergency handler.
func NewEmergencyHandler(emergency *service.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{emergency: emergency}
}

// Raise accepts one emergency alert.
func (h *EmergencyHandler) Raise(c *gin.Context) {
	var req service.RaiseAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid alert payload"))
		return
	}

	alert, err := h.emergency.Raise(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// ListActive returns all unresolved alerts.
func (h *EmergencyHandler) ListActive(c *gin.Context) {
	alerts, err := h.emergency.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ActiveAlertsResponse{Alerts: alerts, Count: len(alerts)}, nil)
}

type updateAlertStatusRequest struct {
	Status models.AlertStatus `json:"status" binding:"required"`
}

// UpdateStatus moves an alert forward through its lifecycle.
func (h *EmergencyHandler) UpdateStatus(c *gin.Context) {
	var req updateAlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}

	alert, err := h.emergency.UpdateStatus(c.Request.Context(), c.Param("alertId"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}
