package dto

import "github.com/classwatch/classwatch-api/internal/models"

// ActiveAlertsResponse lists unresolved alerts, newest first.
type ActiveAlertsResponse struct {
	Alerts []models.EmergencyAlert `json:"alerts"`
	Count  int                     `json:"count"`
}
