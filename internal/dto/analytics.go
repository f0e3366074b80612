package dto

import "github.com/classwatch/classwatch-api/internal/models"

// SessionResponse is returned after a sensor snapshot has been scored.
type SessionResponse struct {
	FocusScore float64              `json:"focus_score"`
	Session    *models.FocusSession `json:"session"`
}

// StudentFocusResponse pairs a student's sessions with their trend summary.
type StudentFocusResponse struct {
	Records []models.FocusSession `json:"records"`
	Summary models.TrendSummary   `json:"summary"`
}

// ClassFocusResponse pairs a class's sessions with engagement metrics.
type ClassFocusResponse struct {
	Records []models.FocusSession    `json:"records"`
	Summary models.ClassFocusSummary `json:"summary"`
}
