package dto

import "github.com/classwatch/classwatch-api/internal/models"

// AttendanceHistoryResponse lists a student's records.
type AttendanceHistoryResponse struct {
	Records []models.AttendanceRecord `json:"records"`
}

// ClassAttendanceResponse lists a class's records with a status breakdown.
type ClassAttendanceResponse struct {
	Records []models.AttendanceRecord      `json:"records"`
	Summary *models.ClassAttendanceSummary `json:"summary"`
}
