package models

import (
	"encoding/json"
	"time"
)

// TrendDirection is the coarse classification of recent focus movement.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDeclining TrendDirection = "declining"
	TrendStable    TrendDirection = "stable"
)

// FocusSession is one scored sensor-capture window. Rows are immutable once
// written; the raw payload is retained for audit and replay.
type FocusSession struct {
	ID               string          `db:"id" json:"id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	ClassID          string          `db:"class_id" json:"class_id"`
	SessionDate      time.Time       `db:"session_date" json:"session_date"`
	StartTime        time.Time       `db:"start_time" json:"start_time"`
	EndTime          time.Time       `db:"end_time" json:"end_time"`
	FocusScore       float64         `db:"focus_score" json:"focus_score"`
	DistractionCount int             `db:"distraction_count" json:"distraction_count"`
	HeartRateAvg     *float64        `db:"heart_rate_avg" json:"heart_rate_avg,omitempty"`
	MovementScore    *float64        `db:"movement_score" json:"movement_score,omitempty"`
	RawSensorPayload json.RawMessage `db:"raw_sensor_payload" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// TrendSummary is derived on demand from the sessions in scope; it is never
// persisted. ImprovementPercent is nil when the baseline average is zero and
// the percentage is undefined.
type TrendSummary struct {
	AverageScore       float64        `json:"average_score"`
	SessionCount       int            `json:"session_count"`
	TotalDistractions  int            `json:"total_distractions"`
	TrendDirection     TrendDirection `json:"trend_direction"`
	ImprovementPercent *float64       `json:"improvement_percent"`
}

// ClassFocusSummary extends the trend summary with engagement metrics.
type ClassFocusSummary struct {
	TrendSummary
	EngagedCount   int     `json:"engaged_count"`
	EngagementRate float64 `json:"engagement_rate"`
}

// DashboardSummary captures the organisation-wide view for one day.
type DashboardSummary struct {
	Date           string  `json:"date"`
	TodayAverage   float64 `json:"today_average"`
	TotalSessions  int     `json:"total_sessions"`
	HighPerformers int     `json:"high_performers"`
	NeedsAttention int     `json:"needs_attention"`
}

// FocusFilter scopes focus session range queries.
type FocusFilter struct {
	StudentID string
	ClassID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
}
