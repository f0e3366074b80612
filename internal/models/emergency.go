package models

import "time"

// AlertType enumerates the emergency alert kinds a device can raise.
type AlertType string

const (
	AlertTypeSOS     AlertType = "SOS"
	AlertTypeMedical AlertType = "MEDICAL"
	AlertTypeFire    AlertType = "FIRE"
)

// Valid returns true when the alert type is a supported value.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeSOS, AlertTypeMedical, AlertTypeFire:
		return true
	default:
		return false
	}
}

// AlertStatus tracks the append-only alert lifecycle.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Valid returns true when the status is a supported value.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces forward-only lifecycle moves; a resolved alert
// never becomes active again.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertStatusActive:
		return next == AlertStatusAcknowledged || next == AlertStatusResolved
	case AlertStatusAcknowledged:
		return next == AlertStatusResolved
	default:
		return false
	}
}

// GPSCoordinates is an optional device position attached to an alert.
type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid checks physical bounds.
func (g GPSCoordinates) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 && g.Longitude >= -180 && g.Longitude <= 180
}

// EmergencyAlert is a raised alert. Multiple alerts from the same student are
// all retained; a repeated SOS is signal, not noise.
type EmergencyAlert struct {
	ID             string      `db:"id" json:"id"`
	StudentID      string      `db:"student_id" json:"student_id"`
	AlertType      AlertType   `db:"alert_type" json:"alert_type"`
	Location       *string     `db:"location" json:"location,omitempty"`
	Latitude       *float64    `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64    `db:"longitude" json:"longitude,omitempty"`
	Status         AlertStatus `db:"status" json:"status"`
	RaisedAt       time.Time   `db:"raised_at" json:"raised_at"`
	AcknowledgedAt *time.Time  `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
