package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classwatch/classwatch-api/internal/models"
)

// EmergencyRepository handles persistence for emergency alerts.
type EmergencyRepository struct {
	db *sqlx.DB
}

// NewEmergencyRepository constructs the repository.
func NewEmergencyRepository(db *sqlx.DB) *EmergencyRepository {
	return &EmergencyRepository{db: db}
}

const alertColumns = `id, student_id, alert_type, location, latitude, longitude, status, raised_at, acknowledged_at, resolved_at, created_at`

// Insert stores a new alert. There is deliberately no conflict clause: every
// accepted alert is retained.
func (r *EmergencyRepository) Insert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.CreatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO emergency_alerts (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING %s`, alertColumns, alertColumns)

	var stored models.EmergencyAlert
	err := r.db.GetContext(ctx, &stored, query,
		alert.ID, alert.StudentID, alert.AlertType, alert.Location, alert.Latitude, alert.Longitude,
		alert.Status, alert.RaisedAt, alert.AcknowledgedAt, alert.ResolvedAt, alert.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return &stored, nil
}

// Get returns a single alert by id, or nil when absent.
func (r *EmergencyRepository) Get(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM emergency_alerts WHERE id = $1`, alertColumns)
	var alert models.EmergencyAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// ListActive returns unresolved alerts, newest first.
func (r *EmergencyRepository) ListActive(ctx context.Context) ([]models.EmergencyAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM emergency_alerts WHERE status = $1 ORDER BY raised_at DESC`, alertColumns)
	var alerts []models.EmergencyAlert
	if err := r.db.SelectContext(ctx, &alerts, query, models.AlertStatusActive); err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return alerts, nil
}

// TransitionStatus moves an alert from one lifecycle status to the next with
// a compare-and-swap on the current status, so concurrent transitions cannot
// regress the lifecycle. sql.ErrNoRows means the alert was not in the
// expected status.
func (r *EmergencyRepository) TransitionStatus(ctx context.Context, id string, from, to models.AlertStatus, at time.Time) (*models.EmergencyAlert, error) {
	var stampColumn string
	switch to {
	case models.AlertStatusAcknowledged:
		stampColumn = "acknowledged_at"
	case models.AlertStatusResolved:
		stampColumn = "resolved_at"
	default:
		return nil, fmt.Errorf("unsupported alert transition to %s", to)
	}

	query := fmt.Sprintf(`UPDATE emergency_alerts
SET status = $3, %s = $4
WHERE id = $1 AND status = $2
RETURNING %s`, stampColumn, alertColumns)

	var alert models.EmergencyAlert
	err := r.db.GetContext(ctx, &alert, query, id, from, to, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("transition alert: %w", err)
	}
	return &alert, nil
}
