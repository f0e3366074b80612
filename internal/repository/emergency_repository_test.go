package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-api/internal/models"
)

var alertRows = []string{"id", "student_id", "alert_type", "location", "latitude", "longitude", "status", "raised_at", "acknowledged_at", "resolved_at", "created_at"}

func TestEmergencyInsertStoresAlert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEmergencyRepository(db)
	raisedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(alertRows).
		AddRow("alert-1", "student-1", "SOS", nil, nil, nil, "active", raisedAt, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO emergency_alerts")).
		WillReturnRows(rows)

	stored, err := repo.Insert(context.Background(), &models.EmergencyAlert{
		StudentID: "student-1",
		AlertType: models.AlertTypeSOS,
		Status:    models.AlertStatusActive,
		RaisedAt:  raisedAt,
	})
	require.NoError(t, err)
	require.Equal(t, "alert-1", stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmergencyTransitionStatusCAS(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEmergencyRepository(db)
	at := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(alertRows).
		AddRow("alert-1", "student-1", "SOS", nil, nil, nil, "acknowledged", at.Add(-time.Minute), at, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE emergency_alerts")).
		WithArgs("alert-1", models.AlertStatusActive, models.AlertStatusAcknowledged, at).
		WillReturnRows(rows)

	alert, err := repo.TransitionStatus(context.Background(), "alert-1", models.AlertStatusActive, models.AlertStatusAcknowledged, at)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusAcknowledged, alert.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmergencyTransitionStatusLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewEmergencyRepository(db)
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE emergency_alerts")).
		WillReturnRows(sqlmock.NewRows(alertRows))

	_, err := repo.TransitionStatus(context.Background(), "alert-1", models.AlertStatusActive, models.AlertStatusResolved, at)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
