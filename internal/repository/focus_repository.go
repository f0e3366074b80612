package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classwatch/classwatch-api/internal/models"
)

// FocusRepository handles persistence for focus session records.
type FocusRepository struct {
	db *sqlx.DB
}

// NewFocusRepository constructs the repository.
func NewFocusRepository(db *sqlx.DB) *FocusRepository {
	return &FocusRepository{db: db}
}

const focusColumns = `id, student_id, class_id, session_date, start_time, end_time, focus_score, distraction_count, heart_rate_avg, movement_score, raw_sensor_payload, created_at`

// Insert writes an immutable focus session row.
func (r *FocusRepository) Insert(ctx context.Context, session *models.FocusSession) (*models.FocusSession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO focus_sessions (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING %s`, focusColumns, focusColumns)

	var stored models.FocusSession
	err := r.db.GetContext(ctx, &stored, query,
		session.ID, session.StudentID, session.ClassID, session.SessionDate, session.StartTime,
		session.EndTime, session.FocusScore, session.DistractionCount, session.HeartRateAvg,
		session.MovementScore, session.RawSensorPayload, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert focus session: %w", err)
	}
	return &stored, nil
}

// ListRecent returns sessions for the filter, most recent first.
func (r *FocusRepository) ListRecent(ctx context.Context, filter models.FocusFilter) ([]models.FocusSession, error) {
	return r.list(ctx, filter, "session_date DESC, start_time DESC")
}

// ListAscending returns sessions for the filter in chronological order, the
// shape the improvement computation expects.
func (r *FocusRepository) ListAscending(ctx context.Context, filter models.FocusFilter) ([]models.FocusSession, error) {
	return r.list(ctx, filter, "session_date ASC, start_time ASC")
}

// ListByDay returns every session whose session date falls on the given day.
func (r *FocusRepository) ListByDay(ctx context.Context, day time.Time) ([]models.FocusSession, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	query := fmt.Sprintf(`SELECT %s FROM focus_sessions
WHERE session_date >= $1 AND session_date < $2
ORDER BY session_date DESC, start_time DESC`, focusColumns)

	var sessions []models.FocusSession
	if err := r.db.SelectContext(ctx, &sessions, query, start, end); err != nil {
		return nil, fmt.Errorf("list focus sessions by day: %w", err)
	}
	return sessions, nil
}

func (r *FocusRepository) list(ctx context.Context, filter models.FocusFilter, order string) ([]models.FocusSession, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("session_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("session_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT %s FROM focus_sessions WHERE %s ORDER BY %s`,
		focusColumns, strings.Join(where, " AND "), order)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var sessions []models.FocusSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list focus sessions: %w", err)
	}
	return sessions, nil
}
