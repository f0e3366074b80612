package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classwatch/classwatch-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, student_id, class_id, check_in_time, check_out_time, dedup_slot, status, location, device_tag, created_at, updated_at`

// InsertUnique inserts the record unless one already exists for the same
// (student, class, dedup slot). The conditional insert is the atomicity
// primitive for duplicate detection: under concurrent identical submissions
// exactly one insert wins. Returns the stored record and whether this call
// created it.
func (r *AttendanceRepository) InsertUnique(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (student_id, class_id, dedup_slot) DO NOTHING
RETURNING %s`, attendanceColumns, attendanceColumns)

	var stored models.AttendanceRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.StudentID, record.ClassID, record.CheckInTime, record.CheckOutTime,
		record.DedupSlot, record.Status, record.Location, record.DeviceTag, record.CreatedAt, record.UpdatedAt)
	if err == nil {
		return &stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}

	existing, err := r.FindBySlot(ctx, record.StudentID, record.ClassID, record.DedupSlot)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("attendance conflict vanished for student %s", record.StudentID)
	}
	return existing, false, nil
}

// FindBySlot returns the record identified by (student, class, slot), or nil.
func (r *AttendanceRepository) FindBySlot(ctx context.Context, studentID, classID string, slot time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE student_id = $1 AND class_id = $2 AND dedup_slot = $3`, attendanceColumns)

	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, classID, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// SetCheckout stamps the check-out time exactly once. It only updates rows
// whose check-out is still unset, so a concurrent second checkout loses and
// gets sql.ErrNoRows back.
func (r *AttendanceRepository) SetCheckout(ctx context.Context, studentID, classID string, slot, checkOut time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`UPDATE attendance_records
SET check_out_time = $4, updated_at = $5
WHERE student_id = $1 AND class_id = $2 AND dedup_slot = $3 AND check_out_time IS NULL
RETURNING %s`, attendanceColumns)

	var record models.AttendanceRecord
	err := r.db.GetContext(ctx, &record, query, studentID, classID, slot, checkOut, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("set checkout: %w", err)
	}
	return &record, nil
}

// List returns records for the filter ordered most recent first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
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
		where = append(where, fmt.Sprintf("check_in_time >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("check_in_time <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s ORDER BY check_in_time DESC LIMIT %d`,
		attendanceColumns, strings.Join(where, " AND "), limit)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// StudentExists probes the roster so handlers can 404 on unknown students.
func (r *AttendanceRepository) StudentExists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID); err != nil {
		return false, fmt.Errorf("student exists: %w", err)
	}
	return exists, nil
}
