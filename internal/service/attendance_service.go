package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classwatch/classwatch-api/internal/models"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
)

// presenceTokenPattern is the lexical format of the NFC hardware tag id the
// wearables send with every check-in: 8 uppercase hex characters.
var presenceTokenPattern = regexp.MustCompile(`^[A-F0-9]{8}$`)

type attendanceRepository interface {
	InsertUnique(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error)
	FindBySlot(ctx context.Context, studentID, classID string, slot time.Time) (*models.AttendanceRecord, error)
	SetCheckout(ctx context.Context, studentID, classID string, slot, checkOut time.Time) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	StudentExists(ctx context.Context, studentID string) (bool, error)
}

// AttendanceServiceConfig carries the admission policy knobs. Both windows
// are deployment policy, not constants: the dedup window is the class period
// length, the late threshold the grace period after its start.
type AttendanceServiceConfig struct {
	DedupWindow   time.Duration
	LateThreshold time.Duration
}

// AttendanceService validates, deduplicates and admits check-in events.
type AttendanceService struct {
	repo      attendanceRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AttendanceServiceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the attendance gate.
func NewAttendanceService(repo attendanceRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Hour
	}
	if cfg.LateThreshold <= 0 {
		cfg.LateThreshold = 15 * time.Minute
	}
	return &AttendanceService{repo: repo, metrics: metrics, validator: validate, logger: logger, cfg: cfg, now: time.Now}
}

// MarkAttendanceRequest is the check-in payload from a device.
type MarkAttendanceRequest struct {
	StudentID     string     `json:"student_id" validate:"required"`
	ClassID       string     `json:"class_id" validate:"required"`
	CheckInTime   *time.Time `json:"check_in_time"`
	PresenceToken string     `json:"presence_token" validate:"required"`
	DeviceTag     *string    `json:"device_tag"`
	Location      *string    `json:"location"`
}

// CheckoutRequest closes an existing attendance record.
type CheckoutRequest struct {
	StudentID    string     `json:"student_id" validate:"required"`
	ClassID      string     `json:"class_id" validate:"required"`
	CheckInTime  time.Time  `json:"check_in_time" validate:"required"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

// Mark admits one check-in event. Malformed tokens are rejected before any
// store access; a duplicate within the same class period returns the original
// record together with ErrDuplicateAttendance and writes nothing.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !presenceTokenPattern.MatchString(req.PresenceToken) {
		return nil, appErrors.ErrInvalidToken
	}

	checkIn := s.now().UTC()
	if req.CheckInTime != nil {
		checkIn = req.CheckInTime.UTC()
	}
	slot := checkIn.Truncate(s.cfg.DedupWindow)

	status := models.AttendanceStatusPresent
	if checkIn.Sub(slot) > s.cfg.LateThreshold {
		status = models.AttendanceStatusLate
	}

	record := &models.AttendanceRecord{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		CheckInTime: checkIn,
		DedupSlot:   slot,
		Status:      status,
		Location:    req.Location,
		DeviceTag:   req.DeviceTag,
	}

	stored, created, err := s.repo.InsertUnique(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store attendance")
	}
	if !created {
		s.metrics.IncDedupConflict()
		s.logger.Info("duplicate check-in rejected",
			zap.String("student_id", req.StudentID),
			zap.String("class_id", req.ClassID),
			zap.Time("slot", slot))
		return stored, appErrors.ErrDuplicateAttendance
	}
	return stored, nil
}

// Checkout stamps the check-out time on an existing record exactly once.
func (s *AttendanceService) Checkout(ctx context.Context, req CheckoutRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	checkOut := s.now().UTC()
	if req.CheckOutTime != nil {
		checkOut = req.CheckOutTime.UTC()
	}
	checkIn := req.CheckInTime.UTC()
	if checkOut.Before(checkIn) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "check-out time precedes check-in time")
	}
	slot := checkIn.Truncate(s.cfg.DedupWindow)

	existing, err := s.repo.FindBySlot(ctx, req.StudentID, req.ClassID, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load attendance")
	}
	if existing == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no attendance record for this class period")
	}
	if existing.CheckOutTime != nil {
		return existing, appErrors.ErrAlreadyCheckedOut
	}

	updated, err := s.repo.SetCheckout(ctx, req.StudentID, req.ClassID, slot, checkOut)
	if err != nil {
		// Losing the conditional update means another checkout landed first.
		if errors.Is(err, sql.ErrNoRows) {
			return existing, appErrors.ErrAlreadyCheckedOut
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store checkout")
	}
	return updated, nil
}

// StudentHistory lists a student's records, most recent first.
func (s *AttendanceService) StudentHistory(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	exists, err := s.repo.StudentExists(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	filter.StudentID = studentID
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list attendance")
	}
	return records, nil
}

// ClassAttendance lists a class's records with a per-status breakdown.
func (s *AttendanceService) ClassAttendance(ctx context.Context, classID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.ClassAttendanceSummary, error) {
	if classID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	filter.ClassID = classID
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list class attendance")
	}

	summary := &models.ClassAttendanceSummary{Total: len(records)}
	for _, record := range records {
		switch record.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusLate:
			summary.Late++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusExcused:
			summary.Excused++
		}
	}
	return records, summary, nil
}
