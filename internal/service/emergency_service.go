package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classwatch/classwatch-api/internal/models"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
)

// AlertNotifier receives every accepted alert for out-of-band delivery.
// Dispatch must not block the caller.
type AlertNotifier interface {
	Dispatch(alert models.EmergencyAlert)
}

type emergencyRepository interface {
	Insert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error)
	Get(ctx context.Context, id string) (*models.EmergencyAlert, error)
	ListActive(ctx context.Context) ([]models.EmergencyAlert, error)
	TransitionStatus(ctx context.Context, id string, from, to models.AlertStatus, at time.Time) (*models.EmergencyAlert, error)
}

// EmergencyServiceConfig tunes the per-student rate limit.
type EmergencyServiceConfig struct {
	RateBurst     int
	RatePerMinute int
}

// EmergencyService admits emergency alerts. A repeated alert from the same
// student is stored again rather than collapsed; only a flood beyond the
// per-student rate limit is refused.
type EmergencyService struct {
	repo      emergencyRepository
	notifier  AlertNotifier
	limiter   *studentRateLimiter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmergencyService constructs the alert gate.
func NewEmergencyService(repo emergencyRepository, notifier AlertNotifier, validate *validator.Validate, logger *zap.Logger, cfg EmergencyServiceConfig) *EmergencyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 10
	}
	return &EmergencyService{
		repo:      repo,
		notifier:  notifier,
		limiter:   newStudentRateLimiter(cfg.RateBurst, float64(cfg.RatePerMinute)/60.0),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// RaiseAlertRequest is the alert payload from a device.
type RaiseAlertRequest struct {
	StudentID   string                 `json:"student_id" validate:"required"`
	AlertType   models.AlertType       `json:"alert_type" validate:"required"`
	Location    *string                `json:"location"`
	Coordinates *models.GPSCoordinates `json:"coordinates"`
}

// Raise validates and stores one alert, then hands it to the notifier.
func (s *EmergencyService) Raise(ctx context.Context, req RaiseAlertRequest) (*models.EmergencyAlert, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !req.AlertType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported alert type")
	}
	if req.Coordinates != nil && !req.Coordinates.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coordinates out of range")
	}
	if !s.limiter.allow(req.StudentID, s.now()) {
		s.logger.Warn("alert rate limit hit", zap.String("student_id", req.StudentID))
		return nil, appErrors.ErrRateLimited
	}

	now := s.now().UTC()
	alert := &models.EmergencyAlert{
		StudentID: req.StudentID,
		AlertType: req.AlertType,
		Location:  req.Location,
		Status:    models.AlertStatusActive,
		RaisedAt:  now,
	}
	if req.Coordinates != nil {
		lat, lon := req.Coordinates.Latitude, req.Coordinates.Longitude
		alert.Latitude = &lat
		alert.Longitude = &lon
	}

	stored, err := s.repo.Insert(ctx, alert)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store alert")
	}

	s.logger.Info("emergency alert raised",
		zap.String("alert_id", stored.ID),
		zap.String("student_id", stored.StudentID),
		zap.String("alert_type", string(stored.AlertType)))
	if s.notifier != nil {
		s.notifier.Dispatch(*stored)
	}
	return stored, nil
}

// ListActive returns all unresolved alerts, newest first.
func (s *EmergencyService) ListActive(ctx context.Context) ([]models.EmergencyAlert, error) {
	alerts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list active alerts")
	}
	return alerts, nil
}

// UpdateStatus moves an alert forward through its lifecycle. The transition
// is a compare-and-swap on the current status, so a concurrent transition
// surfaces as a conflict rather than a silent overwrite.
func (s *EmergencyService) UpdateStatus(ctx context.Context, alertID string, next models.AlertStatus) (*models.EmergencyAlert, error) {
	if alertID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "alertId is required")
	}
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported alert status")
	}

	current, err := s.repo.Get(ctx, alertID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load alert")
	}
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "alert not found")
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invalid alert status transition")
	}

	updated, err := s.repo.TransitionStatus(ctx, alertID, current.Status, next, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "alert status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "transition alert")
	}
	return updated, nil
}

// studentRateLimiter is a token bucket per student id. Buckets refill at a
// fixed rate; a student with a drained bucket is refused until it refills.
type studentRateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*tokenBucket
	burst         float64
	ratePerSecond float64
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

func newStudentRateLimiter(burst int, ratePerSecond float64) *studentRateLimiter {
	return &studentRateLimiter{
		buckets:       make(map[string]*tokenBucket),
		burst:         float64(burst),
		ratePerSecond: ratePerSecond,
	}
}

func (l *studentRateLimiter) allow(studentID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[studentID]
	if !ok {
		bucket = &tokenBucket{tokens: l.burst, lastSeen: now}
		l.buckets[studentID] = bucket
	}

	elapsed := now.Sub(bucket.lastSeen).Seconds()
	if elapsed > 0 {
		bucket.tokens += elapsed * l.ratePerSecond
		if bucket.tokens > l.burst {
			bucket.tokens = l.burst
		}
		bucket.lastSeen = now
	}

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}
