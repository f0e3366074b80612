package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classwatch/classwatch-api/internal/dto"
	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/scoring"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
)

// Aggregation policy. These are tunable design constants, not values derived
// from the data: the trend split compares the newest trendRecentWindow
// sessions against the rest and needs trendDelta points of movement before it
// reports a direction; the improvement comparison looks at improvementSpan
// sessions on each end of the series; the engagement and dashboard cutoffs
// classify sessions by score.
const (
	trendRecentWindow = 5
	trendDelta        = 5.0
	improvementSpan   = 7
	engagedThreshold  = 70.0
	highPerformerMin  = 80.0
	attentionMax      = 50.0
)

type focusRepository interface {
	Insert(ctx context.Context, session *models.FocusSession) (*models.FocusSession, error)
	ListRecent(ctx context.Context, filter models.FocusFilter) ([]models.FocusSession, error)
	ListAscending(ctx context.Context, filter models.FocusFilter) ([]models.FocusSession, error)
	ListByDay(ctx context.Context, day time.Time) ([]models.FocusSession, error)
}

// AnalyticsServiceConfig tunes the aggregator.
type AnalyticsServiceConfig struct {
	ScoringTimeout time.Duration
	CacheTTL       time.Duration
}

// AnalyticsService turns raw focus sessions into summaries and trend signals.
type AnalyticsService struct {
	repo      focusRepository
	engine    scoring.Engine
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AnalyticsServiceConfig
	now       func() time.Time
}

// NewAnalyticsService constructs the aggregator.
func NewAnalyticsService(repo focusRepository, engine scoring.Engine, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AnalyticsServiceConfig) *AnalyticsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ScoringTimeout <= 0 {
		cfg.ScoringTimeout = 10 * time.Second
	}
	return &AnalyticsService{repo: repo, engine: engine, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg, now: time.Now}
}

// RecordSessionRequest carries one sensor-capture window for scoring.
type RecordSessionRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	ClassID   string           `json:"class_id" validate:"required"`
	Snapshot  scoring.Snapshot `json:"sensor_snapshot"`
}

// RecordSession scores the snapshot and persists the resulting session. The
// engine call is bounded by the configured timeout; on any engine failure
// nothing is persisted and the caller decides whether to retry.
func (s *AnalyticsService) RecordSession(ctx context.Context, req RecordSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.cfg.ScoringTimeout)
	defer cancel()

	start := time.Now()
	score, err := s.engine.Score(scoreCtx, req.Snapshot)
	s.metrics.ObserveScoreEngine(time.Since(start), err == nil)
	if err != nil {
		s.logger.Warn("focus scoring failed",
			zap.String("student_id", req.StudentID),
			zap.String("class_id", req.ClassID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrScoringFailed.Code, appErrors.ErrScoringFailed.Status, appErrors.ErrScoringFailed.Message)
	}

	now := s.now().UTC()
	startTime := req.Snapshot.StartTime
	if startTime.IsZero() {
		startTime = now
	}
	endTime := req.Snapshot.EndTime
	if endTime.IsZero() {
		endTime = now
	}
	raw, err := json.Marshal(req.Snapshot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode sensor payload")
	}

	session := &models.FocusSession{
		StudentID:        req.StudentID,
		ClassID:          req.ClassID,
		SessionDate:      startTime.UTC().Truncate(24 * time.Hour),
		StartTime:        startTime.UTC(),
		EndTime:          endTime.UTC(),
		FocusScore:       score,
		DistractionCount: req.Snapshot.DistractionCount,
		HeartRateAvg:     req.Snapshot.HeartRateAvg,
		MovementScore:    req.Snapshot.MovementScore,
		RawSensorPayload: raw,
	}

	stored, err := s.repo.Insert(ctx, session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store focus session")
	}

	s.invalidate(ctx, fmt.Sprintf("analytics:student:%s:*", req.StudentID))
	s.invalidate(ctx, fmt.Sprintf("analytics:class:%s:*", req.ClassID))
	s.invalidate(ctx, "analytics:dashboard:*")

	return &dto.SessionResponse{FocusScore: score, Session: stored}, nil
}

// StudentSummary returns a student's sessions (most recent first) and their
// trend summary. An empty window reports zero averages with sessionCount 0;
// it is not an error.
func (s *AnalyticsService) StudentSummary(ctx context.Context, studentID string, filter models.FocusFilter) (*dto.StudentFocusResponse, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	filter.StudentID = studentID
	if filter.Limit <= 0 {
		filter.Limit = 30
	}

	cacheKey := fmt.Sprintf("analytics:student:%s:%s:%s:%d", studentID, formatTimeKey(filter.DateFrom), formatTimeKey(filter.DateTo), filter.Limit)
	var cached dto.StudentFocusResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	sessions, err := s.repo.ListRecent(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list focus sessions")
	}

	resp := &dto.StudentFocusResponse{Records: sessions, Summary: summarize(sessions)}
	if err := s.cache.Set(ctx, cacheKey, resp, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache student summary", zap.Error(err))
	}
	return resp, false, nil
}

// ClassSummary returns a class's sessions with engagement metrics, optionally
// scoped to a single day.
func (s *AnalyticsService) ClassSummary(ctx context.Context, classID string, date *time.Time) (*dto.ClassFocusResponse, bool, error) {
	if classID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}

	filter := models.FocusFilter{ClassID: classID}
	if date != nil {
		dayStart := date.UTC().Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)
		filter.DateFrom = &dayStart
		filter.DateTo = &dayEnd
	}

	cacheKey := fmt.Sprintf("analytics:class:%s:%s", classID, formatDay(filter.DateFrom))
	var cached dto.ClassFocusResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	sessions, err := s.repo.ListRecent(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list class sessions")
	}

	summary := models.ClassFocusSummary{TrendSummary: summarize(sessions)}
	for _, session := range sessions {
		if session.FocusScore >= engagedThreshold {
			summary.EngagedCount++
		}
	}
	if summary.SessionCount > 0 {
		summary.EngagementRate = float64(summary.EngagedCount) / float64(summary.SessionCount)
	}

	resp := &dto.ClassFocusResponse{Records: sessions, Summary: summary}
	if err := s.cache.Set(ctx, cacheKey, resp, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache class summary", zap.Error(err))
	}
	return resp, false, nil
}

// Trend reports the trend summary for sessions since now-periodDays.
func (s *AnalyticsService) Trend(ctx context.Context, studentID string, periodDays int) (*models.TrendSummary, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if periodDays <= 0 {
		periodDays = 30
	}

	since := s.now().UTC().AddDate(0, 0, -periodDays)
	sessions, err := s.repo.ListAscending(ctx, models.FocusFilter{StudentID: studentID, DateFrom: &since})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list trend sessions")
	}

	summary := summarizeAscending(sessions)
	return &summary, nil
}

// Dashboard aggregates the organisation-wide view for one day.
func (s *AnalyticsService) Dashboard(ctx context.Context, asOf time.Time) (*models.DashboardSummary, bool, error) {
	day := asOf.UTC().Truncate(24 * time.Hour)

	cacheKey := fmt.Sprintf("analytics:dashboard:%s", day.Format("2006-01-02"))
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	sessions, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list dashboard sessions")
	}

	summary := &models.DashboardSummary{Date: day.Format("2006-01-02"), TotalSessions: len(sessions)}
	var total float64
	for _, session := range sessions {
		total += session.FocusScore
		if session.FocusScore >= highPerformerMin {
			summary.HighPerformers++
		}
		if session.FocusScore < attentionMax {
			summary.NeedsAttention++
		}
	}
	if len(sessions) > 0 {
		summary.TodayAverage = total / float64(len(sessions))
	}

	if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache dashboard", zap.Error(err))
	}
	return summary, false, nil
}

func (s *AnalyticsService) invalidate(ctx context.Context, pattern string) {
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// summarize derives the trend summary from sessions ordered newest first,
// as the listings return them.
func summarize(newestFirst []models.FocusSession) models.TrendSummary {
	ascending := make([]models.FocusSession, len(newestFirst))
	for i, session := range newestFirst {
		ascending[len(newestFirst)-1-i] = session
	}
	return summarizeAscending(ascending)
}

// summarizeAscending derives the trend summary from a chronological series
// in a single pass over the sessions.
func summarizeAscending(ascending []models.FocusSession) models.TrendSummary {
	summary := models.TrendSummary{SessionCount: len(ascending)}
	scores := make([]float64, len(ascending))
	var total float64
	for i, session := range ascending {
		scores[i] = session.FocusScore
		total += session.FocusScore
		summary.TotalDistractions += session.DistractionCount
	}
	if len(ascending) > 0 {
		summary.AverageScore = total / float64(len(ascending))
	}
	summary.TrendDirection = trendDirection(scores)
	summary.ImprovementPercent = improvementPercent(scores)
	return summary
}

// trendDirection splits chronological scores into the newest
// trendRecentWindow entries and the remainder, then compares averages. An
// empty remainder defaults to the recent average, which reads as stable.
func trendDirection(ascending []float64) models.TrendDirection {
	if len(ascending) < 2 {
		return models.TrendStable
	}
	split := trendRecentWindow
	if split > len(ascending) {
		split = len(ascending)
	}
	recentAvg := mean(ascending[len(ascending)-split:])
	olderAvg := recentAvg
	if len(ascending) > split {
		olderAvg = mean(ascending[:len(ascending)-split])
	}

	diff := recentAvg - olderAvg
	switch {
	case diff > trendDelta:
		return models.TrendImproving
	case diff < -trendDelta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// improvementPercent compares the start of the chronological series against
// its end: up to improvementSpan sessions on each side, halved for short
// series so the two samples never overlap. A zero baseline makes the
// percentage undefined, reported as nil rather than a division error.
func improvementPercent(ascending []float64) *float64 {
	zero := 0.0
	if len(ascending) < 2 {
		return &zero
	}
	span := improvementSpan
	if half := len(ascending) / 2; span > half {
		span = half
	}
	firstAvg := mean(ascending[:span])
	lastAvg := mean(ascending[len(ascending)-span:])
	if firstAvg == 0 {
		return nil
	}
	result := (lastAvg - firstAvg) / firstAvg * 100
	return &result
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// formatTimeKey keeps the full timestamp precision so two different windows
// within one day never share a cache entry.
func formatTimeKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}
