package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/scoring"
	"github.com/classwatch/classwatch-api/internal/service"
)

type focusRepoStub struct {
	sessions []models.FocusSession
	inserted int
}

func (s *focusRepoStub) Insert(_ context.Context, session *models.FocusSession) (*models.FocusSession, error) {
	s.inserted++
	stored := *session
	stored.ID = "sess-1"
	return &stored, nil
}

func (s *focusRepoStub) ListRecent(context.Context, models.FocusFilter) ([]models.FocusSession, error) {
	return s.sessions, nil
}

func (s *focusRepoStub) ListAscending(context.Context, models.FocusFilter) ([]models.FocusSession, error) {
	return s.sessions, nil
}

func (s *focusRepoStub) ListByDay(context.Context, time.Time) ([]models.FocusSession, error) {
	return s.sessions, nil
}

type engineStub struct {
	score float64
}

func (e *engineStub) Score(context.Context, scoring.Snapshot) (float64, error) {
	return e.score, nil
}

func newAnalyticsHandlerForTest(repo *focusRepoStub) *AnalyticsHandler {
	svc := service.NewAnalyticsService(repo, &engineStub{score: 75}, nil, nil, nil, nil, service.AnalyticsServiceConfig{})
	return NewAnalyticsHandler(svc)
}

func TestAnalyticsHandlerRecordSessionScores(t *testing.T) {
	repo := &focusRepoStub{}
	handler := newAnalyticsHandlerForTest(repo)

	w, c := postJSON(t, gin.H{
		"student_id": "student-1",
		"class_id":   "class-1",
		"sensor_snapshot": gin.H{
			"start_time":        "2026-03-02T09:00:00Z",
			"end_time":          "2026-03-02T09:45:00Z",
			"distraction_count": 2,
		},
	}, "/analytics/session")

	handler.RecordSession(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, repo.inserted)
}

func TestAnalyticsHandlerRecordSessionMissingFields(t *testing.T) {
	repo := &focusRepoStub{}
	handler := newAnalyticsHandlerForTest(repo)

	w, c := postJSON(t, gin.H{"student_id": "student-1"}, "/analytics/session")

	handler.RecordSession(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, repo.inserted)
}

func TestAnalyticsHandlerTrendInvalidPeriod(t *testing.T) {
	handler := newAnalyticsHandlerForTest(&focusRepoStub{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/trends/student-1?period_days=zero", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}

	handler.Trend(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsHandlerStudentSummary(t *testing.T) {
	repo := &focusRepoStub{sessions: []models.FocusSession{
		{FocusScore: 80}, {FocusScore: 60},
	}}
	handler := newAnalyticsHandlerForTest(repo)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/student/student-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}

	handler.StudentSummary(c)
	require.Equal(t, http.StatusOK, w.Code)
}
