package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/internal/service"
	"github.com/classwatch/classwatch-api/pkg/response"
)

type emergencyRepoStub struct {
	alerts map[string]*models.EmergencyAlert
	nextID int
}

func newEmergencyRepoStub() *emergencyRepoStub {
	return &emergencyRepoStub{alerts: make(map[string]*models.EmergencyAlert)}
}

func (s *emergencyRepoStub) Insert(_ context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error) {
	s.nextID++
	stored := *alert
	stored.ID = fmt.Sprintf("alert-%d", s.nextID)
	s.alerts[stored.ID] = &stored
	return &stored, nil
}

func (s *emergencyRepoStub) Get(_ context.Context, id string) (*models.EmergencyAlert, error) {
	if alert, ok := s.alerts[id]; ok {
		return alert, nil
	}
	return nil, nil
}

func (s *emergencyRepoStub) ListActive(context.Context) ([]models.EmergencyAlert, error) {
	var out []models.EmergencyAlert
	for _, alert := range s.alerts {
		if alert.Status == models.AlertStatusActive {
			out = append(out, *alert)
		}
	}
	return out, nil
}

func (s *emergencyRepoStub) TransitionStatus(_ context.Context, id string, from, to models.AlertStatus, at time.Time) (*models.EmergencyAlert, error) {
	alert, ok := s.alerts[id]
	if !ok || alert.Status != from {
		return nil, sql.ErrNoRows
	}
	alert.Status = to
	return alert, nil
}

func newEmergencyHandlerForTest() (*EmergencyHandler, *emergencyRepoStub) {
	repo := newEmergencyRepoStub()
	svc := service.NewEmergencyService(repo, nil, nil, nil, service.EmergencyServiceConfig{
		RateBurst:     10,
		RatePerMinute: 60,
	})
	return NewEmergencyHandler(svc), repo
}

func TestEmergencyHandlerRaiseCreated(t *testing.T) {
	handler, repo := newEmergencyHandlerForTest()
	w, c := postJSON(t, gin.H{
		"student_id": "student-1",
		"alert_type": "SOS",
		"coordinates": gin.H{
			"latitude":  -6.2,
			"longitude": 106.8,
		},
	}, "/emergency/alert")

	handler.Raise(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.alerts, 1)
}

func TestEmergencyHandlerRaiseInvalidCoordinates(t *testing.T) {
	handler, repo := newEmergencyHandlerForTest()
	w, c := postJSON(t, gin.H{
		"student_id": "student-1",
		"alert_type": "SOS",
		"coordinates": gin.H{
			"latitude":  95.0,
			"longitude": 10.0,
		},
	}, "/emergency/alert")

	handler.Raise(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, repo.alerts)
}

func TestEmergencyHandlerListActive(t *testing.T) {
	handler, _ := newEmergencyHandlerForTest()

	w, c := postJSON(t, gin.H{"student_id": "student-1", "alert_type": "FIRE"}, "/emergency/alert")
	handler.Raise(c)
	require.Equal(t, http.StatusCreated, w.Code)

	gin.SetMode(gin.TestMode)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/emergency/active", nil)
	c.Request = req

	handler.ListActive(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 1, data["count"])
}

func TestEmergencyHandlerUpdateStatus(t *testing.T) {
	handler, repo := newEmergencyHandlerForTest()

	w, c := postJSON(t, gin.H{"student_id": "student-1", "alert_type": "SOS"}, "/emergency/alert")
	handler.Raise(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var alertID string
	for id := range repo.alerts {
		alertID = id
	}

	w, c = postJSON(t, gin.H{"status": "acknowledged"}, "/emergency/"+alertID+"/status")
	c.Params = gin.Params{{Key: "alertId", Value: alertID}}
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)

	// The lifecycle never moves backward.
	w, c = postJSON(t, gin.H{"status": "active"}, "/emergency/"+alertID+"/status")
	c.Params = gin.Params{{Key: "alertId", Value: alertID}}
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusConflict, w.Code)
}
