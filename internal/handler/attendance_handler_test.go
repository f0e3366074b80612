package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
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

type attendanceRepoStub struct {
	records map[string]*models.AttendanceRecord
}

func newAttendanceRepoStub() *attendanceRepoStub {
	return &attendanceRepoStub{records: make(map[string]*models.AttendanceRecord)}
}

func stubKey(studentID, classID string, slot time.Time) string {
	return studentID + "|" + classID + "|" + slot.Format(time.RFC3339)
}

func (s *attendanceRepoStub) InsertUnique(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	key := stubKey(record.StudentID, record.ClassID, record.DedupSlot)
	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}
	stored := *record
	stored.ID = key
	s.records[key] = &stored
	return &stored, true, nil
}

func (s *attendanceRepoStub) FindBySlot(_ context.Context, studentID, classID string, slot time.Time) (*models.AttendanceRecord, error) {
	if record, ok := s.records[stubKey(studentID, classID, slot)]; ok {
		return record, nil
	}
	return nil, nil
}

func (s *attendanceRepoStub) SetCheckout(_ context.Context, studentID, classID string, slot, checkOut time.Time) (*models.AttendanceRecord, error) {
	record, ok := s.records[stubKey(studentID, classID, slot)]
	if !ok || record.CheckOutTime != nil {
		return nil, sql.ErrNoRows
	}
	record.CheckOutTime = &checkOut
	return record, nil
}

func (s *attendanceRepoStub) List(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, record := range s.records {
		out = append(out, *record)
	}
	return out, nil
}

func (s *attendanceRepoStub) StudentExists(context.Context, string) (bool, error) {
	return true, nil
}

func newAttendanceHandlerForTest() (*AttendanceHandler, *attendanceRepoStub) {
	repo := newAttendanceRepoStub()
	svc := service.NewAttendanceService(repo, nil, nil, nil, service.AttendanceServiceConfig{
		DedupWindow:   time.Hour,
		LateThreshold: 15 * time.Minute,
	})
	export := service.NewExportService(svc, nil)
	return NewAttendanceHandler(svc, export), repo
}

func postJSON(t *testing.T, body interface{}, target string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return w, c
}

func TestAttendanceHandlerMarkCreated(t *testing.T) {
	handler, _ := newAttendanceHandlerForTest()
	w, c := postJSON(t, gin.H{
		"student_id":     "student-1",
		"class_id":       "class-1",
		"presence_token": "A1B2C3D4",
	}, "/attendance/mark")

	handler.Mark(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
	require.NotNil(t, envelope.Data)
}

func TestAttendanceHandlerMarkInvalidToken(t *testing.T) {
	handler, repo := newAttendanceHandlerForTest()
	w, c := postJSON(t, gin.H{
		"student_id":     "student-1",
		"class_id":       "class-1",
		"presence_token": "a1b2c3d4",
	}, "/attendance/mark")

	handler.Mark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, repo.records)
}

func TestAttendanceHandlerMarkDuplicateCarriesOriginal(t *testing.T) {
	handler, _ := newAttendanceHandlerForTest()
	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	body := gin.H{
		"student_id":     "student-1",
		"class_id":       "class-1",
		"check_in_time":  checkIn.Format(time.RFC3339),
		"presence_token": "A1B2C3D4",
	}
	w, c := postJSON(t, body, "/attendance/mark")
	handler.Mark(c)
	require.Equal(t, http.StatusCreated, w.Code)

	w, c = postJSON(t, body, "/attendance/mark")
	handler.Mark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.NotNil(t, envelope.Data, "duplicate response carries the original record")
}

func TestAttendanceHandlerCheckoutConflict(t *testing.T) {
	handler, _ := newAttendanceHandlerForTest()
	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	w, c := postJSON(t, gin.H{
		"student_id":     "student-1",
		"class_id":       "class-1",
		"check_in_time":  checkIn.Format(time.RFC3339),
		"presence_token": "A1B2C3D4",
	}, "/attendance/mark")
	handler.Mark(c)
	require.Equal(t, http.StatusCreated, w.Code)

	checkoutBody := gin.H{
		"student_id":     "student-1",
		"class_id":       "class-1",
		"check_in_time":  checkIn.Format(time.RFC3339),
		"check_out_time": checkIn.Add(45 * time.Minute).Format(time.RFC3339),
	}
	w, c = postJSON(t, checkoutBody, "/attendance/checkout")
	handler.Checkout(c)
	require.Equal(t, http.StatusOK, w.Code)

	w, c = postJSON(t, checkoutBody, "/attendance/checkout")
	handler.Checkout(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAttendanceHandlerExportCSV(t *testing.T) {
	handler, _ := newAttendanceHandlerForTest()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/attendance/class/class-1/export?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "classId", Value: "class-1"}}

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}
