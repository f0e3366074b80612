package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-api/internal/models"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	mu       sync.Mutex
	records  map[string]*models.AttendanceRecord
	inserts  int
	students map[string]bool
	listErr  error
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		records:  make(map[string]*models.AttendanceRecord),
		students: make(map[string]bool),
	}
}

func attendanceKey(studentID, classID string, slot time.Time) string {
	return studentID + "|" + classID + "|" + slot.UTC().Format(time.RFC3339)
}

func (f *fakeAttendanceRepo) InsertUnique(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attendanceKey(record.StudentID, record.ClassID, record.DedupSlot)
	if existing, ok := f.records[key]; ok {
		return existing, false, nil
	}
	stored := *record
	stored.ID = key
	f.records[key] = &stored
	f.inserts++
	return &stored, true, nil
}

func (f *fakeAttendanceRepo) FindBySlot(_ context.Context, studentID, classID string, slot time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[attendanceKey(studentID, classID, slot)]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeAttendanceRepo) SetCheckout(_ context.Context, studentID, classID string, slot, checkOut time.Time) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[attendanceKey(studentID, classID, slot)]
	if !ok || record.CheckOutTime != nil {
		return nil, sql.ErrNoRows
	}
	record.CheckOutTime = &checkOut
	copy := *record
	return &copy, nil
}

func (f *fakeAttendanceRepo) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceRecord
	for _, record := range f.records {
		if filter.StudentID != "" && record.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && record.ClassID != filter.ClassID {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeAttendanceRepo) StudentExists(_ context.Context, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[studentID], nil
}

func newTestAttendanceService(repo *fakeAttendanceRepo) *AttendanceService {
	return NewAttendanceService(repo, nil, nil, nil, AttendanceServiceConfig{
		DedupWindow:   time.Hour,
		LateThreshold: 15 * time.Minute,
	})
}

func TestMarkRejectsMalformedToken(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	cases := []struct {
		name  string
		token string
	}{
		{name: "lowercase hex", token: "a1b2c3d4"},
		{name: "too short", token: "A1B2C3"},
		{name: "too long", token: "A1B2C3D4E5"},
		{name: "non hex", token: "A1B2C3GZ"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
				StudentID:     "student-1",
				ClassID:       "class-1",
				PresenceToken: tc.token,
			})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Zero(t, repo.inserts, "rejected check-ins must not touch the store")
}

func TestMarkAdmitsAndClassifies(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	onTime := time.Date(2026, 3, 2, 9, 10, 0, 0, time.UTC)
	record, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:     "student-1",
		ClassID:       "class-1",
		CheckInTime:   &onTime,
		PresenceToken: "A1B2C3D4",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), record.DedupSlot)

	late := time.Date(2026, 3, 2, 10, 20, 0, 0, time.UTC)
	record, err = svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:     "student-1",
		ClassID:       "class-1",
		CheckInTime:   &late,
		PresenceToken: "A1B2C3D4",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
}

func TestMarkDuplicateReturnsOriginal(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	first := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	original, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:     "student-1",
		ClassID:       "class-1",
		CheckInTime:   &first,
		PresenceToken: "A1B2C3D4",
	})
	require.NoError(t, err)

	second := first.Add(10 * time.Minute)
	duplicate, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:     "student-1",
		ClassID:       "class-1",
		CheckInTime:   &second,
		PresenceToken: "A1B2C3D4",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAttendance.Code, appErrors.FromError(err).Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, original.ID, duplicate.ID)
	assert.Equal(t, original.CheckInTime, duplicate.CheckInTime)
	assert.Equal(t, 1, repo.inserts)
}

func TestMarkDifferentPeriodsCreateSeparateRecords(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	morning := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	afternoon := time.Date(2026, 3, 2, 13, 5, 0, 0, time.UTC)
	for _, checkIn := range []time.Time{morning, afternoon} {
		at := checkIn
		_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
			StudentID:     "student-1",
			ClassID:       "class-1",
			CheckInTime:   &at,
			PresenceToken: "A1B2C3D4",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, repo.inserts)
}

func TestMarkConcurrentSubmitsAdmitOne(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	var wg sync.WaitGroup
	duplicates := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := checkIn
			_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
				StudentID:     "student-1",
				ClassID:       "class-1",
				CheckInTime:   &at,
				PresenceToken: "A1B2C3D4",
			})
			duplicates <- err
		}()
	}
	wg.Wait()
	close(duplicates)

	var admitted, rejected int
	for err := range duplicates {
		if err == nil {
			admitted++
		} else {
			rejected++
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 99, rejected)
	assert.Equal(t, 1, repo.inserts)
}

func TestCheckoutStampsOnce(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID:     "student-1",
		ClassID:       "class-1",
		CheckInTime:   &checkIn,
		PresenceToken: "A1B2C3D4",
	})
	require.NoError(t, err)

	checkOut := checkIn.Add(45 * time.Minute)
	record, err := svc.Checkout(context.Background(), CheckoutRequest{
		StudentID:    "student-1",
		ClassID:      "class-1",
		CheckInTime:  checkIn,
		CheckOutTime: &checkOut,
	})
	require.NoError(t, err)
	require.NotNil(t, record.CheckOutTime)
	assert.True(t, record.CheckOutTime.Equal(checkOut))

	later := checkOut.Add(5 * time.Minute)
	again, err := svc.Checkout(context.Background(), CheckoutRequest{
		StudentID:    "student-1",
		ClassID:      "class-1",
		CheckInTime:  checkIn,
		CheckOutTime: &later,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyCheckedOut.Code, appErrors.FromError(err).Code)
	require.NotNil(t, again)
	assert.True(t, again.CheckOutTime.Equal(checkOut), "first checkout must win")
}

func TestCheckoutValidation(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	checkIn := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	before := checkIn.Add(-10 * time.Minute)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		StudentID:    "student-1",
		ClassID:      "class-1",
		CheckInTime:  checkIn,
		CheckOutTime: &before,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	after := checkIn.Add(time.Minute)
	_, err = svc.Checkout(context.Background(), CheckoutRequest{
		StudentID:    "student-1",
		ClassID:      "class-1",
		CheckInTime:  checkIn,
		CheckOutTime: &after,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentHistoryUnknownStudent(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	_, err := svc.StudentHistory(context.Background(), "ghost", models.AttendanceFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassAttendanceSummary(t *testing.T) {
	repo := newFakeAttendanceRepo()
	svc := newTestAttendanceService(repo)

	onTime := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 9, 40, 0, 0, time.UTC)
	for student, checkIn := range map[string]time.Time{"s1": onTime, "s2": late} {
		at := checkIn
		_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
			StudentID:     student,
			ClassID:       "class-1",
			CheckInTime:   &at,
			PresenceToken: "A1B2C3D4",
		})
		require.NoError(t, err)
	}

	records, summary, err := svc.ClassAttendance(context.Background(), "class-1", models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 2, summary.Total)
}
