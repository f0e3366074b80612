package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-api/internal/models"
)

func TestWebhookNotifierDelivers(t *testing.T) {
	var delivered atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		delivered.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(Config{WebhookURL: server.URL, Workers: 1}, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.Dispatch(models.EmergencyAlert{
		ID:        "alert-1",
		StudentID: "student-1",
		AlertType: models.AlertTypeSOS,
		Status:    models.AlertStatusActive,
	})

	require.Eventually(t, func() bool {
		return delivered.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebhookNotifierLogsWithoutEndpoint(t *testing.T) {
	notifier := NewWebhookNotifier(Config{Workers: 1}, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	// No endpoint configured: delivery degrades to logging and must not panic.
	notifier.Dispatch(models.EmergencyAlert{ID: "alert-1"})
	time.Sleep(20 * time.Millisecond)
}
