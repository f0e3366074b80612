package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/classwatch/classwatch-api/internal/models"
	"github.com/classwatch/classwatch-api/pkg/jobs"
)

// WebhookNotifier pushes accepted alerts to an external endpoint through a
// background dispatcher, keeping delivery latency off the request path. With
// no endpoint configured it only logs, which is the development default.
type WebhookNotifier struct {
	dispatcher *jobs.Dispatcher
	url        string
	client     *http.Client
	logger     *zap.Logger
}

// Config tunes the notifier.
type Config struct {
	WebhookURL string
	Workers    int
	Timeout    time.Duration
}

// NewWebhookNotifier builds the notifier. Call Start before dispatching.
func NewWebhookNotifier(cfg Config, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	n := &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	n.dispatcher = jobs.NewDispatcher("alert-notify", n.deliver, jobs.Options{
		Workers:    cfg.Workers,
		MaxRetries: 3,
	}, logger)
	return n
}

// Start launches the delivery workers.
func (n *WebhookNotifier) Start(ctx context.Context) {
	n.dispatcher.Start(ctx)
}

// Stop drains the delivery workers.
func (n *WebhookNotifier) Stop() {
	n.dispatcher.Stop()
}

// Dispatch queues one alert for delivery. It never blocks the caller; a full
// buffer drops the notification and logs, the alert itself is already stored.
func (n *WebhookNotifier) Dispatch(alert models.EmergencyAlert) {
	err := n.dispatcher.Submit(jobs.Task{
		ID:      alert.ID,
		Kind:    "emergency_alert",
		Payload: alert,
	})
	if err != nil {
		n.logger.Error("alert notification dropped", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

func (n *WebhookNotifier) deliver(ctx context.Context, task jobs.Task) error {
	alert, ok := task.Payload.(models.EmergencyAlert)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", task.Payload)
	}

	if n.url == "" {
		n.logger.Info("emergency alert notification",
			zap.String("alert_id", alert.ID),
			zap.String("student_id", alert.StudentID),
			zap.String("alert_type", string(alert.AlertType)))
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert %s: %w", alert.ID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for alert %s", resp.StatusCode, alert.ID)
	}
	return nil
}
