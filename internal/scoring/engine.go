package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot is the raw sensor window captured by a device. The payload is
// forwarded to the engine verbatim; only the fields the aggregator needs are
// typed here.
type Snapshot struct {
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	DistractionCount int             `json:"distraction_count"`
	HeartRateAvg     *float64        `json:"heart_rate_avg,omitempty"`
	MovementScore    *float64        `json:"movement_score,omitempty"`
	Samples          json.RawMessage `json:"samples,omitempty"`
}

// Engine computes a 0-100 focus score from a sensor snapshot. Invocations
// are idempotent and side-effect free; retry policy belongs to the caller.
type Engine interface {
	Score(ctx context.Context, snapshot Snapshot) (float64, error)
}

// HTTPEngine calls the out-of-process scoring service.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEngine creates an engine client. The timeout bounds a single
// invocation; a hung engine surfaces as an error, never as a blocked caller.
func NewHTTPEngine(baseURL string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Score posts the snapshot and parses the engine's verdict.
func (e *HTTPEngine) Score(ctx context.Context, snapshot Snapshot) (float64, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("scoring engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("scoring engine error %s: %s", resp.Status, string(raw))
	}

	var out struct {
		FocusScore *float64 `json:"focus_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode scoring response: %w", err)
	}
	if out.FocusScore == nil {
		return 0, fmt.Errorf("scoring response missing focus_score")
	}
	score := *out.FocusScore
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("focus score %v outside [0,100]", score)
	}
	return score, nil
}
