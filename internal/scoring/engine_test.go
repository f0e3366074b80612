package scoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEngineScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/score", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"focus_score": 82.5}`))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, time.Second)
	score, err := engine.Score(context.Background(), Snapshot{DistractionCount: 3})
	require.NoError(t, err)
	assert.Equal(t, 82.5, score)
}

func TestHTTPEngineScoreNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, time.Second)
	_, err := engine.Score(context.Background(), Snapshot{})
	require.Error(t, err)
}

func TestHTTPEngineScoreMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, time.Second)
	_, err := engine.Score(context.Background(), Snapshot{})
	require.Error(t, err)
}

func TestHTTPEngineScoreMissingScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, time.Second)
	_, err := engine.Score(context.Background(), Snapshot{})
	require.Error(t, err)
}

func TestHTTPEngineScoreOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"focus_score": 250}`))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, time.Second)
	_, err := engine.Score(context.Background(), Snapshot{})
	require.Error(t, err)
}

func TestHTTPEngineScoreTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	engine := NewHTTPEngine(srv.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Score(ctx, Snapshot{})
	require.Error(t, err)
}
