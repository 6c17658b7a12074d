package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/hlsfetch/internal/metrics"
	"github.com/agleyzer/hlsfetch/pkg/session"
	"github.com/hashicorp/go-hclog"
)

type fixedStats session.Stats

func (f fixedStats) Stats() session.Stats { return session.Stats(f) }

func createTestLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Level: hclog.Error})
}

func createTestStats() fixedStats {
	return fixedStats{
		ID:                "abc",
		State:             session.StateSegmentsDelivered,
		ManifestURL:       "https://example.com/master.m3u8",
		SegmentsTotal:     3,
		SegmentsDelivered: 3,
		BytesDelivered:    1024,
	}
}

func TestNew(t *testing.T) {
	src := createTestStats()
	srv := New(src, 8080, createTestLogger())

	if srv.source == nil {
		t.Error("Stats source not set")
	}
	if srv.port != 8080 {
		t.Error("Port not set correctly")
	}
	if srv.logger == nil {
		t.Error("Logger not set")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := New(createTestStats(), 8080, createTestLogger())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var health map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	if health["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", health["status"])
	}

	sess, ok := health["session"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected session to be a map")
	}
	if sess["state"] != "SegmentsDelivered" {
		t.Errorf("Expected state SegmentsDelivered, got %v", sess["state"])
	}
	if sess["segments_delivered"].(float64) != 3 {
		t.Errorf("Expected segments_delivered 3, got %v", sess["segments_delivered"])
	}
	if sess["bytes_delivered"].(float64) != 1024 {
		t.Errorf("Expected bytes_delivered 1024, got %v", sess["bytes_delivered"])
	}
}

func TestHandleHealth_FailedSession(t *testing.T) {
	stats := createTestStats()
	stats.State = session.StateFailed
	stats.Err = "HTTP 404: Not Found"
	srv := New(stats, 8080, createTestLogger())

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if health["status"] != "failed" {
		t.Errorf("Expected status 'failed', got %v", health["status"])
	}
	if health["session"].(map[string]interface{})["error"] != "HTTP 404: Not Found" {
		t.Errorf("Expected error in session stats, got %v", health["session"])
	}
}

func TestHandleHealth_UnstartedSession(t *testing.T) {
	srv := New(fixedStats{ID: "abc"}, 8080, createTestLogger())

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	sess := health["session"].(map[string]interface{})
	if sess["state"] != "Unresolved" {
		t.Errorf("Expected state Unresolved, got %v", sess["state"])
	}
	for _, key := range []string{"started_at", "finished_at"} {
		if v, ok := sess[key]; ok {
			t.Errorf("Expected no %s before the session starts, got %v", key, v)
		}
	}
}

func TestHandleHealth_Timestamps(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stats := createTestStats()
	stats.StartedAt = &started
	srv := New(stats, 8080, createTestLogger())

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	sess := health["session"].(map[string]interface{})
	if sess["started_at"] != "2024-01-02T03:04:05Z" {
		t.Errorf("Expected started_at 2024-01-02T03:04:05Z, got %v", sess["started_at"])
	}
	if _, ok := sess["finished_at"]; ok {
		t.Errorf("Expected no finished_at for a running session, got %v", sess["finished_at"])
	}
}

func TestHandleHealth_NoSession(t *testing.T) {
	srv := New(nil, 8080, nil)

	w := httptest.NewRecorder()
	srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if _, ok := health["session"]; ok {
		t.Error("Expected no session key without a stats source")
	}
}

func TestHandler_Metrics(t *testing.T) {
	metrics.RecordFetch(metrics.StageManifest, metrics.OutcomeOK, 0.01)

	srv := New(createTestStats(), 8080, createTestLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "hlsfetch_fetches_total") {
		t.Error("Expected hlsfetch_fetches_total in metrics output")
	}
}

func TestHandler_NotFound(t *testing.T) {
	srv := New(nil, 8080, createTestLogger())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	srv := New(nil, 8080, createTestLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test"))
	})

	wrapped := srv.loggingMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "test" {
		t.Errorf("Expected body 'test', got '%s'", w.Body.String())
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	wrapped := &responseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}

	wrapped.WriteHeader(http.StatusNotFound)

	if wrapped.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", wrapped.statusCode)
	}
}

func TestServer_Integration(t *testing.T) {
	srv := New(createTestStats(), 0, createTestLogger()) // Use port 0 for automatic port assignment

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Expected nil or ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop within timeout")
	}
}

func TestHandleHealth_ConcurrentRequests(t *testing.T) {
	srv := New(createTestStats(), 8080, createTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			srv.handleHealth(w, httptest.NewRequest("GET", "/health", nil))
			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
		}()
	}
	wg.Wait()
}
