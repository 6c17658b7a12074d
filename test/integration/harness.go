// Package integration provides integration testing utilities for hlsfetch.
package integration

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/hlsfetch/pkg/session"
	"github.com/agleyzer/hlsfetch/pkg/sink"
)

// OriginRequest is one request seen by the origin server.
type OriginRequest struct {
	Path   string
	Header http.Header
	Status int
}

// TestHarness runs an origin file server for sessions to fetch from.
type TestHarness struct {
	t          *testing.T
	httpServer *http.Server
	httpPort   int
	dir        string

	mu       sync.Mutex
	requests []OriginRequest
	faults   map[string][]int
}

// NewTestHarness creates a new test harness.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	return &TestHarness{
		t:        t,
		httpPort: findAvailablePort(t),
		dir:      t.TempDir(),
		faults:   map[string][]int{},
	}
}

// AddFile writes content under the origin root. Directories are created.
func (h *TestHarness) AddFile(name, content string) {
	h.t.Helper()

	path := filepath.Join(h.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to write %s: %v", name, err)
	}
}

// FailNext makes the next requests for path answer with the given statuses,
// one per request, before the file is served again.
func (h *TestHarness) FailNext(path string, statuses ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults[path] = append(h.faults[path], statuses...)
}

// StartHTTPServer starts serving the origin directory.
func (h *TestHarness) StartHTTPServer() {
	h.t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/_ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", h.recording(http.FileServer(http.Dir(h.dir))))

	h.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.httpPort),
		Handler: mux,
	}

	go func() {
		if err := h.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.t.Logf("HTTP server error: %v", err)
		}
	}()

	h.waitForServer(h.URL("/_ready"), 5*time.Second)
	h.t.Logf("origin server started on port %d", h.httpPort)
}

func (h *TestHarness) recording(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		status := 0
		if queue := h.faults[r.URL.Path]; len(queue) > 0 {
			status = queue[0]
			h.faults[r.URL.Path] = queue[1:]
		}
		req := OriginRequest{Path: r.URL.Path, Header: r.Header.Clone(), Status: status}
		h.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
		} else {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			req.Status = rec.status
		}

		h.mu.Lock()
		h.requests = append(h.requests, req)
		h.mu.Unlock()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// URL returns the absolute origin URL for path.
func (h *TestHarness) URL(path string) string {
	return fmt.Sprintf("http://localhost:%d/%s", h.httpPort, strings.TrimPrefix(path, "/"))
}

// Requests returns the requests served so far, in order.
func (h *TestHarness) Requests() []OriginRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]OriginRequest, len(h.requests))
	copy(out, h.requests)
	return out
}

// RequestPaths returns the paths of Requests.
func (h *TestHarness) RequestPaths() []string {
	var paths []string
	for _, r := range h.Requests() {
		paths = append(paths, r.Path)
	}
	return paths
}

// CountRequests returns how many times path was requested.
func (h *TestHarness) CountRequests(path string) int {
	n := 0
	for _, r := range h.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// RunSession fetches path from the origin into a collector.
func (h *TestHarness) RunSession(path string, opts ...session.Option) (*session.Session, *sink.Collector, error) {
	h.t.Helper()

	opts = append([]session.Option{session.WithRetry(FastRetry(3))}, opts...)
	s := session.New(h.URL(path), opts...)
	c := sink.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Run(ctx, c)
	return s, c, err
}

// FastRetry is a retry policy with millisecond backoff.
func FastRetry(attempts int) session.RetryPolicy {
	return session.RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

// Cleanup stops all running services.
func (h *TestHarness) Cleanup() {
	h.t.Helper()

	if h.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.httpServer.Shutdown(ctx)
	}
}

// Get fetches url and returns the body.
func (h *TestHarness) Get(url string) string {
	h.t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		h.t.Fatalf("failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code for %s: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("failed to read %s: %v", url, err)
	}
	return string(body)
}

// waitForServer waits for a server to become available.
func (h *TestHarness) waitForServer(url string, timeout time.Duration) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	h.t.Fatalf("server at %s did not become available within %v", url, timeout)
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// createMediaPlaylist builds a VOD media playlist of numSegments segments
// named seg000.ext and up, with an optional init map.
func createMediaPlaylist(numSegments int, duration float64, ext, initURI string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	if initURI != "" {
		b.WriteString("#EXT-X-VERSION:7\n")
	} else {
		b.WriteString("#EXT-X-VERSION:3\n")
	}
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(duration+0.999)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	if initURI != "" {
		b.WriteString(fmt.Sprintf("#EXT-X-MAP:URI=%q\n", initURI))
	}
	for i := 0; i < numSegments; i++ {
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", duration))
		b.WriteString(segmentName(i, ext))
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func segmentName(i int, ext string) string {
	return fmt.Sprintf("seg%03d%s", i, ext)
}

// segmentBody is deterministic content for segment i of a variant.
func segmentBody(variant string, i int) string {
	return fmt.Sprintf("%s-segment-%03d", variant, i)
}
