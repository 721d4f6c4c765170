package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"docvault.org/internal/obs"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header %q, context %q", got, seen)
	}
}

func TestRequestIDCallerSuppliedWins(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" {
		t.Fatalf("context id = %q, want abc-123", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("header = %q", got)
	}
}

func TestLoggingJSONEmitsRequestLine(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	h := RequestID(LoggingJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/things", nil)
	req.RemoteAddr = "192.0.2.7:51000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["method"] != "GET" || entry["path"] != "/v1/things" {
		t.Fatalf("unexpected method/path: %v", entry)
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Fatalf("status = %v", entry["status"])
	}
	if entry["remote"] != "192.0.2.7" {
		t.Fatalf("remote = %v", entry["remote"])
	}
	for _, key := range []string{"ts", "level", "request_id", "duration_ms"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("missing %q in log entry: %v", key, entry)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing Content-Security-Policy")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/documents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORSForeignOriginNotReflected(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want empty", got)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	h := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:40000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "Rate limit exceeded" {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	h := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 1, 0.001)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "192.0.2.10:1000"
	h.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "192.0.2.11:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("distinct client got %d", rec.Code)
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("clientIP = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
}

func TestIPLimiterReapsIdleBuckets(t *testing.T) {
	l := newIPLimiter(1, 1, 5*time.Minute, time.Minute)
	base := time.Now()

	if !l.allow("10.0.0.1", base) {
		t.Fatal("first client should pass")
	}
	if !l.allow("10.0.0.2", base) {
		t.Fatal("second client should pass")
	}
	if !l.allow("10.0.0.3", base.Add(10*time.Minute)) {
		t.Fatal("late client should pass")
	}

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("buckets = %d, want only the live client", n)
	}
}

func TestRateLimitStartsNoBackgroundWork(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 64; i++ {
		RateLimit(http.NotFoundHandler(), 1, 1)
	}
	time.Sleep(20 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before+3 {
		t.Fatalf("goroutines grew from %d to %d", before, after)
	}
}
