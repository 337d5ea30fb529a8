package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
)

const testKey = "correct-horse-battery-staple"

type stubAuth struct{}

func (stubAuth) Verify(key string) error {
	if key != testKey {
		return errors.New("invalid key")
	}
	return nil
}

type stubJobs struct {
	mu      sync.Mutex
	result  *domain.JobResult
	last    domain.JobRequest
	calls   int
	block   chan struct{}
	started chan struct{}
	panics  int
	history []*domain.JobRecord
	histErr error
}

func (s *stubJobs) RunJob(ctx context.Context, req domain.JobRequest) *domain.JobResult {
	s.mu.Lock()
	s.last = req
	s.calls++
	panicNow := s.panics > 0
	if panicNow {
		s.panics--
	}
	s.mu.Unlock()
	if panicNow {
		panic("job service exploded")
	}
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	return s.result
}

func (s *stubJobs) History(limit int) ([]*domain.JobRecord, error) {
	if s.histErr != nil {
		return nil, s.histErr
	}
	if limit < len(s.history) {
		return s.history[:limit], nil
	}
	return s.history, nil
}

func testConfig() ServerConfig {
	return ServerConfig{
		Version:           "test",
		Domain:            "audio.example.com",
		MaxBodyBytes:      1 << 20,
		MaxAttempts:       3,
		MaxConcurrentJobs: 2,
		AuthMaxFailures:   3,
		AuthFailureWindow: time.Minute,
		AuthBlockDuration: time.Minute,
		HistoryEnabled:    true,
		MetricsEnabled:    true,
	}
}

func newTestServer(t *testing.T, jobs *stubJobs, cfg ServerConfig) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer(stubAuth{}, jobs, metrics.New(reg), reg, cfg)
	t.Cleanup(s.Close)
	return s, reg
}

func extractRequestFor(body string, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/extract-audio", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestExtractAudio_Success(t *testing.T) {
	jobs := &stubJobs{result: &domain.JobResult{
		JobID:       "job-1",
		Filename:    "song.mp3",
		AudioBase64: "SUQz",
		Attempts:    2,
		Audio:       &domain.AudioInfo{DurationSeconds: 12.5, BitRate: "128.0 Kbps"},
	}}
	s, _ := newTestServer(t, jobs, testConfig())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"https://youtu.be/x","cookies":"c","platform":"youtube","filename":"song"}`, testKey))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SUQz", body["audioBase64"])
	assert.Equal(t, "song.mp3", body["filename"])
	assert.Equal(t, msgSuccess, body["message"])
	assert.Equal(t, "job-1", body["jobId"])
	assert.EqualValues(t, 2, body["attempts"])
	assert.EqualValues(t, 12.5, body["durationSeconds"])
	assert.Equal(t, "128.0 Kbps", body["bitrate"])

	assert.Equal(t, "https://youtu.be/x", jobs.last.URL)
	assert.Equal(t, "c", jobs.last.Cookies)
	assert.Equal(t, "youtube", jobs.last.Platform)
	assert.Equal(t, "song", jobs.last.Filename)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestExtractAudio_FailureCategories(t *testing.T) {
	tests := []struct {
		category domain.Category
		status   int
	}{
		{domain.CategoryInvalidRequest, http.StatusBadRequest},
		{domain.CategoryContentUnavailable, http.StatusNotFound},
		{domain.CategoryRateLimited, http.StatusTooManyRequests},
		{domain.CategoryCanceled, http.StatusRequestTimeout},
		{domain.CategoryExecutionFailure, http.StatusInternalServerError},
		{domain.CategoryRetriesExhausted, http.StatusInternalServerError},
		{domain.CategoryResultReadFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			jobs := &stubJobs{result: &domain.JobResult{
				JobID: "job-2",
				Err: &domain.JobError{
					Category: tt.category,
					Message:  "failed",
					Details:  "ERROR: something",
				},
			}}
			s, _ := newTestServer(t, jobs, testConfig())

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"https://youtu.be/x"}`, testKey))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "failed", body["error"])
			assert.Equal(t, string(tt.category), body["category"])
			assert.Equal(t, "ERROR: something", body["details"])
			assert.Equal(t, "job-2", body["jobId"])
			assert.NotContains(t, body, "audioBase64")
		})
	}
}

func TestExtractAudio_RejectsBadKey(t *testing.T) {
	jobs := &stubJobs{}
	s, reg := newTestServer(t, jobs, testConfig())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"https://youtu.be/x"}`, "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, msgUnauthorized, body["error"])
	assert.Equal(t, "unauthorized", body["category"])
	assert.Zero(t, jobs.calls)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "ytaudio_http_rejections_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractAudio_MissingKey(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{}, testConfig())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"https://youtu.be/x"}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractAudio_BlocksAfterRepeatedFailures(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{result: &domain.JobResult{}}, testConfig())

	for range 3 {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, "wrong"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, msgTooManyFailures, decodeBody(t, rec)["error"])
}

func TestExtractAudio_InvalidBodies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"malformed json", `{"videoUrl":`, http.StatusBadRequest, msgInvalidBody},
		{"missing url", `{}`, http.StatusBadRequest, domain.ErrEmptyURL.Error()},
		{"filename too long", `{"videoUrl":"x","filename":"` + strings.Repeat("a", 300) + `"}`, http.StatusBadRequest, msgInvalidBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &stubJobs{}
			s, _ := newTestServer(t, jobs, testConfig())

			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, extractRequestFor(tt.body, testKey))

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.errMsg, body["error"])
			assert.Equal(t, "invalid_request", body["category"])
			assert.Zero(t, jobs.calls)
		})
	}
}

func TestExtractAudio_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	s, _ := newTestServer(t, &stubJobs{}, cfg)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"https://youtu.be/x","cookies":"`+strings.Repeat("c", 200)+`"}`, testKey))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExtractAudio_Throttled(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.RequestBurst = 1
	s, _ := newTestServer(t, &stubJobs{result: &domain.JobResult{AudioBase64: "x"}}, cfg)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeBody(t, rec)["category"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestExtractAudio_BusyWhenGateFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	jobs := &stubJobs{
		result:  &domain.JobResult{AudioBase64: "x"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s, _ := newTestServer(t, jobs, cfg)

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
		done <- rec.Code
	}()
	<-jobs.started

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	status := httptest.NewRecorder()
	s.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, status.Body.String(), "1 / 1")

	close(jobs.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestExtractAudio_PanicReleasesGateSlot(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	jobs := &stubJobs{result: &domain.JobResult{AudioBase64: "x"}, panics: 1}
	s, _ := newTestServer(t, jobs, cfg)

	assert.Panics(t, func() {
		s.ServeHTTP(httptest.NewRecorder(), extractRequestFor(`{"videoUrl":"x"}`, testKey))
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, extractRequestFor(`{"videoUrl":"x"}`, testKey))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, jobs.calls)

	status := httptest.NewRecorder()
	s.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, status.Body.String(), "0 / 1")
}

// failingWriter accepts headers but fails every body write.
type failingWriter struct {
	header http.Header
}

func (f *failingWriter) Header() http.Header       { return f.header }
func (f *failingWriter) WriteHeader(int)           {}
func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStatusPage_LogsRenderFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		logger.SetLevel("info")
	})

	s, _ := newTestServer(t, &stubJobs{}, testConfig())
	s.handlers.StatusPage()(&failingWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "render status page: connection reset")
}

func TestJobs(t *testing.T) {
	jobs := &stubJobs{history: []*domain.JobRecord{
		{ID: "a", Status: domain.JobStatusDone},
		{ID: "b", Status: domain.JobStatusFailed, Category: domain.CategoryRateLimited},
	}}
	s, _ := newTestServer(t, jobs, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/jobs?limit=1", nil)
	req.Header.Set(APIKeyHeader, testKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Jobs []domain.JobRecord `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, "a", out.Jobs[0].ID)
}

func TestJobs_Errors(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{histErr: errors.New("db down")}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/jobs?limit=zero", nil)
	req.Header.Set(APIKeyHeader, testKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set(APIKeyHeader, testKey)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestJobs_RequiresKeyAndHistory(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{}, testConfig())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cfg := testConfig()
	cfg.HistoryEnabled = false
	s, _ = newTestServer(t, &stubJobs{}, cfg)
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set(APIKeyHeader, testKey)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndStatusPage(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{}, testConfig())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "audio.example.com")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubJobs{}, testConfig())

	s.ServeHTTP(httptest.NewRecorder(), extractRequestFor(`{}`, "wrong"))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ytaudio_http_rejections_total")

	cfg := testConfig()
	cfg.MetricsEnabled = false
	s, _ = newTestServer(t, &stubJobs{}, cfg)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	s, _ := newTestServer(t, &stubJobs{}, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/extract-audio", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.7", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req, true))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(domain.CategoryNone))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(domain.CategoryUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(domain.Category("something_new")))
}
