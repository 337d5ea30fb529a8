package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bnema/ytaudio/internal/adapter/http/ratelimit"
	"github.com/bnema/ytaudio/internal/adapter/http/templates"
	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
)

const (
	msgSuccess         = "Audio extraction successful"
	msgUnauthorized    = "Unauthorized"
	msgTooManyFailures = "Too many failed authentication attempts"
	msgInvalidBody     = "Invalid JSON body"
	msgBodyTooLarge    = "Request body too large"
	msgThrottled       = "Too many requests. Please try again later."
	msgBusy            = "Server busy. Please try again later."

	defaultJobsLimit = 50
	maxJobsLimit     = 500
	busyRetryAfter   = 5 * time.Second
)

type JobService interface {
	RunJob(ctx context.Context, req domain.JobRequest) *domain.JobResult
	History(limit int) ([]*domain.JobRecord, error)
}

var requestValidate = validator.New()

type extractRequest struct {
	VideoURL string `json:"videoUrl" validate:"required,max=4096"`
	Cookies  string `json:"cookies,omitempty" validate:"max=1048576"`
	Platform string `json:"platform,omitempty" validate:"max=64"`
	Filename string `json:"filename,omitempty" validate:"max=255"`
}

type extractResponse struct {
	Success         bool    `json:"success"`
	AudioBase64     string  `json:"audioBase64"`
	Filename        string  `json:"filename"`
	Message         string  `json:"message"`
	JobID           string  `json:"jobId"`
	Attempts        int     `json:"attempts"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Bitrate         string  `json:"bitrate,omitempty"`
}

type errorResponse struct {
	Error    string          `json:"error"`
	Category domain.Category `json:"category"`
	Details  string          `json:"details,omitempty"`
	JobID    string          `json:"jobId,omitempty"`
}

type Handlers struct {
	jobs         JobService
	throttle     *ratelimit.Throttle
	gate         *ratelimit.Gate
	metrics      *metrics.Metrics
	maxBodyBytes int64
	status       templates.StatusData
	inFlight     atomic.Int64
}

func NewHandlers(jobs JobService, throttle *ratelimit.Throttle, gate *ratelimit.Gate, m *metrics.Metrics, maxBodyBytes int64, status templates.StatusData) *Handlers {
	return &Handlers{
		jobs:         jobs,
		throttle:     throttle,
		gate:         gate,
		metrics:      m,
		maxBodyBytes: maxBodyBytes,
		status:       status,
	}
}

// StatusFor maps a failure category to its HTTP status code.
func StatusFor(c domain.Category) int {
	switch c {
	case domain.CategoryNone:
		return http.StatusOK
	case domain.CategoryUnauthorized:
		return http.StatusUnauthorized
	case domain.CategoryInvalidRequest:
		return http.StatusBadRequest
	case domain.CategoryContentUnavailable:
		return http.StatusNotFound
	case domain.CategoryRateLimited:
		return http.StatusTooManyRequests
	case domain.CategoryCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) ExtractAudio() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ok, retryAfter := h.throttle.Allow(); !ok {
			h.metrics.Rejected("throttled")
			setRetryAfter(w, retryAfter)
			writeError(w, http.StatusTooManyRequests, errorResponse{Error: msgThrottled, Category: domain.CategoryRateLimited})
			return
		}

		req, status, errResp := h.decodeRequest(w, r)
		if errResp != nil {
			h.metrics.Rejected("invalid")
			writeError(w, status, *errResp)
			return
		}

		release, ok := h.gate.TryEnter()
		if !ok {
			h.metrics.Rejected("busy")
			setRetryAfter(w, busyRetryAfter)
			writeError(w, http.StatusServiceUnavailable, errorResponse{Error: msgBusy, Category: domain.CategoryExecutionFailure})
			return
		}
		result := h.runAdmitted(r.Context(), req, release)

		if result.Err != nil {
			writeError(w, StatusFor(result.Err.Category), errorResponse{
				Error:    result.Err.Message,
				Category: result.Err.Category,
				Details:  result.Err.Details,
				JobID:    result.JobID,
			})
			return
		}

		resp := extractResponse{
			Success:     true,
			AudioBase64: result.AudioBase64,
			Filename:    result.Filename,
			Message:     msgSuccess,
			JobID:       result.JobID,
			Attempts:    result.Attempts,
		}
		if result.Audio != nil {
			resp.DurationSeconds = result.Audio.DurationSeconds
			resp.Bitrate = result.Audio.BitRate
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// runAdmitted runs a job holding a gate slot. The slot is returned even if
// the job panics.
func (h *Handlers) runAdmitted(ctx context.Context, req domain.JobRequest, release func()) *domain.JobResult {
	defer release()
	h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	return h.jobs.RunJob(ctx, req)
}

func (h *Handlers) decodeRequest(w http.ResponseWriter, r *http.Request) (domain.JobRequest, int, *errorResponse) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var body extractRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.JobRequest{}, http.StatusRequestEntityTooLarge,
				&errorResponse{Error: msgBodyTooLarge, Category: domain.CategoryInvalidRequest}
		}
		return domain.JobRequest{}, http.StatusBadRequest,
			&errorResponse{Error: msgInvalidBody, Category: domain.CategoryInvalidRequest}
	}

	if err := requestValidate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		details := ""
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if verrs[0].Field() == "VideoURL" && verrs[0].Tag() == "required" {
				return domain.JobRequest{}, http.StatusBadRequest,
					&errorResponse{Error: domain.ErrEmptyURL.Error(), Category: domain.CategoryInvalidRequest}
			}
			details = verrs[0].Field() + " failed " + verrs[0].Tag()
		}
		return domain.JobRequest{}, http.StatusBadRequest,
			&errorResponse{Error: msgInvalidBody, Category: domain.CategoryInvalidRequest, Details: details}
	}

	return domain.JobRequest{
		URL:      body.VideoURL,
		Cookies:  body.Cookies,
		Platform: body.Platform,
		Filename: body.Filename,
	}, 0, nil
}

func (h *Handlers) Jobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultJobsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid limit", Category: domain.CategoryInvalidRequest})
				return
			}
			limit = min(n, maxJobsLimit)
		}

		jobs, err := h.jobs.History(limit)
		if err != nil {
			logger.Error.Printf("list jobs: %v", err)
			writeError(w, http.StatusInternalServerError, errorResponse{Error: "failed to list jobs", Category: domain.CategoryExecutionFailure})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": h.status.Version,
		})
	}
}

func (h *Handlers) StatusPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := h.status
		data.JobsInFlight = h.inFlight.Load()
		data.MaxJobs = h.gate.Size()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Status(data).Render(r.Context(), w); err != nil {
			logger.Debug.Printf("render status page: %v", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}
