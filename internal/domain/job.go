package domain

import (
	"strings"
	"time"
)

const DefaultAudioExt = ".mp3"

// JobRequest is the immutable input of one extraction job. Platform is an
// advisory hint only and never changes how the job runs.
type JobRequest struct {
	URL      string
	Cookies  string
	Platform string
	Filename string
}

func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrEmptyURL
	}
	return nil
}

func (r JobRequest) HasCookies() bool {
	return r.Cookies != ""
}

// AudioInfo is optional metadata about the extracted track.
type AudioInfo struct {
	DurationSeconds float64
	BitRate         string
	SampleRate      string
	Codec           string
	Channels        int
}

// JobResult is what the orchestrator hands back to the boundary layer.
// Exactly one of AudioBase64 or Err is set.
type JobResult struct {
	JobID       string
	Filename    string
	AudioBase64 string
	Size        int64
	Attempts    int
	Duration    time.Duration
	Audio       *AudioInfo
	Err         *JobError
}

func (r *JobResult) Extracted() bool {
	return r.Err == nil
}

func (r *JobResult) Category() Category {
	if r.Err == nil {
		return CategoryNone
	}
	return r.Err.Category
}

type JobStatus string

const (
	JobStatusDone   JobStatus = "done"
	JobStatusFailed JobStatus = "failed"
)

// JobRecord is the persisted summary of a finished job. It never carries
// audio bytes or credentials.
type JobRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Platform     string    `json:"platform,omitempty"`
	Status       JobStatus `json:"status"`
	Category     Category  `json:"category,omitempty"`
	Attempts     int       `json:"attempts"`
	DurationMS   int64     `json:"duration_ms"`
	FileSize     int64     `json:"file_size"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NewJobRecord summarises a result for the job history.
func NewJobRecord(req JobRequest, result *JobResult, startedAt time.Time) *JobRecord {
	rec := &JobRecord{
		ID:          result.JobID,
		URL:         req.URL,
		Platform:    req.Platform,
		Status:      JobStatusDone,
		Attempts:    result.Attempts,
		DurationMS:  result.Duration.Milliseconds(),
		FileSize:    result.Size,
		CreatedAt:   startedAt.UTC(),
		CompletedAt: startedAt.Add(result.Duration).UTC(),
	}
	if result.Err != nil {
		rec.Status = JobStatusFailed
		rec.Category = result.Err.Category
		rec.ErrorMessage = result.Err.Message
	}
	return rec
}
