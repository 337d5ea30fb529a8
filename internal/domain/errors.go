package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("resource not found")
	ErrEmptyURL   = errors.New("no video URL provided")
	ErrEmptyPath  = errors.New("path is empty")
	ErrNotAudio   = errors.New("output is not an mp3 file")
	ErrEmptyAudio = errors.New("output file is empty")
	ErrTooLarge   = errors.New("output file exceeds size limit")
	ErrNoOutput   = errors.New("extractor reported success but wrote no output file")
)

// Category is the stable, machine-checkable failure tag returned to callers.
type Category string

const (
	CategoryNone               Category = ""
	CategoryUnauthorized       Category = "unauthorized"
	CategoryInvalidRequest     Category = "invalid_request"
	CategoryRateLimited        Category = "rate_limited"
	CategoryContentUnavailable Category = "content_unavailable"
	CategoryExecutionFailure   Category = "execution_failure"
	CategoryResultReadFailure  Category = "result_read_failure"
	CategoryRetriesExhausted   Category = "retries_exhausted"
	CategoryCanceled           Category = "canceled"
)

// JobError is a classified job failure. Details holds a diagnostic excerpt
// with job-internal paths already scrubbed.
type JobError struct {
	Category Category
	Message  string
	Details  string
	Err      error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func NewJobError(category Category, message string, err error) *JobError {
	return &JobError{Category: category, Message: message, Err: err}
}

// CategoryOf returns the category of a *JobError anywhere in err's chain,
// or CategoryExecutionFailure for any other non-nil error.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Category
	}
	return CategoryExecutionFailure
}
