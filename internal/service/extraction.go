package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
	"github.com/bnema/ytaudio/internal/infrastructure/tempfile"
	"github.com/bnema/ytaudio/internal/port"
	"github.com/bnema/ytaudio/internal/validation"
)

const (
	// JobDirPrefix names every per-job directory under the temp dir.
	JobDirPrefix = "ytaudio-job-"

	// staleJobDirAge is how old a leftover job directory must be before the
	// sweeper removes it.
	staleJobDirAge = time.Hour

	maxDetailsBytes = 2048
	pathPlaceholder = "<tmp>"
)

// User facing messages, one per category.
const (
	msgInvalidRequest     = "No video URL provided"
	msgContentUnavailable = "Video content not available. This video may be private, deleted, or region-restricted."
	msgRateLimited        = "YouTube rate limit exceeded. Please try again later."
	msgExecutionFailure   = "Failed to extract audio"
	msgRetriesExhausted   = "Failed to extract audio after retries"
	msgResultReadFailure  = "Failed to read audio file"
	msgCanceled           = "Request canceled before extraction finished"
	msgJobSetup           = "Failed to prepare extraction job"
)

type ExtractionConfig struct {
	TempDir          string
	MaxAudioSize     int64
	HistoryRetention time.Duration
}

// ExtractionService runs extraction jobs. It holds no per-job state and is
// safe for concurrent use.
type ExtractionService struct {
	builder port.CommandBuilder
	retrier *Retrier
	prober  port.AudioProber
	history port.JobHistory
	metrics *metrics.Metrics
	cfg     ExtractionConfig
	now     func() time.Time
}

// NewExtractionService wires a service. prober and history may be nil.
func NewExtractionService(
	builder port.CommandBuilder,
	retrier *Retrier,
	prober port.AudioProber,
	history port.JobHistory,
	m *metrics.Metrics,
	cfg ExtractionConfig,
) *ExtractionService {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &ExtractionService{
		builder: builder,
		retrier: retrier,
		prober:  prober,
		history: history,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunJob extracts the audio track named by req. It always returns a result;
// failures are classified in result.Err and every temporary file the job
// created is gone by the time it returns.
func (s *ExtractionService) RunJob(ctx context.Context, req domain.JobRequest) *domain.JobResult {
	startedAt := s.now()
	jobID := uuid.NewString()

	s.metrics.JobStarted()
	result := s.runRecovered(ctx, jobID, req)
	result.Duration = s.now().Sub(startedAt)
	s.metrics.JobFinished(string(result.Category()), result.Duration)

	if result.Err != nil {
		logger.Error.Printf("[job %s] failed after %d attempt(s): %v", jobID, result.Attempts, result.Err)
	} else {
		logger.Info.Printf("[job %s] done in %s, %s, %d attempt(s)",
			jobID, result.Duration.Round(time.Millisecond), domain.FormatSize(result.Size), result.Attempts)
	}

	s.record(req, result, startedAt)
	return result
}

// runRecovered turns a panic in any collaborator into an execution failure.
// The job's temp scope has already been closed by the time recover runs.
func (s *ExtractionService) runRecovered(ctx context.Context, jobID string, req domain.JobRequest) (result *domain.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("[job %s] panic: %v\n%s", jobID, r, debug.Stack())
			result = &domain.JobResult{
				JobID: jobID,
				Err:   domain.NewJobError(domain.CategoryExecutionFailure, msgExecutionFailure, errors.New("internal error")),
			}
		}
	}()
	return s.run(ctx, jobID, req)
}

func (s *ExtractionService) run(ctx context.Context, jobID string, req domain.JobRequest) *domain.JobResult {
	result := &domain.JobResult{JobID: jobID}

	if err := req.Validate(); err != nil {
		result.Err = domain.NewJobError(domain.CategoryInvalidRequest, msgInvalidRequest, err)
		return result
	}

	scope := tempfile.NewScope(s.cfg.TempDir)
	defer scope.Close()

	if _, err := scope.MkdirTemp(JobDirPrefix + jobID + "-*"); err != nil {
		result.Err = domain.NewJobError(domain.CategoryExecutionFailure, msgJobSetup, errors.New("cannot create job directory"))
		logger.Error.Printf("[job %s] %v", jobID, err)
		return result
	}

	var cookiesPath string
	if req.HasCookies() {
		h, err := scope.CreateTemp("cookies-*.txt", []byte(req.Cookies))
		if err != nil {
			result.Err = domain.NewJobError(domain.CategoryExecutionFailure, msgJobSetup, errors.New("cannot write cookies file"))
			logger.Error.Printf("[job %s] %v", jobID, err)
			return result
		}
		cookiesPath = h.Path()
	}

	output := scope.Acquire("audio" + domain.DefaultAudioExt)
	cmd := s.builder.Build(req.URL, output.Path(), cookiesPath)

	logger.Info.Printf("[job %s] extracting %s platform=%q cookies=%t",
		jobID, logger.SanitizeForLog(req.URL), logger.SanitizeForLog(req.Platform), cookiesPath != "")

	rr := s.retrier.Execute(ctx, cmd)
	result.Attempts = rr.Attempts

	if !rr.Outcome.Succeeded() {
		result.Err = s.classifyFailure(rr, scope.Dir())
		return result
	}

	if rr.Outcome.Stderr != "" {
		logger.Debug.Printf("[job %s] extractor stderr: %s", jobID,
			logger.SanitizeForLog(logger.Excerpt(scrubPaths(rr.Outcome.Stderr, scope.Dir(), s.cfg.TempDir), maxDetailsBytes)))
	}

	data, err := readAudio(output.Path(), s.cfg.MaxAudioSize)
	if err != nil {
		result.Err = domain.NewJobError(domain.CategoryResultReadFailure, msgResultReadFailure, err)
		result.Err.Details = err.Error()
		return result
	}

	result.Size = int64(len(data))
	result.AudioBase64 = base64.StdEncoding.EncodeToString(data)
	result.Filename = validation.AudioFilename(req.Filename, strconv.FormatInt(s.now().UnixMilli(), 10), domain.DefaultAudioExt)
	result.Audio = s.probe(ctx, jobID, output.Path())

	return result
}

func (s *ExtractionService) classifyFailure(rr RetryResult, jobDir string) *domain.JobError {
	out := rr.Outcome

	var jobErr *domain.JobError
	switch out.Kind {
	case domain.OutcomeCanceled:
		jobErr = domain.NewJobError(domain.CategoryCanceled, msgCanceled, out.Err)
	case domain.OutcomeContentUnavailable:
		jobErr = domain.NewJobError(domain.CategoryContentUnavailable, msgContentUnavailable, out.Err)
	case domain.OutcomeRateLimited:
		jobErr = domain.NewJobError(domain.CategoryRateLimited, msgRateLimited, out.Err)
	default:
		if rr.Exhausted && rr.Attempts > 1 {
			jobErr = domain.NewJobError(domain.CategoryRetriesExhausted, msgRetriesExhausted, out.Err)
		} else {
			jobErr = domain.NewJobError(domain.CategoryExecutionFailure, msgExecutionFailure, out.Err)
		}
	}

	details := out.Stderr
	if strings.TrimSpace(details) == "" && out.Err != nil {
		details = out.Err.Error()
	}
	jobErr.Details = logger.Excerpt(scrubPaths(details, jobDir, s.cfg.TempDir), maxDetailsBytes)
	return jobErr
}

// readAudio loads the extractor's output after checking it exists, is
// non-empty, fits the size limit and looks like MPEG audio. Errors never
// include the path.
func readAudio(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNoOutput
		}
		return nil, errors.New("cannot open output file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.New("cannot stat output file")
	}
	if info.Size() == 0 {
		return nil, domain.ErrEmptyAudio
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s > %s", domain.ErrTooLarge, domain.FormatSize(info.Size()), domain.FormatSize(maxSize))
	}

	mime, ok, err := validation.ValidateMagicBytes(f)
	if err != nil {
		return nil, errors.New("cannot read output file")
	}
	if !ok {
		return nil, fmt.Errorf("%w: detected %s", domain.ErrNotAudio, mime)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("cannot read output file")
	}
	return data, nil
}

func (s *ExtractionService) probe(ctx context.Context, jobID, path string) *domain.AudioInfo {
	if s.prober == nil {
		return nil
	}
	res, err := s.prober.Probe(ctx, path)
	if err != nil {
		logger.Warn.Printf("[job %s] probe failed: %v", jobID, err)
		return nil
	}
	return res.AudioInfo()
}

func (s *ExtractionService) record(req domain.JobRequest, result *domain.JobResult, startedAt time.Time) {
	if s.history == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("[job %s] panic while recording history: %v", result.JobID, r)
		}
	}()

	rec := domain.NewJobRecord(req, result, startedAt)
	rec.URL = logger.SanitizeForLog(rec.URL)
	if err := s.history.Record(rec); err != nil {
		logger.Warn.Printf("[job %s] failed to record history: %v", result.JobID, err)
	}
}

// History returns the most recent jobs, newest first.
func (s *ExtractionService) History(limit int) ([]*domain.JobRecord, error) {
	if s.history == nil {
		return []*domain.JobRecord{}, nil
	}
	return s.history.ListRecent(limit)
}

// Cleanup prunes old history and removes job directories left behind by a
// crashed process.
func (s *ExtractionService) Cleanup() error {
	now := s.now()

	var errs []error
	if s.history != nil && s.cfg.HistoryRetention > 0 {
		n, err := s.history.PruneBefore(now.Add(-s.cfg.HistoryRetention))
		if err != nil {
			errs = append(errs, fmt.Errorf("prune history: %w", err))
		} else if n > 0 {
			logger.Info.Printf("pruned %d history record(s)", n)
		}
	}

	n, err := tempfile.SweepStale(s.cfg.TempDir, JobDirPrefix, staleJobDirAge, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep temp dir: %w", err))
	} else if n > 0 {
		logger.Info.Printf("removed %d stale job director(ies)", n)
	}

	return errors.Join(errs...)
}

// scrubPaths hides job-internal paths from text returned to callers.
func scrubPaths(s string, paths ...string) string {
	for _, p := range paths {
		if p != "" {
			s = strings.ReplaceAll(s, p, pathPlaceholder)
		}
	}
	return s
}
