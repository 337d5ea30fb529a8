package main

import (
	"fmt"
	"os"

	"github.com/bnema/ytaudio/config"
	"github.com/bnema/ytaudio/internal/adapter/extractor/ytdlp"
	"github.com/bnema/ytaudio/internal/adapter/probe/ffprobe"
	"github.com/bnema/ytaudio/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/ytaudio/internal/adapter/storage/sqlite"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
	"github.com/bnema/ytaudio/internal/port"
	"github.com/bnema/ytaudio/internal/service"
)

// openHistory returns the configured job history and its close func. A nil
// history means recording is disabled.
func openHistory(cfg *config.Config) (port.JobHistory, func() error, error) {
	noop := func() error { return nil }

	switch cfg.HistoryBackend {
	case config.HistoryNone:
		return nil, noop, nil
	case config.HistoryJSONFile:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, noop, fmt.Errorf("create data directory: %w", err)
		}
		store, err := jsonfile.NewStore(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, noop, fmt.Errorf("create data directory: %w", err)
		}
		store, err := sqlitestore.NewStore(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	}
}

func retryPolicy(cfg *config.Config) service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts:      cfg.MaxAttempts,
		BaseDelay:        cfg.BaseDelay,
		ShortDelay:       cfg.ShortDelay,
		MaxDelay:         cfg.MaxDelay,
		Jitter:           cfg.RetryJitter,
		RetryUnavailable: cfg.RetryUnavailable,
	}
}

func newExtractionService(cfg *config.Config, history port.JobHistory, m *metrics.Metrics) (*service.ExtractionService, error) {
	if err := os.MkdirAll(cfg.TempDir, 0700); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	opts := ytdlp.DefaultOptions()
	opts.PlayerClient = cfg.PlayerClient
	builder := ytdlp.NewBuilder(cfg.ExtractorBinary, opts)

	retrier := service.NewRetrier(ytdlp.NewRunner(cfg.AttemptTimeout), retryPolicy(cfg), m)

	var prober port.AudioProber
	if cfg.ProbeAudio {
		prober = ffprobe.NewProber(cfg.FFprobeBinary)
	}

	return service.NewExtractionService(builder, retrier, prober, history, m, service.ExtractionConfig{
		TempDir:          cfg.TempDir,
		MaxAudioSize:     cfg.MaxAudioSize(),
		HistoryRetention: cfg.HistoryRetention(),
	}), nil
}
