package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	HistorySQLite   = "sqlite"
	HistoryJSONFile = "jsonfile"
	HistoryNone     = "none"
)

type Config struct {
	Port   int
	Domain string

	APIKey     string
	APIKeyHash string

	ExtractorBinary string
	FFprobeBinary   string
	ProbeAudio      bool
	PlayerClient    string

	TempDir              string
	DataDir              string
	HistoryBackend       string
	HistoryRetentionDays int

	MaxAttempts      int
	BaseDelay        time.Duration
	ShortDelay       time.Duration
	MaxDelay         time.Duration
	RetryJitter      bool
	RetryUnavailable bool
	AttemptTimeout   time.Duration

	MaxAudioSizeMB    int
	MaxRequestBodyKB  int
	MaxConcurrentJobs int
	RequestsPerSecond float64
	RequestBurst      int
	AuthMaxFailures   int
	BehindProxy       bool
	AllowedOrigins    []string
	MetricsEnabled    bool

	LogLevel string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	return load(true)
}

// LoadLocal is Load without the API key requirement, for one-off jobs run
// from the command line.
func LoadLocal() (*Config, error) {
	return load(false)
}

func load(requireKey bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Domain:          getEnv("DOMAIN", "localhost:7890"),
		APIKey:          os.Getenv("API_KEY"),
		APIKeyHash:      os.Getenv("API_KEY_HASH"),
		ExtractorBinary: getEnv("YTDLP_PATH", "yt-dlp"),
		FFprobeBinary:   getEnv("FFPROBE_PATH", "ffprobe"),
		PlayerClient:    getEnv("YTDLP_PLAYER_CLIENT", "android"),
		TempDir:         getEnv("TEMP_DIR", os.TempDir()),
		DataDir:         getEnv("DATA_DIR", "/data"),
		HistoryBackend:  strings.ToLower(getEnv("HISTORY_BACKEND", HistorySQLite)),
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if requireKey && cfg.APIKey == "" && cfg.APIKeyHash == "" {
		return nil, fmt.Errorf("API_KEY or API_KEY_HASH is required")
	}

	switch cfg.HistoryBackend {
	case HistorySQLite, HistoryJSONFile, HistoryNone:
	default:
		return nil, fmt.Errorf("invalid HISTORY_BACKEND %q: want sqlite, jsonfile or none", cfg.HistoryBackend)
	}

	var err error
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"PORT", 7890, &cfg.Port},
		{"HISTORY_RETENTION_DAYS", 30, &cfg.HistoryRetentionDays},
		{"MAX_ATTEMPTS", 3, &cfg.MaxAttempts},
		{"MAX_AUDIO_SIZE_MB", 200, &cfg.MaxAudioSizeMB},
		{"MAX_REQUEST_BODY_KB", 256, &cfg.MaxRequestBodyKB},
		{"MAX_CONCURRENT_JOBS", 4, &cfg.MaxConcurrentJobs},
		{"REQUEST_BURST", 5, &cfg.RequestBurst},
		{"AUTH_MAX_FAILURES", 5, &cfg.AuthMaxFailures},
	}
	for _, v := range ints {
		if *v.dst, err = getInt(v.key, v.def); err != nil {
			return nil, err
		}
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: must be at least 1")
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"RETRY_BASE_DELAY", 2 * time.Second, &cfg.BaseDelay},
		{"RETRY_SHORT_DELAY", time.Second, &cfg.ShortDelay},
		{"RETRY_MAX_DELAY", time.Minute, &cfg.MaxDelay},
		{"ATTEMPT_TIMEOUT", 10 * time.Minute, &cfg.AttemptTimeout},
	}
	for _, v := range durations {
		if *v.dst, err = getDuration(v.key, v.def); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key string
		def bool
		dst *bool
	}{
		{"PROBE_AUDIO", true, &cfg.ProbeAudio},
		{"RETRY_JITTER", false, &cfg.RetryJitter},
		{"RETRY_UNAVAILABLE", true, &cfg.RetryUnavailable},
		{"BEHIND_PROXY", false, &cfg.BehindProxy},
		{"METRICS_ENABLED", true, &cfg.MetricsEnabled},
	}
	for _, v := range bools {
		if *v.dst, err = getBool(v.key, v.def); err != nil {
			return nil, err
		}
	}

	rps := getEnv("REQUESTS_PER_SECOND", "1")
	if cfg.RequestsPerSecond, err = strconv.ParseFloat(rps, 64); err != nil {
		return nil, fmt.Errorf("invalid REQUESTS_PER_SECOND: %w", err)
	}

	return cfg, nil
}

func (c *Config) MaxAudioSize() int64 {
	return int64(c.MaxAudioSizeMB) * 1024 * 1024
}

func (c *Config) MaxRequestBodyBytes() int64 {
	return int64(c.MaxRequestBodyKB) * 1024
}

func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
