package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/port"
)

var ErrInvalidPath = errors.New("path contains null byte")

const DefaultBinary = "ffprobe"

type Prober struct {
	binary string
}

func NewProber(binary string) *Prober {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Prober{binary: binary}
}

func validatePath(path string) error {
	if path == "" {
		return domain.ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

func (p *Prober) Probe(ctx context.Context, path string) (*domain.ProbeResult, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "a",
		"--", path,
	}
	cmd := exec.CommandContext(ctx, p.binary, args...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parse(output)
}

func parse(output []byte) (*domain.ProbeResult, error) {
	var result domain.ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if result.AudioStream() == nil {
		return nil, fmt.Errorf("no audio stream found")
	}
	result.RawJSON = string(output)
	return &result, nil
}

var _ port.AudioProber = (*Prober)(nil)
