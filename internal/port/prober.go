package port

import (
	"context"

	"github.com/bnema/ytaudio/internal/domain"
)

type AudioProber interface {
	Probe(ctx context.Context, path string) (*domain.ProbeResult, error)
}
