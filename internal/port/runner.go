package port

import (
	"context"

	"github.com/bnema/ytaudio/internal/domain"
)

// ProcessRunner runs one extractor invocation to completion and classifies
// the result. It never returns a Go error; launch faults surface as an
// OutcomeOtherFailure with Err set.
type ProcessRunner interface {
	Run(ctx context.Context, cmd domain.Command) domain.Outcome
}

// CommandBuilder turns a job's inputs into an extractor invocation.
type CommandBuilder interface {
	Build(rawURL, outputPath, cookiesPath string) domain.Command
}
