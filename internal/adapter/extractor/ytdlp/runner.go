package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/port"
)

// Runner executes extractor commands as child processes.
type Runner struct {
	attemptTimeout time.Duration
}

// NewRunner returns a Runner. A zero attemptTimeout leaves attempts bounded
// only by the caller's context.
func NewRunner(attemptTimeout time.Duration) *Runner {
	return &Runner{attemptTimeout: attemptTimeout}
}

func (r *Runner) Run(ctx context.Context, cmd domain.Command) domain.Outcome {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{Kind: domain.OutcomeCanceled, Err: err}
	}

	runCtx := ctx
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(runCtx, cmd.Binary, cmd.Args...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = 5 * time.Second

	start := time.Now()
	err := c.Run()
	logger.Debug.Printf("%s exited after %s: %v", cmd.Binary, time.Since(start).Round(time.Millisecond), err)

	out := domain.Outcome{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		out.Kind = domain.OutcomeSuccess
		return out
	}

	// The caller went away; that is not the extractor's fault.
	if ctx.Err() != nil {
		out.Kind = domain.OutcomeCanceled
		out.Err = ctx.Err()
		return out
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		out.Kind = domain.OutcomeOtherFailure
		out.Err = fmt.Errorf("attempt timed out after %s: %w", r.attemptTimeout, runCtx.Err())
		return out
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		out.Kind = domain.OutcomeOtherFailure
		out.Err = fmt.Errorf("start %s: %w", cmd.Binary, err)
		return out
	}

	out.Kind = Classify(out.Stderr)
	out.Err = fmt.Errorf("%s exited with code %d", cmd.Binary, exitErr.ExitCode())
	return out
}

var _ port.ProcessRunner = (*Runner)(nil)
