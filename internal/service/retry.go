package service

import (
	"context"
	"time"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
	"github.com/bnema/ytaudio/internal/port"
)

// RetryPolicy bounds how often and how patiently a job retries the
// extractor.
type RetryPolicy struct {
	MaxAttempts int
	// BaseDelay drives the rate-limit curve: BaseDelay * 2^attempts.
	BaseDelay time.Duration
	// ShortDelay is the fixed wait after any other retryable failure.
	ShortDelay time.Duration
	MaxDelay   time.Duration
	Jitter     bool
	// RetryUnavailable retries content-unavailable outcomes with ShortDelay.
	// When false the first one is terminal.
	RetryUnavailable bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      3,
		BaseDelay:        2 * time.Second,
		ShortDelay:       time.Second,
		MaxDelay:         time.Minute,
		RetryUnavailable: true,
	}
}

// RetryResult is the terminal state of one Execute call.
type RetryResult struct {
	Outcome   domain.Outcome
	Attempts  int
	Waited    time.Duration
	Exhausted bool
}

// Retrier runs a command until it succeeds, fails terminally, or uses up
// its attempt budget.
type Retrier struct {
	runner  port.ProcessRunner
	policy  RetryPolicy
	backoff *Backoff
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewRetrier(runner port.ProcessRunner, policy RetryPolicy, m *metrics.Metrics) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	backoff := NewBackoff(policy.BaseDelay, policy.MaxDelay, 2.0)
	backoff.Jitter = policy.Jitter

	return &Retrier{
		runner:  runner,
		policy:  policy,
		backoff: backoff,
		metrics: m,
		sleep:   sleepContext,
	}
}

func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Execute drives the attempt loop. It never waits after the final attempt
// and returns as soon as ctx is done.
func (r *Retrier) Execute(ctx context.Context, cmd domain.Command) RetryResult {
	var res RetryResult

	for {
		out := r.runner.Run(ctx, cmd)
		res.Attempts++
		res.Outcome = out
		r.metrics.ObserveAttempt(string(out.Kind))

		switch out.Kind {
		case domain.OutcomeSuccess, domain.OutcomeCanceled:
			return res
		case domain.OutcomeContentUnavailable:
			if !r.policy.RetryUnavailable {
				return res
			}
		}

		if res.Attempts >= r.policy.MaxAttempts {
			res.Exhausted = true
			return res
		}

		delay := r.delay(out.Kind, res.Attempts)
		logger.Info.Printf("attempt %d/%d %s, retrying in %s", res.Attempts, r.policy.MaxAttempts, out.Kind, delay)

		if err := r.sleep(ctx, delay); err != nil {
			res.Outcome = domain.Outcome{
				Kind:   domain.OutcomeCanceled,
				Stdout: out.Stdout,
				Stderr: out.Stderr,
				Err:    err,
			}
			return res
		}
		res.Waited += delay
		r.metrics.ObserveBackoff(delay)
	}
}

func (r *Retrier) delay(kind domain.OutcomeKind, attempts int) time.Duration {
	if kind == domain.OutcomeRateLimited {
		return r.backoff.Duration(attempts)
	}
	return r.policy.ShortDelay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
