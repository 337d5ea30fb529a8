package domain

// OutcomeKind is the normalized result of one extractor invocation.
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "success"
	OutcomeRateLimited        OutcomeKind = "rate_limited"
	OutcomeContentUnavailable OutcomeKind = "content_unavailable"
	OutcomeOtherFailure       OutcomeKind = "other_failure"
	OutcomeCanceled           OutcomeKind = "canceled"
)

// Outcome is produced by the process runner for a single attempt.
type Outcome struct {
	Kind   OutcomeKind
	Stdout string
	Stderr string
	Err    error
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Command is a fully resolved, non-shell argument vector. Args never
// includes Binary.
type Command struct {
	Binary     string
	Args       []string
	OutputPath string
}

// Argv returns a copy of the full argument vector including the binary.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Binary)
	return append(argv, c.Args...)
}
