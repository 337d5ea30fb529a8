package service

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/ytaudio/internal/domain"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, cmd domain.Command) domain.Outcome {
	args := m.Called(ctx, cmd)
	return args.Get(0).(domain.Outcome)
}

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, path string) (*domain.ProbeResult, error) {
	args := m.Called(ctx, path)
	result, _ := args.Get(0).(*domain.ProbeResult)
	return result, args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Record(rec *domain.JobRecord) error {
	return m.Called(rec).Error(0)
}

func (m *mockHistory) Get(id string) (*domain.JobRecord, error) {
	args := m.Called(id)
	rec, _ := args.Get(0).(*domain.JobRecord)
	return rec, args.Error(1)
}

func (m *mockHistory) ListRecent(limit int) ([]*domain.JobRecord, error) {
	args := m.Called(limit)
	recs, _ := args.Get(0).([]*domain.JobRecord)
	return recs, args.Error(1)
}

func (m *mockHistory) PruneBefore(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// sleepRecorder replaces real waits so retry tests run instantly.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

// writeOutput returns a mock Run hook that drops data at the command's
// output path, standing in for the extractor writing its file.
func writeOutput(data []byte) func(mock.Arguments) {
	return func(args mock.Arguments) {
		cmd := args.Get(1).(domain.Command)
		if err := os.WriteFile(cmd.OutputPath, data, 0o600); err != nil {
			panic(err)
		}
	}
}
