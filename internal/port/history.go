package port

import (
	"time"

	"github.com/bnema/ytaudio/internal/domain"
)

// JobHistory persists summaries of finished jobs.
type JobHistory interface {
	Record(rec *domain.JobRecord) error
	Get(id string) (*domain.JobRecord, error)
	ListRecent(limit int) ([]*domain.JobRecord, error)
	PruneBefore(cutoff time.Time) (int64, error)
}
