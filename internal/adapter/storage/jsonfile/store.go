package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/port"
)

const fileName = "jobs.json"

type Store struct {
	mu   sync.RWMutex
	path string
	jobs map[string]*domain.JobRecord
}

func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, fileName)

	store := &Store{
		path: path,
		jobs: make(map[string]*domain.JobRecord),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var jobs []*domain.JobRecord
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}

	for _, j := range jobs {
		s.jobs[j.ID] = j
	}

	return nil
}

// save writes every record to a temp file and renames it over the old one.
// Callers hold the write lock.
func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// sorted returns records newest first.
func (s *Store) sorted() []*domain.JobRecord {
	jobs := make([]*domain.JobRecord, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID > jobs[b].ID
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs
}

func (s *Store) Record(rec *domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.jobs[rec.ID] = &cp
	return s.save()
}

func (s *Store) Get(id string) (*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	cp := *j
	return &cp, nil
}

func (s *Store) ListRecent(limit int) ([]*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []*domain.JobRecord{}, nil
	}

	jobs := s.sorted()
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}

	out := make([]*domain.JobRecord, len(jobs))
	for i, j := range jobs {
		cp := *j
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, s.save()
}

var _ port.JobHistory = (*Store)(nil)
