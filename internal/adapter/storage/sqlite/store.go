package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/bnema/ytaudio/internal/domain"
	"github.com/bnema/ytaudio/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dbName = "ytaudio.db"

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const insertJob = `
INSERT INTO jobs (id, url, platform, status, category, attempts, duration_ms, file_size, error_message, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *Store) Record(rec *domain.JobRecord) error {
	_, err := s.db.ExecContext(context.Background(), insertJob,
		rec.ID,
		rec.URL,
		rec.Platform,
		string(rec.Status),
		string(rec.Category),
		rec.Attempts,
		rec.DurationMS,
		rec.FileSize,
		rec.ErrorMessage,
		rec.CreatedAt.UnixMilli(),
		rec.CompletedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", rec.ID, err)
	}
	return nil
}

const selectJobColumns = `
SELECT id, url, platform, status, category, attempts, duration_ms, file_size, error_message, created_at, completed_at
FROM jobs`

func (s *Store) Get(id string) (*domain.JobRecord, error) {
	row := s.db.QueryRowContext(context.Background(), selectJobColumns+` WHERE id = ?`, id)
	rec, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) ListRecent(limit int) ([]*domain.JobRecord, error) {
	if limit <= 0 {
		return []*domain.JobRecord{}, nil
	}

	rows, err := s.db.QueryContext(context.Background(),
		selectJobColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	recs := make([]*domain.JobRecord, 0, limit)
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM jobs WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.JobRecord, error) {
	var (
		rec                    domain.JobRecord
		status, category       string
		createdAt, completedAt int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Platform,
		&status,
		&category,
		&rec.Attempts,
		&rec.DurationMS,
		&rec.FileSize,
		&rec.ErrorMessage,
		&createdAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.JobStatus(status)
	rec.Category = domain.Category(category)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.CompletedAt = time.UnixMilli(completedAt).UTC()
	return &rec, nil
}

var _ port.JobHistory = (*Store)(nil)
