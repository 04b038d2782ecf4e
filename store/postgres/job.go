package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/researchsync"
	"github.com/xraph/researchsync/job"
)

const jobColumns = `id, platform, market_id, market_title, status, phase,
	progress, report, error, cached, created_at, updated_at`

// StartJob inserts a pending job for key. The new row becomes the key's
// canonical job.
func (s *Store) StartJob(ctx context.Context, key job.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	jobID := s.newID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO research_jobs (id, platform, market_id, status)
		VALUES ($1, $2, $3, $4)`,
		jobID, string(key.Platform), key.MarketID, string(job.StatusPending),
	)
	if err != nil {
		return "", fmt.Errorf("%w: researchsync/postgres: start job: %w", researchsync.ErrTransport, err)
	}
	return jobID, nil
}

// FetchSnapshot returns the job with the given id.
func (s *Store) FetchSnapshot(ctx context.Context, jobID string) (*job.ResearchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM research_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", researchsync.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: researchsync/postgres: fetch job: %w", researchsync.ErrTransport, err)
	}
	return j, nil
}

// FetchSnapshotByKey returns the most recently created job for key, or nil
// when the key has none.
func (s *Store) FetchSnapshotByKey(ctx context.Context, key job.Key) (*job.ResearchJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM research_jobs
		WHERE platform = $1 AND market_id = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		string(key.Platform), key.MarketID,
	)
	j, err := scanJob(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: researchsync/postgres: fetch job by key: %w", researchsync.ErrTransport, err)
	}
	return j, nil
}

// SaveJob inserts or replaces a job row. Producers use it to record status,
// progress and results.
func (s *Store) SaveJob(ctx context.Context, j *job.ResearchJob) error {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
	progress, err := jsonArg(j.Progress)
	if err != nil {
		return err
	}
	report, err := jsonArg(j.Report)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO research_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			market_title = EXCLUDED.market_title,
			status       = EXCLUDED.status,
			phase        = EXCLUDED.phase,
			progress     = EXCLUDED.progress,
			report       = EXCLUDED.report,
			error        = EXCLUDED.error,
			cached       = EXCLUDED.cached,
			updated_at   = EXCLUDED.updated_at`,
		j.ID, string(j.Platform), j.MarketID, j.MarketTitle, string(j.Status), j.Phase,
		progress, report, j.Error, j.Cached, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("researchsync/postgres: save job %s: %w", j.ID, err)
	}
	return nil
}

func scanJob(row pgx.Row) (*job.ResearchJob, error) {
	var (
		j                job.ResearchJob
		platform, status string
		progress, report []byte
	)
	err := row.Scan(
		&j.ID, &platform, &j.MarketID, &j.MarketTitle, &status, &j.Phase,
		&progress, &report, &j.Error, &j.Cached, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Platform = job.Platform(platform)
	j.Status = job.Status(status)
	if err := j.Normalize(); err != nil {
		return nil, err
	}
	if len(progress) > 0 {
		j.Progress = &job.Progress{}
		if err := json.Unmarshal(progress, j.Progress); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
	}
	if len(report) > 0 {
		j.Report = &job.Report{}
		if err := json.Unmarshal(report, j.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &j, nil
}

// jsonArg encodes v for a JSONB column; nil pointers become NULL.
func jsonArg[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
