package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

//go:embed schema.sql
var schema string

var (
	_ repository.JobRepository = (*JobRepo)(nil)
	_ repository.JobStore      = (*JobRepo)(nil)
)

// JobRepo persists jobs and their results in the execution_jobs table.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresJobRepository creates a new PostgreSQL-backed job repository.
func NewPostgresJobRepository(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Migrate creates the execution_jobs table if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO execution_jobs (job_id, code, input, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query, job.JobID, job.Code, job.Input, job.Status, now, now)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT job_id, code, input, status, success, output, error,
		       execution_time_ms, memory_used_bytes, created_at, updated_at
		FROM execution_jobs
		WHERE job_id = $1`

	var (
		job     domain.Job
		success *bool
		output  *string
		errText *string
		timeMs  *int64
		memory  *int64
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.JobID, &job.Code, &job.Input, &job.Status,
		&success, &output, &errText, &timeMs, &memory,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}

	if success != nil {
		job.Result = &domain.ExecutionResult{
			Success:         *success,
			Output:          deref(output),
			Error:           deref(errText),
			ExecutionTimeMs: derefInt(timeMs),
			MemoryUsed:      derefInt(memory),
			Status:          job.Status,
		}
	}
	return &job, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error {
	query := `UPDATE execution_jobs SET status = $1, updated_at = $2 WHERE job_id = $3`
	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) SetResult(ctx context.Context, id uuid.UUID, result *domain.ExecutionResult) error {
	query := `
		UPDATE execution_jobs
		SET success = $1, output = $2, error = $3, status = $4,
		    execution_time_ms = $5, memory_used_bytes = $6, updated_at = $7
		WHERE job_id = $8`

	tag, err := r.pool.Exec(ctx, query,
		result.Success, result.Output, result.Error, result.Status,
		result.ExecutionTimeMs, result.MemoryUsed, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: set result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
