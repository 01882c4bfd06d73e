package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// JobRepository defines the interface for updating job state in the database.
type JobRepository interface {
	// UpdateStatus atomically updates the status of a job.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error

	// SetResult stores the execution result for a completed job.
	SetResult(ctx context.Context, id uuid.UUID, result *domain.ExecutionResult) error
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a job.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, jobID uuid.UUID) error
}

// Runner executes one request in isolation. Implementations never return
// nil and report host failures inside the outcome.
type Runner interface {
	Run(ctx context.Context, req *domain.ExecutionRequest, lim domain.ResourceLimits) *domain.RunOutcome
}

// JobStore defines the producer side of job persistence.
// Implementations must be safe for concurrent use.
type JobStore interface {
	// Create inserts a new job into the data store.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID, with its result once stored.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus atomically updates the status of a job.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error
}

// Publisher defines the interface for publishing jobs to the message broker.
type Publisher interface {
	Publish(ctx context.Context, job *domain.Job) error
	Close() error
}
