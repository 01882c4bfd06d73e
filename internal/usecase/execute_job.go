package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

// finalizeTimeout bounds the bookkeeping done after a run: storing the
// result, releasing the lock, or marking the job failed.
const finalizeTimeout = 10 * time.Second

// ExecuteJobUsecase orchestrates the queued job pipeline around ExecuteUsecase.
type ExecuteJobUsecase struct {
	repo       repository.JobRepository
	idempotent repository.IdempotencyStore
	execute    *ExecuteUsecase
	logger     *zap.Logger
}

// NewExecuteJobUsecase creates a new ExecuteJobUsecase.
func NewExecuteJobUsecase(
	repo repository.JobRepository,
	idempotent repository.IdempotencyStore,
	execute *ExecuteUsecase,
	logger *zap.Logger,
) *ExecuteJobUsecase {
	return &ExecuteJobUsecase{
		repo:       repo,
		idempotent: idempotent,
		execute:    execute,
		logger:     logger,
	}
}

// Execute processes a single job: idempotency check → status update → isolated run → store result.
// Returns (result, isDuplicate, error). result is nil for duplicates and infrastructure errors.
func (uc *ExecuteJobUsecase) Execute(ctx context.Context, job *domain.Job) (*domain.ExecutionResult, bool, error) {
	jobID := zap.String("job_id", job.JobID.String())

	// Step 1: Idempotency check
	acquired, err := uc.idempotent.AcquireLock(ctx, job.JobID)
	if err != nil {
		uc.logger.Error("Failed to acquire idempotency lock", zap.Error(err), jobID)
		return nil, false, err
	}
	if !acquired {
		uc.logger.Info("Duplicate message detected, skipping", jobID)
		return nil, true, nil
	}

	// Step 2: Mark as running
	if err := uc.repo.UpdateStatus(ctx, job.JobID, domain.StatusRunning); err != nil {
		uc.logger.Error("Failed to update job status", zap.Error(err), jobID)
		return nil, false, err
	}

	// Once RUNNING, the job is carried to a stored status even when ctx is
	// cancelled by shutdown. The run's own wall clock bounds it.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.execute.limits.WallClock()+finalizeTimeout)
	defer cancel()

	// Step 3: Run. Failures of the user program are results, not errors.
	result := uc.execute.Execute(jobCtx, &domain.ExecutionRequest{
		Code:  job.Code,
		Stdin: job.Input,
	})

	// Step 4: Store result
	if err := uc.repo.SetResult(jobCtx, job.JobID, result); err != nil {
		uc.logger.Error("Failed to store result", zap.Error(err), jobID)
		uc.markFailed(ctx, job.JobID)
		return nil, false, err
	}

	// Step 5: Release idempotency lock (set TTL for eventual cleanup)
	if err := uc.idempotent.ReleaseLock(jobCtx, job.JobID); err != nil {
		uc.logger.Warn("Failed to release idempotency lock", zap.Error(err), jobID)
	}

	uc.logger.Info("Job executed",
		jobID,
		zap.String("status", string(result.Status)),
		zap.Int64("time_ms", result.ExecutionTimeMs),
	)

	return result, false, nil
}

// markFailed moves a RUNNING job whose result could not be stored to
// INTERNAL_ERROR, on a context of its own. Best effort.
func (uc *ExecuteJobUsecase) markFailed(ctx context.Context, id uuid.UUID) {
	fresh, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := uc.repo.UpdateStatus(fresh, id, domain.StatusInternalError); err != nil {
		uc.logger.Error("Failed to mark job as failed", zap.Error(err), zap.String("job_id", id.String()))
	}
}
