package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

// SubmitJobUsecase enqueues an invocation for the worker.
type SubmitJobUsecase struct {
	decoder   *decoder.Decoder
	repo      repository.JobStore
	publisher repository.Publisher
	logger    *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(dec *decoder.Decoder, repo repository.JobStore, pub repository.Publisher, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		decoder:   dec,
		repo:      repo,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the payload, persists a QUEUED job and publishes it.
// Payload errors wrap the decoder's sentinel errors.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, raw []byte) (*domain.Job, error) {
	req, err := uc.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}

	// Generate UUIDv7 (time-ordered)
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.Job{
		JobID:  jobID,
		Code:   req.Code,
		Input:  req.Stdin,
		Status: domain.StatusQueued,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job in database", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.publisher.Publish(ctx, job); err != nil {
		uc.logger.Error("Failed to publish job to queue", zap.Error(err), zap.String("job_id", jobID.String()))
		// The job will never be picked up.
		_ = uc.repo.UpdateStatus(ctx, jobID, domain.StatusInternalError)
		return nil, fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	uc.logger.Info("Job submitted", zap.String("job_id", jobID.String()))
	return job, nil
}

// GetJobUsecase handles fetching job status and results.
type GetJobUsecase struct {
	repo   repository.JobStore
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(repo repository.JobStore, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Execute retrieves a job by its ID.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		uc.logger.Debug("Job lookup failed", zap.String("job_id", id.String()), zap.Error(err))
		return nil, err
	}
	return job, nil
}
