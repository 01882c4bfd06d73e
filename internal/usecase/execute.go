package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/classifier"
	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/metrics"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

// ExecuteUsecase runs one invocation end to end: decode, run under limits,
// classify. It always yields a result document.
type ExecuteUsecase struct {
	decoder *decoder.Decoder
	runner  repository.Runner
	limits  domain.ResourceLimits
	logger  *zap.Logger
}

// NewExecuteUsecase creates a new ExecuteUsecase.
func NewExecuteUsecase(
	dec *decoder.Decoder,
	runner repository.Runner,
	limits domain.ResourceLimits,
	logger *zap.Logger,
) *ExecuteUsecase {
	return &ExecuteUsecase{
		decoder: dec,
		runner:  runner,
		limits:  limits,
		logger:  logger,
	}
}

// Handle decodes a raw invocation payload and executes it.
func (uc *ExecuteUsecase) Handle(ctx context.Context, raw []byte) *domain.ExecutionResult {
	req, err := uc.decoder.Decode(raw)
	if err != nil {
		uc.logger.Debug("Rejected invocation payload", zap.Error(err))
		return classifier.DecodeFailure(err)
	}
	return uc.Execute(ctx, req)
}

// Execute validates and runs an already decoded request. A panic anywhere
// in the run is reported as a system failure instead of escaping.
func (uc *ExecuteUsecase) Execute(ctx context.Context, req *domain.ExecutionRequest) (res *domain.ExecutionResult) {
	if err := uc.decoder.Validate(req); err != nil {
		return classifier.DecodeFailure(err)
	}

	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("Execution panic recovered", zap.Any("panic", r))
			res = classifier.SystemFailure(fmt.Errorf("%v", r))
		}
	}()

	outcome := uc.runner.Run(ctx, req, uc.limits)
	if outcome == nil {
		return classifier.SystemFailure(fmt.Errorf("runner returned no outcome"))
	}
	if outcome.Kind == domain.SpawnFailed {
		metrics.SandboxFailures.Inc()
		uc.logger.Warn("Sandbox failed to launch", zap.Error(outcome.Cause))
	}
	if outcome.MaxRSSBytes > 0 {
		metrics.PeakMemoryBytes.Observe(float64(outcome.MaxRSSBytes))
	}

	res = classifier.Classify(outcome, uc.limits)
	uc.logger.Debug("Execution classified",
		zap.String("kind", outcome.Kind.String()),
		zap.String("status", string(res.Status)),
		zap.Int64("time_ms", res.ExecutionTimeMs),
		zap.Int64("memory_bytes", res.MemoryUsed),
	)
	return res
}
