package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/metrics"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

// JobExecutor runs one queued job. *usecase.ExecuteJobUsecase implements it.
type JobExecutor interface {
	Execute(ctx context.Context, job *domain.Job) (*domain.ExecutionResult, bool, error)
}

var _ JobExecutor = (*usecase.ExecuteJobUsecase)(nil)

// WorkerPool runs queued jobs on a fixed number of goroutines. Each job is
// an independent isolated run; workers share nothing but the channel.
type WorkerPool struct {
	size     int
	jobs     <-chan *domain.JobMessage
	executor JobExecutor
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWorkerPool creates a pool of at least one worker.
func NewWorkerPool(size int, jobs <-chan *domain.JobMessage, executor JobExecutor, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:     max(size, 1),
		jobs:     jobs,
		executor: executor,
		logger:   logger,
	}
}

// Start launches the workers. They stop taking jobs when ctx is done.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))
	p.wg.Add(p.size)
	for id := 0; id < p.size; id++ {
		go p.loop(ctx, p.logger.With(zap.Int("worker_id", id)))
	}
}

// Stop blocks until every worker has settled its current job and exited.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) loop(ctx context.Context, log *zap.Logger) {
	defer p.wg.Done()

	for {
		var msg *domain.JobMessage
		select {
		case <-ctx.Done():
			return
		case m, ok := <-p.jobs:
			if !ok {
				return
			}
			msg = m
		}

		jobLog := log.With(zap.String("job_id", msg.Job.JobID.String()))
		// select picks at random when both are ready.
		if ctx.Err() != nil {
			settle(jobLog, "requeue", msg.Nack(true))
			return
		}
		p.handle(ctx, jobLog, msg)
	}
}

// handle runs one job and acks or nacks its message. A stored result is
// acked whatever the program did. An error dead-letters the message,
// except during shutdown when it is handed back to the queue.
func (p *WorkerPool) handle(ctx context.Context, log *zap.Logger, msg *domain.JobMessage) {
	log.Info("Worker processing job", zap.Int("code_bytes", len(msg.Job.Code)))

	metrics.WorkersActive.Inc()
	start := time.Now()
	result, duplicate, err := p.run(ctx, msg.Job)
	metrics.WorkersActive.Dec()

	switch {
	case err != nil:
		requeue := ctx.Err() != nil
		log.Error("Job execution failed", zap.Error(err), zap.Bool("requeue", requeue))
		observe("error", start)
		settle(log, "nack", msg.Nack(requeue))
	case duplicate:
		log.Debug("Duplicate job skipped")
		settle(log, "ack", msg.Ack())
	default:
		observe(string(result.Status), start)
		settle(log, "ack", msg.Ack())
	}
}

// run turns a panic into an error so the worker keeps consuming.
func (p *WorkerPool) run(ctx context.Context, job *domain.Job) (result *domain.ExecutionResult, duplicate bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.executor.Execute(ctx, job)
}

func observe(outcome string, start time.Time) {
	metrics.ExecutionsTotal.WithLabelValues(outcome).Inc()
	metrics.ExecutionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func settle(log *zap.Logger, action string, err error) {
	if err != nil {
		log.Error("Failed to settle message", zap.String("action", action), zap.Error(err))
	}
}
