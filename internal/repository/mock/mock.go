package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
)

// ---- JobRepository mock ----

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository is a test double for repository.JobRepository.
type JobRepository struct {
	mu sync.Mutex

	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error
	SetResultFn    func(ctx context.Context, id uuid.UUID, result *domain.ExecutionResult) error

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
	Results       []ResultUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.ExecutionStatus
}

type ResultUpdate struct {
	ID     uuid.UUID
	Result *domain.ExecutionResult
}

func (m *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *JobRepository) SetResult(ctx context.Context, id uuid.UUID, result *domain.ExecutionResult) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{ID: id, Result: result})
	m.mu.Unlock()
	if m.SetResultFn != nil {
		return m.SetResultFn(ctx, id, result)
	}
	return nil
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID)
	}
	return nil
}

// ---- Runner mock ----

var _ repository.Runner = (*Runner)(nil)

// Runner is a test double for repository.Runner.
type Runner struct {
	mu sync.Mutex

	RunFn func(ctx context.Context, req *domain.ExecutionRequest, lim domain.ResourceLimits) *domain.RunOutcome

	RunCalls []*domain.ExecutionRequest
}

func (m *Runner) Run(ctx context.Context, req *domain.ExecutionRequest, lim domain.ResourceLimits) *domain.RunOutcome {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, req)
	m.mu.Unlock()
	if m.RunFn != nil {
		return m.RunFn(ctx, req, lim)
	}
	return &domain.RunOutcome{
		Kind:    domain.ExitedWithCode,
		Stdout:  []byte("Hello, World!\n"),
		Elapsed: 42 * time.Millisecond,
	}
}

// Calls returns the number of recorded Run calls.
func (m *Runner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RunCalls)
}

// ---- JobStore mock ----

var _ repository.JobStore = (*JobStore)(nil)

// JobStore is an in-memory test double for repository.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job

	// Hook functions for injecting errors
	CreateFn       func(ctx context.Context, job *domain.Job) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (m *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *job
	m.jobs[job.JobID] = &stored
	return nil
}

func (m *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

func (m *JobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = status
	return nil
}

// All returns a snapshot of every stored job.
func (m *JobStore) All() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		snapshot := *j
		out = append(out, &snapshot)
	}
	return out
}

// ---- Publisher mock ----

var _ repository.Publisher = (*Publisher)(nil)

// Publisher is a test double for repository.Publisher.
type Publisher struct {
	mu sync.Mutex

	PublishFn func(ctx context.Context, job *domain.Job) error

	Published []*domain.Job
}

func (m *Publisher) Publish(ctx context.Context, job *domain.Job) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, job)
	return nil
}

func (m *Publisher) Close() error {
	return nil
}
