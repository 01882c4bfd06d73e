package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/decoder"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository/mock"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

func newSubmitUsecase(repo *mock.JobStore, pub *mock.Publisher) *usecase.SubmitJobUsecase {
	return usecase.NewSubmitJobUsecase(decoder.New(100), repo, pub, zap.NewNop())
}

func TestSubmitJob_Success(t *testing.T) {
	repo := mock.NewJobStore()
	pub := &mock.Publisher{}

	job, err := newSubmitUsecase(repo, pub).Execute(context.Background(), []byte(`{"code": "print(input())", "input": "hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.JobID == uuid.Nil {
		t.Error("expected a job ID")
	}
	if job.JobID.Version() != 7 {
		t.Errorf("expected a UUIDv7, got version %d", job.JobID.Version())
	}
	if job.Status != domain.StatusQueued {
		t.Errorf("expected status QUEUED, got %s", job.Status)
	}

	jobs := repo.All()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job in repo, got %d", len(jobs))
	}
	if jobs[0].Code != "print(input())" || jobs[0].Input != "hi" {
		t.Errorf("unexpected stored job: %+v", jobs[0])
	}
	if len(pub.Published) != 1 || pub.Published[0].JobID != job.JobID {
		t.Fatalf("expected the job to be published, got %+v", pub.Published)
	}
}

func TestSubmitJob_InvalidPayload(t *testing.T) {
	repo := mock.NewJobStore()
	pub := &mock.Publisher{}
	uc := newSubmitUsecase(repo, pub)

	if _, err := uc.Execute(context.Background(), []byte(`{"input": "x"}`)); !errors.Is(err, domain.ErrMissingCode) {
		t.Errorf("expected ErrMissingCode, got %v", err)
	}
	if _, err := uc.Execute(context.Background(), []byte(`nope`)); !errors.Is(err, domain.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if len(repo.All()) != 0 || len(pub.Published) != 0 {
		t.Error("rejected payloads must not be stored or published")
	}
}

func TestSubmitJob_CreateError(t *testing.T) {
	repo := mock.NewJobStore()
	repo.CreateFn = func(ctx context.Context, job *domain.Job) error {
		return errors.New("connection refused")
	}
	pub := &mock.Publisher{}

	if _, err := newSubmitUsecase(repo, pub).Execute(context.Background(), []byte(`{"code": "x"}`)); err == nil {
		t.Fatal("expected error")
	}
	if len(pub.Published) != 0 {
		t.Error("nothing may be published when the job was not stored")
	}
}

func TestSubmitJob_PublishError(t *testing.T) {
	repo := mock.NewJobStore()
	pub := &mock.Publisher{
		PublishFn: func(ctx context.Context, job *domain.Job) error {
			return errors.New("channel closed")
		},
	}

	_, err := newSubmitUsecase(repo, pub).Execute(context.Background(), []byte(`{"code": "x"}`))
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	jobs := repo.All()
	if len(jobs) != 1 || jobs[0].Status != domain.StatusInternalError {
		t.Errorf("expected the stored job to be marked INTERNAL_ERROR, got %+v", jobs)
	}
}

func TestGetJob(t *testing.T) {
	repo := mock.NewJobStore()
	job := &domain.Job{JobID: uuid.New(), Code: "x", Status: domain.StatusSuccess}
	_ = repo.Create(context.Background(), job)

	uc := usecase.NewGetJobUsecase(repo, zap.NewNop())

	got, err := uc.Execute(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.JobID != job.JobID {
		t.Errorf("job ID mismatch")
	}

	if _, err := uc.Execute(context.Background(), uuid.New()); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
