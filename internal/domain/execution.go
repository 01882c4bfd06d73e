package domain

import (
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the classified outcome of one run. It is used for
// metrics and persistence and is not part of the result document.
type ExecutionStatus string

const (
	StatusQueued              ExecutionStatus = "QUEUED"
	StatusRunning             ExecutionStatus = "RUNNING"
	StatusSuccess             ExecutionStatus = "SUCCESS"
	StatusRuntimeError        ExecutionStatus = "RUNTIME_ERROR"
	StatusTimeout             ExecutionStatus = "TIMEOUT"
	StatusMemoryLimitExceeded ExecutionStatus = "MEMORY_LIMIT_EXCEEDED"
	StatusInvalidInput        ExecutionStatus = "INVALID_INPUT"
	StatusInternalError       ExecutionStatus = "INTERNAL_ERROR"
)

// IsTerminal returns true if the status represents a final state.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusRuntimeError, StatusTimeout,
		StatusMemoryLimitExceeded, StatusInvalidInput, StatusInternalError:
		return true
	}
	return false
}

// ExecutionRequest is a decoded job: the code to run and what to feed it.
type ExecutionRequest struct {
	Code  string
	Stdin string
}

// ResourceLimits are the ceilings applied to every run. Built once at
// start-up and never mutated.
type ResourceLimits struct {
	WallClockSeconds  int
	CPUSeconds        int
	AddressSpaceBytes uint64
	MaxChildProcesses int
	CoreDumpEnabled   bool
}

// WallClock returns the watchdog deadline as a duration.
func (l ResourceLimits) WallClock() time.Duration {
	return time.Duration(l.WallClockSeconds) * time.Second
}

// MemoryLimitMB returns the address-space ceiling in whole megabytes.
func (l ResourceLimits) MemoryLimitMB() uint64 {
	return l.AddressSpaceBytes / (1024 * 1024)
}

// ExitKind tells how a run ended.
type ExitKind int

const (
	ExitedWithCode ExitKind = iota
	Killed
	TimedOut
	SpawnFailed
)

func (k ExitKind) String() string {
	switch k {
	case ExitedWithCode:
		return "exited"
	case Killed:
		return "killed"
	case TimedOut:
		return "timed_out"
	case SpawnFailed:
		return "spawn_failed"
	}
	return "unknown"
}

// RunOutcome is the raw observation of one execution attempt.
type RunOutcome struct {
	Kind     ExitKind
	ExitCode int
	Signal   syscall.Signal
	Cause    error // set when Kind == SpawnFailed

	Stdout []byte
	Stderr []byte

	Elapsed     time.Duration
	MaxRSSBytes int64
}

// ExecutionResult is the document returned to the caller, one per request.
type ExecutionResult struct {
	Success         bool            `json:"success"`
	Output          string          `json:"output"`
	Error           string          `json:"error"`
	ExecutionTimeMs int64           `json:"execution_time"`
	MemoryUsed      int64           `json:"memory_used"`
	Status          ExecutionStatus `json:"-"`
}

// Job is a queued execution. Result is set once the job reached a
// terminal status.
type Job struct {
	JobID     uuid.UUID        `json:"job_id"`
	Code      string           `json:"code"`
	Input     string           `json:"input"`
	Status    ExecutionStatus  `json:"status"`
	Result    *ExecutionResult `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobMessage couples a job with the broker callbacks that settle it.
type JobMessage struct {
	Job  *Job
	Ack  func() error
	Nack func(requeue bool) error
}
