package classifier

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

var testLimits = domain.ResourceLimits{
	WallClockSeconds:  2,
	CPUSeconds:        2,
	AddressSpaceBytes: 128 << 20,
	MaxChildProcesses: 10,
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		outcome     domain.RunOutcome
		wantSuccess bool
		wantOutput  string
		wantError   string
		wantStatus  domain.ExecutionStatus
	}{
		{
			name:        "clean exit trims stdout",
			outcome:     domain.RunOutcome{Kind: domain.ExitedWithCode, Stdout: []byte("  hi\n\n"), Stderr: []byte("warning\n")},
			wantSuccess: true,
			wantOutput:  "hi",
			wantStatus:  domain.StatusSuccess,
		},
		{
			name:        "clean exit with no output",
			outcome:     domain.RunOutcome{Kind: domain.ExitedWithCode},
			wantSuccess: true,
			wantStatus:  domain.StatusSuccess,
		},
		{
			name:       "timeout",
			outcome:    domain.RunOutcome{Kind: domain.TimedOut, Stdout: []byte("partial")},
			wantError:  "Code execution timed out after 2 seconds",
			wantStatus: domain.StatusTimeout,
		},
		{
			name:       "oom kill near the ceiling",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGKILL, ExitCode: -1, MaxRSSBytes: 120 << 20},
			wantError:  "Code execution exceeded memory limit of 128 MB",
			wantStatus: domain.StatusMemoryLimitExceeded,
		},
		{
			name:       "sigkill with low rss is not a memory breach",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGKILL, ExitCode: -1, MaxRSSBytes: 19 << 20},
			wantError:  "Process terminated by signal: killed",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "sigkill with unmeasured rss",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGKILL, ExitCode: -1},
			wantError:  "Process terminated by signal: killed",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "cpu limit without stderr",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGXCPU, ExitCode: -1},
			wantError:  "Code execution exceeded CPU time limit of 2 seconds",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "segfault with stderr",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGSEGV, Stderr: []byte("Fatal Python error: Segmentation fault\n")},
			wantError:  "Fatal Python error: Segmentation fault",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "signal without stderr",
			outcome:    domain.RunOutcome{Kind: domain.Killed, Signal: syscall.SIGSEGV},
			wantError:  fmt.Sprintf("Process terminated by signal: %s", syscall.SIGSEGV),
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "non-zero exit reports trimmed stderr",
			outcome:    domain.RunOutcome{Kind: domain.ExitedWithCode, ExitCode: 1, Stdout: []byte("ignored"), Stderr: []byte("Traceback...\nMemoryError\n")},
			wantError:  "Traceback...\nMemoryError",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "non-zero exit without stderr",
			outcome:    domain.RunOutcome{Kind: domain.ExitedWithCode, ExitCode: 3, Stderr: []byte(" \n")},
			wantError:  "Process exited with code 3",
			wantStatus: domain.StatusRuntimeError,
		},
		{
			name:       "spawn failure",
			outcome:    domain.RunOutcome{Kind: domain.SpawnFailed, Cause: errors.New("resolve interpreter: not found")},
			wantError:  "Execution error: resolve interpreter: not found",
			wantStatus: domain.StatusInternalError,
		},
		{
			name:       "spawn failure without cause",
			outcome:    domain.RunOutcome{Kind: domain.SpawnFailed},
			wantError:  "Execution error: unknown failure",
			wantStatus: domain.StatusInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(&tt.outcome, testLimits)
			if res.Success != tt.wantSuccess {
				t.Errorf("success: got %v, want %v", res.Success, tt.wantSuccess)
			}
			if res.Output != tt.wantOutput {
				t.Errorf("output: got %q, want %q", res.Output, tt.wantOutput)
			}
			if res.Error != tt.wantError {
				t.Errorf("error: got %q, want %q", res.Error, tt.wantError)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("status: got %s, want %s", res.Status, tt.wantStatus)
			}
			// error is non-empty exactly when the run failed
			if res.Success == (res.Error != "") {
				t.Errorf("success/error invariant broken: %+v", res)
			}
		})
	}
}

func TestClassify_Timing(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    int64
	}{
		{0, 0},
		{-time.Second, 0},
		{1499 * time.Microsecond, 1},
		{1500 * time.Microsecond, 2},
		{2*time.Second + 400*time.Microsecond, 2000},
	}
	for _, tt := range tests {
		res := Classify(&domain.RunOutcome{Kind: domain.TimedOut, Elapsed: tt.elapsed}, testLimits)
		if res.ExecutionTimeMs != tt.want {
			t.Errorf("elapsed %v: got %dms, want %dms", tt.elapsed, res.ExecutionTimeMs, tt.want)
		}
	}
}

func TestClassify_MemoryUsed(t *testing.T) {
	res := Classify(&domain.RunOutcome{Kind: domain.ExitedWithCode, MaxRSSBytes: 9 << 20}, testLimits)
	if res.MemoryUsed != 9<<20 {
		t.Errorf("memory used: got %d", res.MemoryUsed)
	}
	res = Classify(&domain.RunOutcome{Kind: domain.ExitedWithCode}, testLimits)
	if res.MemoryUsed != 0 {
		t.Errorf("unmeasured memory must be 0, got %d", res.MemoryUsed)
	}
}

func TestDecodeFailure(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrMissingCode, "No code provided"},
		{domain.ErrMalformed, "Invalid JSON input"},
		{fmt.Errorf("%w: unexpected EOF", domain.ErrMalformed), "Invalid JSON input"},
		{fmt.Errorf("%w of %d bytes", domain.ErrCodeTooLarge, 100000), "Code exceeds maximum length of 100000 bytes"},
	}
	for _, tt := range tests {
		res := DecodeFailure(tt.err)
		if res.Success {
			t.Error("decode failures never succeed")
		}
		if res.Error != tt.want {
			t.Errorf("%v: got %q, want %q", tt.err, res.Error, tt.want)
		}
		if res.ExecutionTimeMs != 0 {
			t.Errorf("no time may be attributed to execution, got %d", res.ExecutionTimeMs)
		}
		if res.Status != domain.StatusInvalidInput {
			t.Errorf("status: got %s", res.Status)
		}
	}
}

func TestSystemFailure(t *testing.T) {
	res := SystemFailure(errors.New("config: EXECUTION_TIMEOUT must be positive, got 0"))
	if res.Success {
		t.Error("system failures never succeed")
	}
	if res.Error != "System error: config: EXECUTION_TIMEOUT must be positive, got 0" {
		t.Errorf("error: got %q", res.Error)
	}
}
