// Package classifier maps raw run outcomes and decode failures onto the
// result document.
package classifier

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// Classify turns one run outcome into the result document. Rules apply in
// priority order: clean exit, watchdog, memory kill, other failures, host
// failures.
func Classify(outcome *domain.RunOutcome, lim domain.ResourceLimits) *domain.ExecutionResult {
	res := &domain.ExecutionResult{
		ExecutionTimeMs: roundMillis(outcome.Elapsed),
		MemoryUsed:      outcome.MaxRSSBytes,
	}

	switch outcome.Kind {
	case domain.ExitedWithCode:
		if outcome.ExitCode == 0 {
			res.Success = true
			res.Output = strings.TrimSpace(string(outcome.Stdout))
			res.Status = domain.StatusSuccess
			return res
		}
		res.Status = domain.StatusRuntimeError
		res.Error = stderrOr(outcome.Stderr, fmt.Sprintf(domain.MsgNonZeroStatus, outcome.ExitCode))

	case domain.TimedOut:
		res.Status = domain.StatusTimeout
		res.Error = domain.TimeoutMessage(lim.WallClockSeconds)

	case domain.Killed:
		if memoryKill(outcome, lim) {
			res.Status = domain.StatusMemoryLimitExceeded
			res.Error = fmt.Sprintf(domain.MsgMemoryLimit, lim.MemoryLimitMB())
			break
		}
		res.Status = domain.StatusRuntimeError
		res.Error = stderrOr(outcome.Stderr, signalMessage(outcome.Signal, lim))

	case domain.SpawnFailed:
		res.Status = domain.StatusInternalError
		cause := "unknown failure"
		if outcome.Cause != nil {
			cause = outcome.Cause.Error()
		}
		res.Error = domain.MsgExecutionErr + cause

	default:
		res.Status = domain.StatusInternalError
		res.Error = domain.MsgExecutionErr + "unrecognized outcome " + outcome.Kind.String()
	}

	return res
}

// DecodeFailure is the result for a payload rejected before any spawn.
func DecodeFailure(err error) *domain.ExecutionResult {
	res := &domain.ExecutionResult{Status: domain.StatusInvalidInput}
	switch {
	case errors.Is(err, domain.ErrMissingCode):
		res.Error = domain.MsgNoCode
	case errors.Is(err, domain.ErrCodeTooLarge):
		res.Error = capitalize(err.Error())
	default:
		res.Error = domain.MsgInvalidInput
	}
	return res
}

// SystemFailure is the result for failures outside the run itself, such as
// unusable configuration or a recovered panic.
func SystemFailure(err error) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Status: domain.StatusInternalError,
		Error:  domain.MsgSystemErr + err.Error(),
	}
}

// memoryEvidenceRatio is how close peak RSS must come to the address-space
// ceiling before an unexplained SIGKILL is pinned on memory.
const memoryEvidenceRatio = 0.75

// memoryKill reports whether a kill can be pinned on the memory ceiling.
// Address-space exhaustion normally surfaces inside the child as an
// allocation failure, so only a SIGKILL the watchdog did not send, from a
// process whose peak RSS reached the ceiling's neighbourhood, counts.
// Anything else, including an unmeasured RSS, takes the generic path.
func memoryKill(outcome *domain.RunOutcome, lim domain.ResourceLimits) bool {
	if outcome.Signal != syscall.SIGKILL || outcome.MaxRSSBytes <= 0 || lim.AddressSpaceBytes == 0 {
		return false
	}
	return float64(outcome.MaxRSSBytes) >= memoryEvidenceRatio*float64(lim.AddressSpaceBytes)
}

func signalMessage(sig syscall.Signal, lim domain.ResourceLimits) string {
	if sig == syscall.SIGXCPU {
		return fmt.Sprintf(domain.MsgCPULimit, lim.CPUSeconds)
	}
	return fmt.Sprintf(domain.MsgSignaled, sig.String())
}

func stderrOr(stderr []byte, fallback string) string {
	if s := strings.TrimSpace(string(stderr)); s != "" {
		return s
	}
	return fallback
}

// roundMillis rounds d to the nearest millisecond.
func roundMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond).Milliseconds()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
