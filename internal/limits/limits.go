// Package limits derives the resource ceilings for a run from configuration
// and renders them as setrlimit(2) requests.
package limits

import (
	"syscall"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"golang.org/x/sys/unix"

	"github.com/vikashkrdeveloper/SafeExec/internal/config"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// cpuHardGrace is added to the CPU hard limit so the kernel delivers
// SIGXCPU at the soft limit instead of an indistinguishable SIGKILL.
const cpuHardGrace = 1

// Resolve derives the ceilings for every run. Values were validated by
// config.Load, so Resolve never fails; zero fields fall back to defaults.
func Resolve(cfg config.SandboxConfig) domain.ResourceLimits {
	wall := cfg.TimeoutSeconds
	if wall <= 0 {
		wall = config.DefaultTimeoutSeconds
	}
	cpu := cfg.CPUSeconds
	if cpu <= 0 {
		cpu = wall
	}
	memMB := cfg.MemoryLimitMB
	if memMB <= 0 {
		memMB = config.DefaultMemoryLimitMB
	}
	procs := cfg.MaxProcesses
	if procs <= 0 {
		procs = config.DefaultMaxProcesses
	}

	return domain.ResourceLimits{
		WallClockSeconds:  wall,
		CPUSeconds:        cpu,
		AddressSpaceBytes: uint64(memMB) * 1024 * 1024,
		MaxChildProcesses: procs,
		CoreDumpEnabled:   false,
	}
}

// RLimits renders l as the rlimits the sandbox init applies to itself
// right before exec.
func RLimits(l domain.ResourceLimits) []rlimit.RLimit {
	r := rlimit.RLimits{
		CPU:          uint64(l.CPUSeconds),
		CPUHard:      uint64(l.CPUSeconds + cpuHardGrace),
		AddressSpace: l.AddressSpaceBytes,
		DisableCore:  !l.CoreDumpEnabled,
	}
	out := r.PrepareRLimit()

	if l.MaxChildProcesses > 0 {
		n := uint64(l.MaxChildProcesses)
		out = append(out, rlimit.RLimit{
			Res: unix.RLIMIT_NPROC,
			Rlim: syscall.Rlimit{
				Cur: n,
				Max: n,
			},
		})
	}
	return out
}
