//go:build integration

package executor

import (
	"context"
	"os/exec"
	"runtime"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/classifier"
	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
)

// ──────────────────────────────────────────────────────
// Integration tests: require python3 on linux
// Run with: go test -tags integration -v ./internal/executor/
// ──────────────────────────────────────────────────────

func newPythonRunner(t *testing.T) *Runner {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("sandbox init requires linux, skipping integration test")
	}
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not found in PATH, skipping integration test")
	}

	logger, _ := zap.NewDevelopment()
	workDir := t.TempDir()
	t.Cleanup(func() { assertNoArtifacts(t, workDir) })

	return NewRunner(Options{
		Interpreter: python,
		FileSuffix:  ".py",
		WorkDir:     workDir,
	}, logger)
}

func pythonLimits(wallSeconds, memoryMB int) domain.ResourceLimits {
	return domain.ResourceLimits{
		WallClockSeconds:  wallSeconds,
		CPUSeconds:        wallSeconds,
		AddressSpaceBytes: uint64(memoryMB) << 20,
		MaxChildProcesses: 4096,
	}
}

func runPython(t *testing.T, r *Runner, code, stdin string, lim domain.ResourceLimits) *domain.RunOutcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return r.Run(ctx, &domain.ExecutionRequest{Code: code, Stdin: stdin}, lim)
}

func TestIntegration_PythonHelloWorld(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "print('Hello, SafeExec!')", "", pythonLimits(5, 128))
	if out.Kind != domain.ExitedWithCode || out.ExitCode != 0 {
		t.Fatalf("expected clean exit, got %s/%d (cause %v, stderr %q)", out.Kind, out.ExitCode, out.Cause, out.Stderr)
	}
	if string(out.Stdout) != "Hello, SafeExec!\n" {
		t.Errorf("expected 'Hello, SafeExec!\\n', got %q", out.Stdout)
	}
	if out.MaxRSSBytes <= 0 {
		t.Errorf("expected a max RSS measurement, got %d", out.MaxRSSBytes)
	}
}

func TestIntegration_PythonStdin(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "name = input()\nprint(f'Hello, {name}!')", "World\n", pythonLimits(5, 128))
	if out.Kind != domain.ExitedWithCode || out.ExitCode != 0 {
		t.Fatalf("expected clean exit, got %s/%d (stderr %q)", out.Kind, out.ExitCode, out.Stderr)
	}
	if string(out.Stdout) != "Hello, World!\n" {
		t.Errorf("expected 'Hello, World!\\n', got %q", out.Stdout)
	}
}

func TestIntegration_PythonBusyLoopTimeout(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "while True: pass", "", pythonLimits(2, 128))
	if out.Kind != domain.TimedOut && !(out.Kind == domain.Killed && out.Signal == syscall.SIGXCPU) {
		t.Fatalf("expected timeout or CPU kill, got %s/%d", out.Kind, out.ExitCode)
	}
	if out.Elapsed > 4*time.Second {
		t.Errorf("elapsed %v is far beyond the 2s ceiling", out.Elapsed)
	}
}

func TestIntegration_PythonSleepTimeout(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "import time\nwhile True: time.sleep(1)", "", pythonLimits(2, 128))
	if out.Kind != domain.TimedOut {
		t.Fatalf("expected TIMEOUT, got %s", out.Kind)
	}
}

func TestIntegration_PythonMemoryLimit(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "x = [0] * (1024 * 1024 * 500)", "", pythonLimits(5, 64))
	if out.Kind == domain.ExitedWithCode && out.ExitCode == 0 {
		t.Fatal("allocation beyond the address-space ceiling must not succeed")
	}
}

func TestIntegration_PythonSelfKillIsNotMemory(t *testing.T) {
	r := newPythonRunner(t)
	lim := pythonLimits(5, 128)

	out := runPython(t, r, "import os, signal\nos.kill(os.getpid(), signal.SIGKILL)", "", lim)
	if out.Kind != domain.Killed || out.Signal != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL, got %s/%s", out.Kind, out.Signal)
	}

	res := classifier.Classify(out, lim)
	if res.Status != domain.StatusRuntimeError || res.Error != "Process terminated by signal: killed" {
		t.Errorf("a small process killed by SIGKILL was classified as %s: %q", res.Status, res.Error)
	}
}

func TestIntegration_PythonRuntimeError(t *testing.T) {
	r := newPythonRunner(t)

	out := runPython(t, r, "raise ValueError('boom')", "", pythonLimits(5, 128))
	if out.Kind != domain.ExitedWithCode || out.ExitCode != 1 {
		t.Fatalf("expected exit 1, got %s/%d", out.Kind, out.ExitCode)
	}
	if len(out.Stderr) == 0 {
		t.Error("expected a traceback on stderr")
	}
}
