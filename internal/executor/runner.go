package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/domain"
	"github.com/vikashkrdeveloper/SafeExec/internal/limits"
	"github.com/vikashkrdeveloper/SafeExec/internal/repository"
	"github.com/vikashkrdeveloper/SafeExec/internal/sandbox"
)

const (
	// defaultMaxOutputBytes caps stdout/stderr to prevent memory exhaustion.
	defaultMaxOutputBytes = 64 * 1024

	// waitDelay bounds how long Wait keeps draining pipes after the child
	// is gone, e.g. when a descendant still holds stdout open.
	waitDelay = 250 * time.Millisecond

	// maxStatusBytes caps what the init role may report.
	maxStatusBytes = 4096
)

// childEnv is the complete environment of the untrusted program.
var childEnv = []string{
	"PATH=/usr/local/bin:/usr/bin:/bin",
	"PYTHONPATH=",
	"PYTHONDONTWRITEBYTECODE=1",
}

// Options configures a Runner.
type Options struct {
	// SelfPath is the executor binary re-executed in the sandbox init role.
	// Empty means os.Executable().
	SelfPath       string
	Interpreter    string
	FileSuffix     string
	WorkDir        string
	MaxOutputBytes int
}

var _ repository.Runner = (*Runner)(nil)

// Runner executes one request as an isolated, resource-limited child process.
type Runner struct {
	selfPath    string
	interpreter string
	fileSuffix  string
	workDir     string
	maxOutput   int
	logger      *zap.Logger
}

// NewRunner creates a new Runner.
func NewRunner(opts Options, logger *zap.Logger) *Runner {
	r := &Runner{
		selfPath:    opts.SelfPath,
		interpreter: opts.Interpreter,
		fileSuffix:  opts.FileSuffix,
		workDir:     opts.WorkDir,
		maxOutput:   opts.MaxOutputBytes,
		logger:      logger,
	}
	if r.interpreter == "" {
		r.interpreter = "python3"
	}
	if r.workDir == "" {
		r.workDir = os.TempDir()
	}
	if r.maxOutput <= 0 {
		r.maxOutput = defaultMaxOutputBytes
	}
	return r
}

// Run executes req under lim and reports what happened. It never returns an
// error: host failures are reported as a SpawnFailed outcome. The code file
// and every process of the run are gone when Run returns.
func (r *Runner) Run(ctx context.Context, req *domain.ExecutionRequest, lim domain.ResourceLimits) *domain.RunOutcome {
	runID := uuid.New()
	start := time.Now()
	logger := r.logger.With(zap.String("run_id", runID.String()))

	artifact, err := r.materialize(runID, req.Code)
	if err != nil {
		return spawnFailed(start, fmt.Errorf("create code file: %w", err))
	}
	defer func() {
		if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove code file", zap.String("path", artifact), zap.Error(err))
		}
	}()

	self := r.selfPath
	if self == "" {
		if self, err = os.Executable(); err != nil {
			return spawnFailed(start, fmt.Errorf("locate executor binary: %w", err))
		}
	}
	argv, err := sandbox.Argv(self, limits.RLimits(lim), r.interpreter, artifact)
	if err != nil {
		return spawnFailed(start, err)
	}

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return spawnFailed(start, fmt.Errorf("create status pipe: %w", err))
	}
	defer statusR.Close()

	runCtx, cancel := context.WithTimeout(ctx, lim.WallClock())
	defer cancel()

	var stdout, stderr limitedBuffer
	stdout.limit = r.maxOutput
	stderr.limit = r.maxOutput

	// The deadline is the only thing allowed to kill the child, and it
	// always takes the whole process group.
	var cancelled atomic.Bool
	cmd := exec.CommandContext(runCtx, self)
	cmd.Args = argv
	cmd.Env = childEnv
	cmd.Dir = r.workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.ExtraFiles = []*os.File{statusW}
	cmd.Stdin = strings.NewReader(req.Stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		cancelled.Store(true)
		return killGroup(cmd.Process.Pid)
	}

	start = time.Now()
	if err := cmd.Start(); err != nil {
		statusW.Close()
		return spawnFailed(start, fmt.Errorf("start sandbox: %w", err))
	}
	statusW.Close()
	pid := cmd.Process.Pid
	defer func() {
		if err := killGroup(pid); err != nil {
			logger.Warn("Failed to kill process group", zap.Int("pgid", pid), zap.Error(err))
		}
	}()

	// EOF means the interpreter was exec'd with every ceiling in place.
	initErr, _ := io.ReadAll(io.LimitReader(statusR, maxStatusBytes))
	if len(initErr) > 0 {
		_ = cmd.Wait()
		return spawnFailed(start, errors.New(string(initErr)))
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	outcome := &domain.RunOutcome{
		Stdout:      truncateOutput(stdout.Bytes(), stdout.truncated, r.maxOutput),
		Stderr:      truncateOutput(stderr.Bytes(), stderr.truncated, r.maxOutput),
		Elapsed:     elapsed,
		MaxRSSBytes: maxRSSBytes(cmd.ProcessState),
	}

	switch {
	case cancelled.Load() && ctx.Err() != nil:
		// The caller gave up, not the watchdog.
		outcome.Kind = domain.SpawnFailed
		outcome.Cause = fmt.Errorf("run aborted: %w", ctx.Err())
	case cancelled.Load():
		outcome.Kind = domain.TimedOut
		outcome.Stdout = nil
		outcome.Stderr = []byte(domain.TimeoutMessage(lim.WallClockSeconds))
	case cmd.ProcessState != nil:
		ws, _ := cmd.ProcessState.Sys().(syscall.WaitStatus)
		if ws.Signaled() {
			outcome.Kind = domain.Killed
			outcome.Signal = ws.Signal()
			outcome.ExitCode = -1
		} else {
			outcome.Kind = domain.ExitedWithCode
			outcome.ExitCode = ws.ExitStatus()
		}
	default:
		outcome.Kind = domain.SpawnFailed
		outcome.Cause = fmt.Errorf("wait: %w", waitErr)
	}

	logger.Debug("Sandboxed run completed",
		zap.Stringer("kind", outcome.Kind),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Stringer("signal", outcome.Signal),
		zap.Duration("elapsed", elapsed),
		zap.Int64("max_rss_bytes", outcome.MaxRSSBytes),
		zap.NamedError("wait_error", waitErr),
	)

	return outcome
}

// materialize writes code to a fresh, uniquely named file in the work dir.
func (r *Runner) materialize(runID uuid.UUID, code string) (string, error) {
	f, err := os.CreateTemp(r.workDir, fmt.Sprintf("safeexec-%s-*%s", runID.String(), r.fileSuffix))
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func spawnFailed(start time.Time, cause error) *domain.RunOutcome {
	return &domain.RunOutcome{
		Kind:     domain.SpawnFailed,
		ExitCode: -1,
		Cause:    cause,
		Elapsed:  time.Since(start),
	}
}

// killGroup SIGKILLs the process group led by pid. A group that is already
// gone is not an error.
func killGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// ──────────────────────────────────────────────────────
// Helper types and functions
// ──────────────────────────────────────────────────────

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.truncated {
		return len(p), nil // discard silently
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		lb.truncated = true
		lb.buf.Write(p[:remaining])
		return len(p), nil
	}

	return lb.buf.Write(p)
}

func (lb *limitedBuffer) Bytes() []byte {
	return lb.buf.Bytes()
}

// truncateOutput appends a truncation notice if the output was cut off.
func truncateOutput(b []byte, wasTruncated bool, limit int) []byte {
	if !wasTruncated {
		return b
	}
	return append(b, fmt.Sprintf("\n... output truncated (%d KB limit) ...", limit/1024)...)
}
