//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"golang.org/x/sys/unix"
)

// Main runs the init role described by os.Args and never returns.
func Main() {
	status := os.NewFile(uintptr(StatusFD), "sandbox-status")
	// Without this the untrusted program would inherit the write end.
	unix.CloseOnExec(StatusFD)

	err := execWithLimits(os.Args)

	if status != nil {
		_, _ = fmt.Fprint(status, err.Error())
		_ = status.Close()
	}
	os.Exit(ExitInitFailed)
}

// execWithLimits only returns on failure.
func execWithLimits(args []string) error {
	rl, argv, err := parseArgv(args)
	if err != nil {
		return err
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("resolve interpreter: %w", err)
	}
	env := os.Environ()

	// Limits go last: nothing but exec runs under them.
	if err := applyRlimits(rl); err != nil {
		return err
	}
	if err := unix.Exec(path, argv, env); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

func applyRlimits(rl []rlimit.RLimit) error {
	for _, r := range rl {
		lim := unix.Rlimit{Cur: r.Rlim.Cur, Max: r.Rlim.Max}
		if err := unix.Setrlimit(r.Res, &lim); err != nil {
			return fmt.Errorf("set rlimit %d: %w", r.Res, err)
		}
	}
	return nil
}
