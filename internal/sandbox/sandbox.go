// Package sandbox implements the init role of the executor binary.
//
// Go cannot run code between fork and exec, so ceilings are applied by
// re-executing the executor itself with InitArg: the init role sets its own
// rlimits and then execs the interpreter in place. The limits are therefore
// in force before the first instruction of the untrusted program, and the
// parent's own limits are never touched.
//
// The parent hands the init role a pipe on StatusFD. The init role marks it
// close-on-exec, so a successful exec closes it silently; any failure is
// written to it before exiting with ExitInitFailed.
package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/criyle/go-sandbox/pkg/rlimit"
)

const (
	// InitArg is argv[1] of an init-role invocation.
	InitArg = "__sandbox_init"

	// StatusFD is the descriptor of the status pipe in the init role
	// (the first entry of exec.Cmd.ExtraFiles).
	StatusFD = 3

	// ExitInitFailed is the exit status of an init role that could not exec.
	ExitInitFailed = 125
)

// IsInit reports whether args (usually os.Args) is an init-role invocation.
func IsInit(args []string) bool {
	return len(args) >= 4 && args[1] == InitArg
}

// Argv builds the argument vector that runs program with args under rl.
func Argv(self string, rl []rlimit.RLimit, program string, args ...string) ([]string, error) {
	encoded, err := json.Marshal(rl)
	if err != nil {
		return nil, fmt.Errorf("encode rlimits: %w", err)
	}
	argv := make([]string, 0, 4+len(args))
	argv = append(argv, self, InitArg, string(encoded), program)
	return append(argv, args...), nil
}

// parseArgv is the inverse of Argv, minus the leading self.
func parseArgv(args []string) ([]rlimit.RLimit, []string, error) {
	if len(args) < 4 || args[1] != InitArg {
		return nil, nil, fmt.Errorf("not a sandbox init invocation")
	}
	var rl []rlimit.RLimit
	if err := json.Unmarshal([]byte(args[2]), &rl); err != nil {
		return nil, nil, fmt.Errorf("decode rlimits: %w", err)
	}
	return rl, args[3:], nil
}
