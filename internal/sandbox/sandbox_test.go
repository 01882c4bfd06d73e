package sandbox

import (
	"syscall"
	"testing"

	"github.com/criyle/go-sandbox/pkg/rlimit"
)

func TestArgvRoundTrip(t *testing.T) {
	rl := []rlimit.RLimit{
		{Res: syscall.RLIMIT_CPU, Rlim: syscall.Rlimit{Cur: 5, Max: 6}},
		{Res: syscall.RLIMIT_AS, Rlim: syscall.Rlimit{Cur: 128 << 20, Max: 128 << 20}},
	}

	argv, err := Argv("/proc/self/exe", rl, "python3", "/tmp/code.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsInit(argv) {
		t.Fatalf("expected init invocation, got %v", argv)
	}
	if argv[0] != "/proc/self/exe" || argv[1] != InitArg {
		t.Errorf("unexpected prefix: %v", argv[:2])
	}

	gotRL, cmd, err := parseArgv(argv)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(gotRL) != len(rl) {
		t.Fatalf("rlimits: got %d, want %d", len(gotRL), len(rl))
	}
	for i := range rl {
		if gotRL[i] != rl[i] {
			t.Errorf("rlimit %d: got %+v, want %+v", i, gotRL[i], rl[i])
		}
	}
	if len(cmd) != 2 || cmd[0] != "python3" || cmd[1] != "/tmp/code.py" {
		t.Errorf("command: got %v", cmd)
	}
}

func TestIsInit(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"plain run", []string{"safeexec"}, false},
		{"subcommand", []string{"safeexec", "worker"}, false},
		{"init without program", []string{"safeexec", InitArg, "[]"}, false},
		{"init", []string{"safeexec", InitArg, "[]", "python3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInit(tt.args); got != tt.want {
				t.Errorf("IsInit(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseArgv_BadLimits(t *testing.T) {
	if _, _, err := parseArgv([]string{"x", InitArg, "{not json", "python3"}); err == nil {
		t.Fatal("expected decode error")
	}
	if _, _, err := parseArgv([]string{"x", "run", "[]", "python3"}); err == nil {
		t.Fatal("expected error for non-init argv")
	}
}
