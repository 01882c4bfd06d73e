//go:build !linux

package sandbox

import (
	"fmt"
	"os"
)

// Main reports that the init role is unavailable and exits.
func Main() {
	if status := os.NewFile(uintptr(StatusFD), "sandbox-status"); status != nil {
		_, _ = fmt.Fprint(status, "sandbox init is only supported on linux")
		_ = status.Close()
	}
	os.Exit(ExitInitFailed)
}
