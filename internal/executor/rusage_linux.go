//go:build linux

package executor

import (
	"os"
	"syscall"
)

// maxRSSBytes returns the child's peak resident set size. Linux reports
// ru_maxrss in kilobytes.
func maxRSSBytes(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || usage == nil {
		return 0
	}
	return int64(usage.Maxrss) * 1024
}
