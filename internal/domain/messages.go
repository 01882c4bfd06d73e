package domain

import "fmt"

// Error texts of the result document.
const (
	MsgInvalidInput  = "Invalid JSON input"
	MsgNoCode        = "No code provided"
	MsgExecutionErr  = "Execution error: "
	MsgSystemErr     = "System error: "
	MsgTimeout       = "Code execution timed out after %d seconds"
	MsgMemoryLimit   = "Code execution exceeded memory limit of %d MB"
	MsgCPULimit      = "Code execution exceeded CPU time limit of %d seconds"
	MsgSignaled      = "Process terminated by signal: %s"
	MsgNonZeroStatus = "Process exited with code %d"
)

// TimeoutMessage is the error reported when the watchdog fires.
func TimeoutMessage(seconds int) string {
	return fmt.Sprintf(MsgTimeout, seconds)
}
