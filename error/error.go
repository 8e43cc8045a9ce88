package error

import "errors"

var (
	ErrNotReady            = errors.New("The program is not ready")
	ErrNotPaused           = errors.New("The program is not paused")
	ErrProgramIsRunning    = errors.New("The program is running")
	ErrDebuggerNotStarted  = errors.New("debugger is not started")
	ErrDebuggerIsClosed    = errors.New("debugger is closed")
	ErrBreakpointNotFound  = errors.New("breakpoint not found")
	ErrBreakpointPending   = errors.New("breakpoint is pending confirmation")
	ErrVarObjectNotFound   = errors.New("variable object not found")
	ErrVarObjectExists     = errors.New("variable object already exists")
	ErrCommandTimeout      = errors.New("gdb command timed out")
	ErrSessionClosed       = errors.New("session is closed")
	ErrInvalidLocation     = errors.New("invalid breakpoint location, expect file:line")
	ErrUnknownAction       = errors.New("unknown action")
	ErrExecutableNotFound  = errors.New("executable not found")
	ErrAnalyzeNotConfigure = errors.New("analyze service is not configured")
)
