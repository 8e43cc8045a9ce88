package constants

// Status 调试会话状态
// 一个会话在任意时刻有且仅有一个状态，是所有操作的准入依据。
type Status string

const (
	// StatusReady gdb已就绪（或未启动），目标程序尚未运行
	StatusReady Status = "Ready"
	// StatusRunning 目标程序运行中
	StatusRunning Status = "Running"
	// StatusPaused 目标程序暂停（断点、单步等），可以继续执行
	StatusPaused Status = "Paused"
	// StatusStopped 目标程序因致命信号停止，重新init之前无法单步
	StatusStopped Status = "Stopped"
	// StatusExited 目标程序已退出
	StatusExited Status = "Exited"
)

// ActionType 客户端通过通道下发的操作类型
type ActionType string

const (
	ActionInit             ActionType = "init"
	ActionRun              ActionType = "run"
	ActionContinue         ActionType = "continue"
	ActionNext             ActionType = "next"
	ActionStep             ActionType = "step"
	ActionStop             ActionType = "stop"
	ActionBreak            ActionType = "break"
	ActionRemoveBreakpoint ActionType = "remove_breakpoint"
	ActionVarCreate        ActionType = "var_create"
	ActionVarListChildren  ActionType = "var_list_children"
	ActionReadMemory       ActionType = "read_memory"
	ActionGetContext       ActionType = "get_context"
	ActionInput            ActionType = "input"
)

// MessageType 服务端广播的消息类型
type MessageType string

const (
	StateUpdateMessage       MessageType = "state_update"
	BreakpointCreatedMessage MessageType = "breakpoint_created"
	VarCreatedMessage        MessageType = "var_created"
	VarChildrenMessage       MessageType = "var_children"
	MemoryReadMessage        MessageType = "memory_read"
	LogEventMessage          MessageType = "log_event"
	ConsoleMessage           MessageType = "console"
	ErrorMessage             MessageType = "error"
	ProcStatsMessage         MessageType = "proc_stats"
)

// LogLevel 日志事件级别
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
	// LogLevelGDB gdb内部日志流（&开头的stream记录）
	LogLevelGDB LogLevel = "gdb"
)

// StoppedReasonType gdb上报的停止原因
type StoppedReasonType string

const (
	BreakpointStopped StoppedReasonType = "breakpoint-hit"
	StepStopped       StoppedReasonType = "end-stepping-range"
	FunctionFinished  StoppedReasonType = "function-finished"
	LocationReached   StoppedReasonType = "location-reached"
	SignalReceived    StoppedReasonType = "signal-received"
	ExitedNormally    StoppedReasonType = "exited-normally"
	Exited            StoppedReasonType = "exited"
	ExitedSignalled   StoppedReasonType = "exited-signalled"
)

// FatalSignals 停止后无法继续单步的致命信号，命中后状态置为Stopped
var FatalSignals = map[string]bool{
	"SIGSEGV": true,
	"SIGABRT": true,
	"SIGBUS":  true,
	"SIGFPE":  true,
	"SIGILL":  true,
}
