package protocol

import "github.com/fansqz/gdber/constants"

// Message 服务端推送给客户端的消息信封
type Message struct {
	Type    constants.MessageType `json:"type"`
	Payload interface{}           `json:"payload"`
}

// StateUpdatePayload 状态快照
// 每次逻辑上的状态转换只会广播一次快照，即使gdb为一次转换输出多条底层记录。
type StateUpdatePayload struct {
	Status    constants.Status `json:"status"`
	Location  *SourceLocation  `json:"location"`
	Stack     []StackFrame     `json:"stack"`
	Variables []Variable       `json:"variables"`
}

// BreakpointCreatedPayload 断点创建成功
type BreakpointCreatedPayload struct {
	ID   int    `json:"id"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// VarCreatedPayload var_create的响应
type VarCreatedPayload struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Value      string `json:"value"`
	Type       string `json:"type"`
	NumChild   int    `json:"numchild"`
}

// VarChildrenPayload var_list_children的响应
type VarChildrenPayload struct {
	// Name 父变量对象句柄
	Name     string          `json:"name"`
	Children []VarObjectInfo `json:"children"`
}

// LogEventPayload 日志事件
type LogEventPayload struct {
	Level constants.LogLevel `json:"level"`
	Text  string             `json:"text"`
	// Timestamp UTC ISO格式时间戳
	Timestamp string `json:"timestamp"`
}

// ProcStatsPayload 被调试进程的资源占用
type ProcStatsPayload struct {
	Pid        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

func NewStateUpdateMessage(payload StateUpdatePayload) Message {
	return Message{Type: constants.StateUpdateMessage, Payload: payload}
}

func NewBreakpointCreatedMessage(b Breakpoint) Message {
	return Message{Type: constants.BreakpointCreatedMessage, Payload: BreakpointCreatedPayload(b)}
}

func NewVarCreatedMessage(payload VarCreatedPayload) Message {
	return Message{Type: constants.VarCreatedMessage, Payload: payload}
}

func NewVarChildrenMessage(name string, children []VarObjectInfo) Message {
	return Message{Type: constants.VarChildrenMessage, Payload: VarChildrenPayload{Name: name, Children: children}}
}

func NewMemoryReadMessage(block MemoryBlock) Message {
	return Message{Type: constants.MemoryReadMessage, Payload: block}
}

func NewLogEventMessage(level constants.LogLevel, text string, timestamp string) Message {
	return Message{Type: constants.LogEventMessage, Payload: LogEventPayload{Level: level, Text: text, Timestamp: timestamp}}
}

// NewConsoleMessage console消息的payload是原始文本
func NewConsoleMessage(text string) Message {
	return Message{Type: constants.ConsoleMessage, Payload: text}
}

// NewErrorMessage error消息的payload是错误描述文本
func NewErrorMessage(text string) Message {
	return Message{Type: constants.ErrorMessage, Payload: text}
}

func NewProcStatsMessage(payload ProcStatsPayload) Message {
	return Message{Type: constants.ProcStatsMessage, Payload: payload}
}
