package protocol

import (
	"encoding/json"

	"github.com/fansqz/gdber/constants"
)

// Request 客户端下发的操作请求，一条消息对应一个操作
type Request struct {
	Action constants.ActionType `json:"action"`
	Args   json.RawMessage      `json:"args"`
}

// InitArgs 初始化调试器
type InitArgs struct {
	// Executable 可执行文件路径
	Executable string `json:"executable"`
	// Source 主源文件路径，可选，用于局部变量的静态分析过滤
	Source string `json:"source,omitempty"`
}

// RunArgs 启动目标程序
type RunArgs struct {
	// StopAtEntry 是否停在程序入口
	StopAtEntry bool `json:"stop_at_entry"`
}

// BreakArgs 切换断点，location格式为file:line
type BreakArgs struct {
	Location string `json:"location"`
}

// RemoveBreakpointArgs 按id移除断点
type RemoveBreakpointArgs struct {
	ID int `json:"id"`
}

// VarCreateArgs 为表达式创建变量对象
type VarCreateArgs struct {
	Expression string `json:"expression"`
}

// VarListChildrenArgs 列出变量对象的子节点
type VarListChildrenArgs struct {
	// Name 变量对象句柄
	Name string `json:"name"`
}

// ReadMemoryArgs 读取原始内存
type ReadMemoryArgs struct {
	// Address 十六进制地址、&expr取地址或任意gdb可解析的表达式
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// InputArgs 向目标程序的标准输入写数据
type InputArgs struct {
	Text string `json:"text"`
}
