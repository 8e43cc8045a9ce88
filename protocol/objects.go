package protocol

// StackFrame 栈帧，level为0表示最内层栈帧
type StackFrame struct {
	Level    int    `json:"level"`
	Address  string `json:"address"`
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Variable 顶层变量，每次暂停时整组替换
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Breakpoint 断点，id由gdb分配，进程生命周期内不复用
type Breakpoint struct {
	ID   int    `json:"id"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// VarObjectInfo 变量对象信息，handle在下一次Running之前有效
type VarObjectInfo struct {
	// Name gdb分配的变量对象句柄
	Name       string `json:"name"`
	Expression string `json:"expression,omitempty"`
	Value      string `json:"value,omitempty"`
	Type       string `json:"type,omitempty"`
	NumChild   int    `json:"numchild"`
}

// MemoryBlock 最近一次内存读取结果，新的读取会整体替换旧结果
type MemoryBlock struct {
	// Address 读取的起始地址（十六进制）
	Address string `json:"address"`
	// Contents 内存内容，两个十六进制字符表示一个字节
	Contents string `json:"contents"`
}

// SourceLocation 当前停止位置
type SourceLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"func"`
}
