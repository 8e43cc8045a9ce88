package gdb

import "strconv"

// RecordClass 结果记录的类别
type RecordClass string

const (
	ClassDone      RecordClass = "done"
	ClassRunning   RecordClass = "running"
	ClassConnected RecordClass = "connected"
	ClassError     RecordClass = "error"
	ClassExit      RecordClass = "exit"
)

// StreamKind stream记录的种类，对应MI输出的前缀
type StreamKind string

const (
	// ConsoleStream ~开头，gdb控制台输出
	ConsoleStream StreamKind = "console"
	// TargetStream @开头，目标程序输出
	TargetStream StreamKind = "target"
	// LogStream &开头，gdb内部日志
	LogStream StreamKind = "log"
)

// Record MI输出记录，封闭的标签联合类型
// 每个类别对应一个变体，解析时就完成类型化，后续代码不再接触原始map。
type Record interface {
	record()
}

// ResultRecord 结果记录（^），与之前发出的命令通过token对应
type ResultRecord struct {
	Token   int64
	Class   RecordClass
	Payload Value
}

// ExecAsyncRecord 执行状态异步记录（*），running/stopped
type ExecAsyncRecord struct {
	Token   int64
	Class   string
	Payload Value
}

// StatusAsyncRecord 进度类异步记录（+），本系统只记日志
type StatusAsyncRecord struct {
	Token   int64
	Class   string
	Payload Value
}

// NotifyAsyncRecord 带外通知记录（=），断点创建、线程启动等
type NotifyAsyncRecord struct {
	Token   int64
	Class   string
	Payload Value
}

// StreamRecord 文本流记录（~ @ &）
type StreamRecord struct {
	Kind StreamKind
	Text string
}

func (ResultRecord) record()      {}
func (ExecAsyncRecord) record()   {}
func (StatusAsyncRecord) record() {}
func (NotifyAsyncRecord) record() {}
func (StreamRecord) record()      {}

func recordKind(r Record) string {
	switch r.(type) {
	case ResultRecord:
		return "result"
	case ExecAsyncRecord:
		return "exec"
	case StatusAsyncRecord:
		return "status"
	case NotifyAsyncRecord:
		return "notify"
	case StreamRecord:
		return "stream"
	}
	return "unknown"
}

// ValueKind MI值的种类
type ValueKind int

const (
	// ConstValue c-string常量
	ConstValue ValueKind = iota
	// TupleValue {key=value,...}
	TupleValue
	// ListValue [value,...]或[key=value,...]
	ListValue
)

// Field tuple中的一个键值对
type Field struct {
	Name  string
	Value Value
}

// Value 解析后的MI值树
// tuple使用字段切片而不是map，保留顺序并容忍MI偶尔出现的重复键。
type Value struct {
	Kind   ValueKind
	Const  string
	Fields []Field
	Items  []Value
}

// GetValue 读取tuple中指定键的值，重复键取第一个
// 列表元素形如key=value时会被包装成单字段tuple，同样适用本方法。
func (v Value) GetValue(key string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// GetString 读取tuple中指定键的字符串值，不存在或非常量时返回空串
func (v Value) GetString(key string) string {
	value, ok := v.GetValue(key)
	if !ok {
		return ""
	}
	return value.Const
}

// GetInt 读取tuple中指定键的整数值
func (v Value) GetInt(key string) int {
	n, _ := strconv.Atoi(v.GetString(key))
	return n
}

// GetList 读取tuple中指定键的列表
func (v Value) GetList(key string) []Value {
	value, ok := v.GetValue(key)
	if !ok {
		return nil
	}
	return value.Items
}

// Has 检查tuple中是否存在某个键
func (v Value) Has(key string) bool {
	_, ok := v.GetValue(key)
	return ok
}
