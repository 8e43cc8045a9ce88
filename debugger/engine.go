package debugger

import (
	"time"

	"github.com/fansqz/gdber/gdb"
)

// Engine 会话驱动的调试进程
// 生产实现是gdb.Gdb，测试中用脚本化的实现替代真实进程。
type Engine interface {
	// Send 同步发送mi命令，使用默认超时
	Send(operation string, args ...string) (gdb.ResultRecord, error)
	// SendWithTimeout 同步发送mi命令
	SendWithTimeout(timeout time.Duration, operation string, args ...string) (gdb.ResultRecord, error)
	// SendAsync 发送mi命令，结果到达时触发回调
	SendAsync(callback gdb.AsyncCallback, operation string, args ...string) error
	// Write 向调试进程的虚拟终端写原始数据，用于目标程序的标准输入
	Write(p []byte) (n int, err error)
	// Interrupt 向调试进程发送SIGINT，打断正在运行的目标程序
	Interrupt() error
	// Pid 调试进程的进程号
	Pid() int
	// Wait 阻塞到调试进程退出
	Wait() error
	// Exit 结束调试进程，可以重复调用
	Exit() error
}

// SpawnFunc 创建一个新的调试进程，异步记录通过onNotification回调
type SpawnFunc func(onNotification gdb.NotificationCallback) (Engine, error)

var _ Engine = (*gdb.Gdb)(nil)
