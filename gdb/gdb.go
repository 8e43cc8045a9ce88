package gdb

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	e "github.com/fansqz/gdber/error"
	"github.com/fansqz/gdber/metrics"
	"github.com/fansqz/gdber/utils/gosync"
)

const (
	// DefaultTimeout 同步命令的默认超时时间
	DefaultTimeout = 10 * time.Second
	// exitGrace -gdb-exit之后等待进程退出的时间，超时直接kill
	exitGrace = 500 * time.Millisecond
)

// defaultArgs gdb启动参数
// 关闭debuginfod避免交互式提问，mi2是兼容性最好的机器接口版本。
var defaultArgs = []string{"--nx", "--quiet", "--interpreter=mi2", "--eval-command=set debuginfod enabled off"}

// NotificationCallback 异步记录回调
// 在读协程上按到达顺序依次调用，回调内不能阻塞，否则会卡住gdb输出的消费。
type NotificationCallback func(record Record)

// AsyncCallback 命令结果回调
type AsyncCallback func(result ResultRecord)

// Gdb 一个通过PTY驱动的gdb进程
// 每个实例持有唯一的读协程，token单调递增，结果记录按token对应到
// 等待中的命令，不依赖到达顺序。
type Gdb struct {
	cmd *exec.Cmd
	ptm *os.File

	onNotification NotificationCallback

	// writeLock 串行化命令写入
	writeLock sync.Mutex

	// token 命令序号，只能用atomic访问
	token int64

	pendingLock sync.Mutex
	pending     map[int64]AsyncCallback

	exitOnce sync.Once

	// processDone 进程退出后关闭
	processDone chan struct{}
	waitErr     error
}

// New 启动gdb进程并挂到虚拟终端上
// onNotification接收所有异步记录和流记录，结果记录通过Send系列方法返回。
func New(onNotification NotificationCallback, gdbPath string, extraArgs ...string) (*Gdb, error) {
	if gdbPath == "" {
		gdbPath = "gdb"
	}
	g := &Gdb{
		onNotification: onNotification,
		pending:        make(map[int64]AsyncCallback),
		processDone:    make(chan struct{}),
	}

	cmd := exec.Command(gdbPath, append(append([]string{}, defaultArgs...), extraArgs...)...)
	ptm, err := pty.Start(cmd)
	if err != nil {
		logrus.Errorf("[gdb] start fail, err = %v", err)
		return nil, err
	}
	if _, err = term.MakeRaw(int(ptm.Fd())); err != nil {
		logrus.Errorf("[gdb] make raw fail, err = %v", err)
		_ = ptm.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	g.cmd = cmd
	g.ptm = ptm

	gosync.Go(context.Background(), func(ctx context.Context) {
		g.waitErr = cmd.Wait()
		close(g.processDone)
	})
	gosync.Go(context.Background(), func(ctx context.Context) {
		g.readLoop()
	})
	return g, nil
}

// readLoop 唯一的输出消费者，逐行解析并分发记录
func (g *Gdb) readLoop() {
	reader := bufio.NewReader(g.ptm)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			g.dispatch(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return
		}
	}
}

func (g *Gdb) dispatch(line string) {
	record := ParseRecord(line)
	if record == nil {
		return
	}
	metrics.GdbRecords.WithLabelValues(recordKind(record)).Inc()
	if result, ok := record.(ResultRecord); ok && result.Token != 0 {
		g.pendingLock.Lock()
		callback, exist := g.pending[result.Token]
		delete(g.pending, result.Token)
		g.pendingLock.Unlock()
		if exist && callback != nil {
			callback(result)
		} else {
			// 等待者已经超时放弃，迟到的结果直接丢弃
			logrus.Debugf("[gdb] drop stale result, token = %d, class = %s", result.Token, result.Class)
		}
		return
	}
	g.onNotification(record)
}

// SendAsync 发送命令，结果到达时触发回调
func (g *Gdb) SendAsync(callback AsyncCallback, operation string, args ...string) error {
	_, err := g.send(callback, operation, args...)
	return err
}

// Send 同步发送命令，使用默认超时
func (g *Gdb) Send(operation string, args ...string) (ResultRecord, error) {
	return g.SendWithTimeout(DefaultTimeout, operation, args...)
}

// SendWithTimeout 同步发送命令并等待结果
// 超时后对应的pending项会被移除，迟到的结果被丢弃而不是错误地应用。
func (g *Gdb) SendWithTimeout(timeout time.Duration, operation string, args ...string) (ResultRecord, error) {
	channel := make(chan ResultRecord, 1)
	token, err := g.send(func(result ResultRecord) {
		channel <- result
	}, operation, args...)
	if err != nil {
		return ResultRecord{}, err
	}
	select {
	case result := <-channel:
		return result, nil
	case <-time.After(timeout):
		g.pendingLock.Lock()
		delete(g.pending, token)
		g.pendingLock.Unlock()
		metrics.CommandTimeouts.Inc()
		logrus.Errorf("[gdb] command timeout, operation = %s", operation)
		return ResultRecord{}, e.ErrCommandTimeout
	case <-g.processDone:
		return ResultRecord{}, e.ErrDebuggerIsClosed
	}
}

func (g *Gdb) send(callback AsyncCallback, operation string, args ...string) (int64, error) {
	if g.isDone() {
		return 0, e.ErrDebuggerIsClosed
	}
	token := atomic.AddInt64(&g.token, 1)
	line := EncodeCommand(token, operation, args...)

	g.pendingLock.Lock()
	g.pending[token] = callback
	g.pendingLock.Unlock()

	g.writeLock.Lock()
	_, err := g.ptm.Write([]byte(line + "\n"))
	g.writeLock.Unlock()
	if err != nil {
		g.pendingLock.Lock()
		delete(g.pending, token)
		g.pendingLock.Unlock()
		return 0, err
	}
	return token, nil
}

// Write 向虚拟终端写原始数据，用于目标程序的标准输入
func (g *Gdb) Write(p []byte) (int, error) {
	if g.isDone() {
		return 0, e.ErrDebuggerIsClosed
	}
	g.writeLock.Lock()
	defer g.writeLock.Unlock()
	return g.ptm.Write(p)
}

// Interrupt 向gdb发送SIGINT，gdb会暂停目标程序
func (g *Gdb) Interrupt() error {
	if g.isDone() {
		return nil
	}
	return g.cmd.Process.Signal(syscall.SIGINT)
}

// Pid gdb进程id
func (g *Gdb) Pid() int {
	return g.cmd.Process.Pid
}

// Wait 阻塞到gdb进程退出
func (g *Gdb) Wait() error {
	<-g.processDone
	return g.waitErr
}

// Done 进程退出后关闭的通道
func (g *Gdb) Done() <-chan struct{} {
	return g.processDone
}

func (g *Gdb) isDone() bool {
	select {
	case <-g.processDone:
		return true
	default:
		return false
	}
}

// Exit 终止gdb进程并释放虚拟终端，可以重复调用
// 先尝试-gdb-exit优雅退出，超过宽限期后对整个进程组SIGKILL，
// 无论gdb处于什么状态都不会留下僵尸进程。
func (g *Gdb) Exit() error {
	g.exitOnce.Do(func() {
		if !g.isDone() {
			g.writeLock.Lock()
			_, _ = g.ptm.Write([]byte(EncodeCommand(0, "gdb-exit") + "\n"))
			g.writeLock.Unlock()

			select {
			case <-g.processDone:
			case <-time.After(exitGrace):
				// gdb作为会话首进程，对-pid即可连带目标程序一起结束
				_ = syscall.Kill(-g.cmd.Process.Pid, syscall.SIGKILL)
				<-g.processDone
			}
		}
		_ = g.ptm.Close()
	})
	return nil
}
