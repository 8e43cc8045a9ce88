package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/gdber/config"
	"github.com/fansqz/gdber/constants"
	e "github.com/fansqz/gdber/error"
	"github.com/fansqz/gdber/gdb"
	"github.com/fansqz/gdber/metrics"
	"github.com/fansqz/gdber/protocol"
	"github.com/fansqz/gdber/source"
	"github.com/fansqz/gdber/utils"
	"github.com/fansqz/gdber/utils/gosync"
)

// defaultMemoryCount 读内存时未指定长度的默认字节数
const defaultMemoryCount = 256

// recordEvent 读协程投递给会话循环的事件
// epoch标识记录来自哪一代调试进程，换进程后旧进程的迟到记录直接丢弃。
type recordEvent struct {
	epoch  uint64
	record gdb.Record
	// exited 调试进程本身退出
	exited  bool
	waitErr error
}

// Session 一个调试会话，对应一个调试进程和一组客户端
// 状态转换只发生在会话循环里，动作协程只做校验和发命令，
// 保证每次逻辑转换只广播一个快照。
type Session struct {
	ID string

	config *config.Config
	spawn  SpawnFunc

	StatusManager *utils.StatusManager
	OutputUtil    *OutputUtil
	Breakpoints   *BreakpointRegistry
	VarObjects    *VarObjectTree
	Memory        *MemoryReader

	broadcaster *Broadcaster

	// actionLock 串行化客户端动作，gdb本身也只能串行处理命令
	actionLock sync.Mutex

	// mutex 保护engine和快照缓存
	mutex     sync.Mutex
	engine    Engine
	execFile  string
	stack     []protocol.StackFrame
	variables []protocol.Variable
	location  *protocol.SourceLocation
	lastFault string

	// epoch 进程代号，每次换进程或杀进程时+1
	epoch uint64

	// functionInfos 静态分析源码得到的函数信息，用于过滤还未声明的局部变量
	functionLock  sync.Mutex
	functionInfos []source.FunctionInfo

	records   chan recordEvent
	closed    chan struct{}
	closeOnce sync.Once

	logLock    sync.Mutex
	logHistory []protocol.Message

	statsLock   sync.Mutex
	statsCancel context.CancelFunc
}

func NewSession(id string, cfg *config.Config, spawn SpawnFunc) *Session {
	s := &Session{
		ID:            id,
		config:        cfg,
		spawn:         spawn,
		StatusManager: utils.NewStatusManager(),
		OutputUtil:    NewOutputUtil(),
		Breakpoints:   NewBreakpointRegistry(),
		VarObjects:    NewVarObjectTree(),
		Memory:        NewMemoryReader(),
		broadcaster:   NewBroadcaster(),
		epoch:         1,
		records:       make(chan recordEvent, 256),
		closed:        make(chan struct{}),
	}
	gosync.Go(context.Background(), s.loop)
	return s
}

// Attach 接入一个客户端通道，补发当前快照、断点和最近的日志
func (s *Session) Attach(channel Channel) {
	s.broadcaster.Add(channel)
	channel.Send(s.snapshotMessage())
	for _, bp := range s.Breakpoints.Snapshot() {
		channel.Send(protocol.NewBreakpointCreatedMessage(bp))
	}
	for _, message := range s.RecentLogs(s.config.Session.LogReplay) {
		channel.Send(message)
	}
}

// Detach 移除一个客户端通道，返回剩余通道数
func (s *Session) Detach(id string) int {
	return s.broadcaster.Remove(id)
}

// SubscriberCount 当前接入的客户端数
func (s *Session) SubscriberCount() int {
	return s.broadcaster.Count()
}

// Close 结束会话，杀掉调试进程并退出会话循环
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	engine := s.takeEngine()
	s.stopStats()
	if engine == nil {
		return nil
	}
	_ = engine.Interrupt()
	return engine.Exit()
}

// HandleAction 处理一个客户端动作，返回的错误只回给发起动作的客户端
func (s *Session) HandleAction(request protocol.Request) error {
	metrics.Actions.WithLabelValues(string(request.Action)).Inc()
	s.actionLock.Lock()
	defer s.actionLock.Unlock()
	switch request.Action {
	case constants.ActionInit:
		var args protocol.InitArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.Init(args)
	case constants.ActionRun:
		var args protocol.RunArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.Run(args.StopAtEntry)
	case constants.ActionContinue:
		return s.Continue()
	case constants.ActionNext:
		return s.Next()
	case constants.ActionStep:
		return s.Step()
	case constants.ActionStop:
		return s.Stop()
	case constants.ActionBreak:
		var args protocol.BreakArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.ToggleBreakpoint(args.Location)
	case constants.ActionRemoveBreakpoint:
		var args protocol.RemoveBreakpointArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.RemoveBreakpoint(args.ID)
	case constants.ActionVarCreate:
		var args protocol.VarCreateArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.VarCreate(args.Expression)
	case constants.ActionVarListChildren:
		var args protocol.VarListChildrenArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.VarListChildren(args.Name)
	case constants.ActionReadMemory:
		var args protocol.ReadMemoryArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.ReadMemory(args.Address, args.Count)
	case constants.ActionGetContext:
		return s.GetContext()
	case constants.ActionInput:
		var args protocol.InputArgs
		if err := unmarshalArgs(request.Args, &args); err != nil {
			return err
		}
		return s.Input(args.Text)
	default:
		return e.ErrUnknownAction
	}
}

// Init 加载可执行文件，重新初始化调试进程
// 新进程完全准备好才替换旧进程，任何一步失败都不影响当前会话状态。
func (s *Session) Init(args protocol.InitArgs) error {
	if !s.StatusManager.Is(constants.StatusReady, constants.StatusExited, constants.StatusStopped) {
		return e.ErrProgramIsRunning
	}
	if args.Executable == "" {
		return e.ErrExecutableNotFound
	}
	if _, err := os.Stat(args.Executable); err != nil {
		return fmt.Errorf("%w: %s", e.ErrExecutableNotFound, args.Executable)
	}

	// holder在新进程安装后才持有真实代号，此前到达的记录带0号被循环丢弃
	holder := new(uint64)
	engine, err := s.spawn(func(record gdb.Record) {
		s.routeRecord(atomic.LoadUint64(holder), record)
	})
	if err != nil {
		logrus.Errorf("[session] spawn debugger fail, session = %s, err = %v", s.ID, err)
		return err
	}

	result, err := engine.SendWithTimeout(s.commandTimeout(), "file-exec-and-symbols", args.Executable)
	if err != nil || result.Class != gdb.ClassDone {
		_ = engine.Exit()
		if err == nil {
			err = errors.New(resultErrorMessage(result))
		}
		logrus.Errorf("[session] load executable fail, session = %s, err = %v", s.ID, err)
		return fmt.Errorf("load executable fail: %w", err)
	}

	// 异步模式下目标运行期间gdb仍然接受命令，老版本不支持时忽略
	if result, err = engine.SendWithTimeout(s.commandTimeout(), "gdb-set", "mi-async", "on"); err != nil || result.Class != gdb.ClassDone {
		logrus.Warnf("[session] enable mi-async fail, session = %s, err = %v", s.ID, err)
	}

	// 替换旧进程
	s.mutex.Lock()
	old := s.engine
	s.engine = engine
	s.execFile = args.Executable
	s.stack, s.variables, s.location, s.lastFault = nil, nil, nil, ""
	epoch := atomic.AddUint64(&s.epoch, 1)
	atomic.StoreUint64(holder, epoch)
	s.mutex.Unlock()

	s.stopStats()
	s.VarObjects.Invalidate()
	s.Memory.Reset()
	if old != nil {
		_ = old.Interrupt()
		_ = old.Exit()
	}

	// 监视调试进程退出
	gosync.Go(context.Background(), func(ctx context.Context) {
		waitErr := engine.Wait()
		s.enqueue(recordEvent{epoch: epoch, exited: true, waitErr: waitErr})
	})

	// 异步做源码静态分析
	s.functionLock.Lock()
	s.functionInfos = nil
	s.functionLock.Unlock()
	if args.Source != "" {
		sourcePath := args.Source
		gosync.Go(context.Background(), func(ctx context.Context) {
			s.parseSourceFile(sourcePath)
		})
	}

	s.replayBreakpoints(engine)

	s.StatusManager.Set(constants.StatusReady)
	s.broadcaster.Broadcast(s.snapshotMessage())
	return nil
}

// Run 开始运行目标程序
func (s *Session) Run(stopAtEntry bool) error {
	if !s.StatusManager.Is(constants.StatusReady) {
		return e.ErrNotReady
	}
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}
	args := []string{}
	if stopAtEntry {
		args = append(args, "--start")
	}
	return engine.SendAsync(s.execResultCallback, "exec-run", args...)
}

// Continue 恢复运行
func (s *Session) Continue() error {
	return s.execControl("exec-continue")
}

// Next 单步跳过
func (s *Session) Next() error {
	return s.execControl("exec-next")
}

// Step 单步进入
func (s *Session) Step() error {
	return s.execControl("exec-step")
}

func (s *Session) execControl(operation string) error {
	if !s.StatusManager.Is(constants.StatusPaused) {
		return e.ErrNotPaused
	}
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}
	return engine.SendAsync(s.execResultCallback, operation)
}

// execResultCallback 执行类命令的结果回调，^running本身不携带信息，只上报错误
func (s *Session) execResultCallback(result gdb.ResultRecord) {
	if result.Class == gdb.ClassError {
		s.reportGdbError(result)
	}
}

// Stop 结束本次调试，杀掉调试进程但保留会话和断点位置
func (s *Session) Stop() error {
	engine := s.takeEngine()
	s.stopStats()
	if engine != nil {
		_ = engine.Interrupt()
		_ = engine.Exit()
	}
	s.VarObjects.Invalidate()
	s.Memory.Reset()
	s.StatusManager.Set(constants.StatusReady)
	s.broadcaster.Broadcast(s.snapshotMessage())
	return nil
}

// ToggleBreakpoint 切换断点：位置上没有断点就插入，已有断点就移除
func (s *Session) ToggleBreakpoint(location string) error {
	file, line, err := parseLocation(location)
	if err != nil {
		return err
	}
	if existing, ok := s.Breakpoints.FindByLocation(file, line); ok {
		s.Breakpoints.Remove(existing.ID)
		if engine := s.currentEngine(); engine != nil {
			_ = engine.SendAsync(func(result gdb.ResultRecord) {}, "break-delete", strconv.Itoa(existing.ID))
		}
		return nil
	}

	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}
	if !s.Breakpoints.BeginPending(file, line) {
		return e.ErrBreakpointPending
	}
	defer s.Breakpoints.EndPending(file, line)

	result, err := engine.SendWithTimeout(s.commandTimeout(), "break-insert", location)
	if err != nil {
		return err
	}
	if result.Class == gdb.ClassError {
		return errors.New(resultErrorMessage(result))
	}
	bp, ok := s.OutputUtil.ParseBreakpoint(result.Payload)
	if !ok {
		return errors.New("breakpoint not confirmed")
	}
	if s.Breakpoints.Add(bp) {
		s.broadcaster.Broadcast(protocol.NewBreakpointCreatedMessage(bp))
	}
	return nil
}

// RemoveBreakpoint 按编号移除断点，移除不广播
func (s *Session) RemoveBreakpoint(id int) error {
	bp, ok := s.Breakpoints.FindByID(id)
	if !ok {
		return e.ErrBreakpointNotFound
	}
	s.Breakpoints.Remove(bp.ID)
	if engine := s.currentEngine(); engine != nil {
		_ = engine.SendAsync(func(result gdb.ResultRecord) {}, "break-delete", strconv.Itoa(bp.ID))
	}
	return nil
}

// VarCreate 创建变量观察对象，同一表达式重复创建只补发缓存结果
func (s *Session) VarCreate(expression string) error {
	if expression == "" {
		return errors.New("expression is empty")
	}
	if cached, ok := s.VarObjects.FindByExpression(expression); ok {
		s.broadcaster.Broadcast(protocol.NewVarCreatedMessage(protocol.VarCreatedPayload(cached)))
		return nil
	}
	if !s.StatusManager.Is(constants.StatusPaused, constants.StatusStopped) {
		return e.ErrNotPaused
	}
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}

	generation := s.VarObjects.Generation()
	result, err := engine.SendWithTimeout(s.commandTimeout(), "var-create", "-", "*", expression)
	if err != nil {
		return err
	}
	if result.Class == gdb.ClassError {
		return errors.New(resultErrorMessage(result))
	}
	info, ok := s.OutputUtil.ParseVarCreate(result.Payload, expression)
	if !ok {
		return errors.New("failed to parse var-create output")
	}
	if !s.VarObjects.AddRoot(generation, info) {
		// 等待响应期间句柄已经整代失效，清理gdb侧的对象，结果不再广播
		_ = engine.SendAsync(func(result gdb.ResultRecord) {}, "var-delete", info.Name)
		return nil
	}
	s.broadcaster.Broadcast(protocol.NewVarCreatedMessage(protocol.VarCreatedPayload(info)))
	return nil
}

// VarListChildren 展开一个变量观察对象
func (s *Session) VarListChildren(name string) error {
	if _, ok := s.VarObjects.FindByName(name); !ok {
		return e.ErrVarObjectNotFound
	}
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}

	generation := s.VarObjects.Generation()
	result, err := engine.SendWithTimeout(s.commandTimeout(), "var-list-children", "--all-values", name)
	if err != nil {
		return err
	}
	if result.Class == gdb.ClassError {
		return errors.New(resultErrorMessage(result))
	}
	children := s.OutputUtil.ParseVarChildren(result.Payload)
	if !s.VarObjects.SetChildren(generation, name, children) {
		return nil
	}
	s.broadcaster.Broadcast(protocol.NewVarChildrenMessage(name, children))
	return nil
}

// ReadMemory 读目标进程内存，count为0时读默认长度
func (s *Session) ReadMemory(address string, count int) error {
	if address == "" {
		return errors.New("address is empty")
	}
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}
	if count <= 0 {
		count = defaultMemoryCount
	}

	seq := s.Memory.Begin()
	result, err := engine.SendWithTimeout(s.commandTimeout(), "data-read-memory-bytes", address, strconv.Itoa(count))
	if err != nil {
		return err
	}
	if result.Class == gdb.ClassError {
		return errors.New(resultErrorMessage(result))
	}
	block, ok := s.OutputUtil.ParseMemory(result.Payload)
	if !ok {
		return errors.New("failed to parse memory output")
	}
	if !s.Memory.Apply(seq, block) {
		// 已经有更新的读请求，旧结果丢弃
		return nil
	}
	s.broadcaster.Broadcast(protocol.NewMemoryReadMessage(block))
	return nil
}

// GetContext 向所有客户端补发当前快照，不触发任何gdb交互
func (s *Session) GetContext() error {
	s.broadcaster.Broadcast(s.snapshotMessage())
	return nil
}

// Input 向目标程序的标准输入写数据
func (s *Session) Input(text string) error {
	engine := s.currentEngine()
	if engine == nil {
		return e.ErrDebuggerNotStarted
	}
	if !strings.HasSuffix(text, "\n") {
		text = text + "\n"
	}
	_, err := engine.Write([]byte(text))
	return err
}

// Status 当前状态
func (s *Session) Status() constants.Status {
	return s.StatusManager.Get()
}

// Fault 最近一次致命信号的描述，没有时为空串
func (s *Session) Fault() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastFault
}

// Location 当前停止位置
func (s *Session) Location() *protocol.SourceLocation {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.location == nil {
		return nil
	}
	location := *s.location
	return &location
}

// StackFrames 当前调用栈快照
func (s *Session) StackFrames() []protocol.StackFrame {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	answer := make([]protocol.StackFrame, len(s.stack))
	copy(answer, s.stack)
	return answer
}

// RecentLogs 最近n条日志事件，n不大于0时返回全部
func (s *Session) RecentLogs(n int) []protocol.Message {
	s.logLock.Lock()
	defer s.logLock.Unlock()
	if n <= 0 || n > len(s.logHistory) {
		n = len(s.logHistory)
	}
	answer := make([]protocol.Message, n)
	copy(answer, s.logHistory[len(s.logHistory)-n:])
	return answer
}

// loop 会话循环，唯一允许转换状态的地方
func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-s.closed:
			return
		case event := <-s.records:
			if event.epoch != atomic.LoadUint64(&s.epoch) {
				continue
			}
			if event.exited {
				s.handleProcessExited(event.waitErr)
				continue
			}
			s.handleRecord(event.epoch, event.record)
		}
	}
}

// routeRecord 读协程的分发入口
// stream记录直接转发不进队列：目标程序可能持续输出大量文本，
// 不能让它反压住会话循环；状态类记录必须按序过队列。
func (s *Session) routeRecord(epoch uint64, record gdb.Record) {
	if stream, ok := record.(gdb.StreamRecord); ok {
		if epoch != atomic.LoadUint64(&s.epoch) {
			return
		}
		s.handleStream(stream)
		return
	}
	s.enqueue(recordEvent{epoch: epoch, record: record})
}

func (s *Session) enqueue(event recordEvent) {
	select {
	case s.records <- event:
	case <-s.closed:
	}
}

func (s *Session) handleRecord(epoch uint64, record gdb.Record) {
	switch r := record.(type) {
	case gdb.ExecAsyncRecord:
		switch r.Class {
		case "running":
			s.handleRunning()
		case "stopped":
			s.handleStopped(epoch, r.Payload)
		}
	case gdb.NotifyAsyncRecord:
		s.handleNotify(r)
	case gdb.StatusAsyncRecord:
		logrus.Debugf("[session] status async, class = %s", r.Class)
	case gdb.ResultRecord:
		// 无token的结果记录只可能是gdb主动上报的错误
		if r.Class == gdb.ClassError {
			s.reportGdbError(r)
		}
	case gdb.StreamRecord:
		s.handleStream(r)
	}
}

func (s *Session) handleStream(stream gdb.StreamRecord) {
	switch stream.Kind {
	case gdb.ConsoleStream, gdb.TargetStream:
		s.broadcaster.Broadcast(protocol.NewConsoleMessage(stream.Text))
	case gdb.LogStream:
		s.logEvent(constants.LogLevelGDB, strings.TrimRight(stream.Text, "\n"))
	}
}

// handleRunning 处理running记录
// 多线程目标恢复运行会产生多条running记录，同一次恢复只广播一次。
func (s *Session) handleRunning() {
	if s.StatusManager.Is(constants.StatusRunning) {
		return
	}
	s.StatusManager.Set(constants.StatusRunning)
	s.VarObjects.Invalidate()
	s.mutex.Lock()
	s.stack, s.variables, s.location = nil, nil, nil
	s.mutex.Unlock()
	s.broadcaster.Broadcast(s.snapshotMessage())
	s.logEvent(constants.LogLevelInfo, "[Running]")
}

func (s *Session) handleStopped(epoch uint64, payload gdb.Value) {
	reason := payload.GetString("reason")
	switch {
	case reason == string(constants.ExitedNormally) ||
		reason == string(constants.Exited) ||
		reason == string(constants.ExitedSignalled):
		s.handleExited(reason, payload)
	case reason == string(constants.SignalReceived) && constants.FatalSignals[payload.GetString("signal-name")]:
		s.handleFault(epoch, payload)
	default:
		s.handlePaused(epoch, reason, payload)
	}
}

// handlePaused 目标程序暂停，同步取一次上下文后广播一个快照
func (s *Session) handlePaused(epoch uint64, reason string, payload gdb.Value) {
	location := s.OutputUtil.ParseFrameLocation(payload)
	s.StatusManager.Set(constants.StatusPaused)
	s.mutex.Lock()
	s.location = location
	s.mutex.Unlock()

	s.fetchContext(epoch)
	if epoch != atomic.LoadUint64(&s.epoch) {
		// 取上下文期间进程被换掉，这次暂停已经没有意义
		return
	}
	s.broadcaster.Broadcast(s.snapshotMessage())

	if reason == "" {
		reason = "stopped"
	}
	text := "[Paused] " + reason
	if location != nil {
		text += fmt.Sprintf(" at %s:%d", location.File, location.Line)
	}
	s.logEvent(constants.LogLevelInfo, text)
}

// handleFault 目标程序收到致命信号，进入Stopped状态但保留现场供检查
func (s *Session) handleFault(epoch uint64, payload gdb.Value) {
	signalName := payload.GetString("signal-name")
	fault := signalName
	if meaning := payload.GetString("signal-meaning"); meaning != "" {
		fault = signalName + ": " + meaning
	}
	location := s.OutputUtil.ParseFrameLocation(payload)

	s.StatusManager.Set(constants.StatusStopped)
	s.mutex.Lock()
	s.location = location
	s.lastFault = fault
	s.mutex.Unlock()

	s.fetchContext(epoch)
	if epoch != atomic.LoadUint64(&s.epoch) {
		return
	}
	s.broadcaster.Broadcast(s.snapshotMessage())

	text := "[Stopped] " + fault
	if location != nil {
		text += fmt.Sprintf(" at %s:%d", location.File, location.Line)
	}
	s.logEvent(constants.LogLevelError, text)
}

// handleExited 目标程序退出，调试进程还活着，保留会话供重新init
func (s *Session) handleExited(reason string, payload gdb.Value) {
	s.stopStats()
	s.VarObjects.Invalidate()
	s.mutex.Lock()
	s.stack, s.variables, s.location = nil, nil, nil
	s.mutex.Unlock()

	s.StatusManager.Set(constants.StatusExited)
	s.broadcaster.Broadcast(s.snapshotMessage())

	text := "[Exited] Reason: " + reason
	if code := payload.GetString("exit-code"); code != "" {
		text += ", exit-code: " + code
	}
	s.logEvent(constants.LogLevelInfo, text)
}

// handleProcessExited 调试进程本身异常退出
// 正常结束的路径都会先换代，走到这里说明gdb是意外死亡。
func (s *Session) handleProcessExited(waitErr error) {
	logrus.Errorf("[session] debugger process exited unexpectedly, session = %s, err = %v", s.ID, waitErr)
	engine := s.takeEngine()
	if engine != nil {
		_ = engine.Exit()
	}
	s.stopStats()
	s.VarObjects.Invalidate()
	s.Memory.Reset()
	s.StatusManager.Set(constants.StatusExited)
	s.broadcaster.Broadcast(s.snapshotMessage())
	s.logEvent(constants.LogLevelError, "[Exited] Reason: debugger terminated unexpectedly")
}

func (s *Session) handleNotify(record gdb.NotifyAsyncRecord) {
	switch record.Class {
	case "breakpoint-created", "breakpoint-modified":
		if bp, ok := s.OutputUtil.ParseBreakpoint(record.Payload); ok {
			if s.Breakpoints.Add(bp) {
				s.broadcaster.Broadcast(protocol.NewBreakpointCreatedMessage(bp))
			}
		}
	case "breakpoint-deleted":
		if id := record.Payload.GetInt("id"); id != 0 {
			s.Breakpoints.Remove(id)
		}
	case "thread-group-started":
		if pid := record.Payload.GetInt("pid"); pid != 0 {
			s.startStats(pid)
		}
	case "thread-group-exited":
		s.stopStats()
	default:
		logrus.Debugf("[session] notify, class = %s", record.Class)
	}
}

// fetchContext 同步获取调用栈和顶层变量，失败时保留空结果
func (s *Session) fetchContext(epoch uint64) {
	engine := s.currentEngine()
	if engine == nil {
		return
	}
	timeout := s.commandTimeout()

	var stack []protocol.StackFrame
	result, err := engine.SendWithTimeout(timeout, "stack-list-frames")
	if err == nil && result.Class == gdb.ClassDone {
		stack = s.OutputUtil.ParseStackFrames(result.Payload)
	} else {
		logrus.Errorf("[session] fetch stack fail, session = %s, err = %v", s.ID, err)
	}

	var variables []protocol.Variable
	result, err = engine.SendWithTimeout(timeout, "stack-list-variables", "--skip-unavailable", "--simple-values")
	if err == nil && result.Class == gdb.ClassDone {
		variables = s.OutputUtil.ParseVariables(result.Payload)
	} else {
		logrus.Errorf("[session] fetch variables fail, session = %s, err = %v", s.ID, err)
	}
	variables = s.filterVariables(stack, variables)

	s.mutex.Lock()
	s.stack = stack
	s.variables = variables
	if s.location == nil && len(stack) > 0 {
		s.location = &protocol.SourceLocation{File: stack[0].File, Line: stack[0].Line, Function: stack[0].Function}
	}
	s.mutex.Unlock()
}

// filterVariables 用静态分析结果过滤掉当前行还未声明的变量
// gdb会把整个函数作用域的变量都列出来，包括声明在当前行之后的。
func (s *Session) filterVariables(stack []protocol.StackFrame, variables []protocol.Variable) []protocol.Variable {
	if len(stack) == 0 || len(variables) == 0 {
		return variables
	}
	s.functionLock.Lock()
	infos := s.functionInfos
	s.functionLock.Unlock()
	if len(infos) == 0 {
		return variables
	}
	names := source.VisibleVariables(infos, stack[0].Function, stack[0].Line)
	if names == nil {
		return variables
	}
	nameSet := hashset.New()
	for _, name := range names {
		nameSet.Add(name)
	}
	answer := make([]protocol.Variable, 0, len(variables))
	for _, v := range variables {
		if nameSet.Contains(v.Name) {
			answer = append(answer, v)
		}
	}
	return answer
}

func (s *Session) parseSourceFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Warnf("[session] read source fail, path = %s, err = %v", path, err)
		return
	}
	infos, err := source.ParseSource(string(data))
	if err != nil {
		logrus.Errorf("[session] parse source fail, path = %s, err = %v", path, err)
		return
	}
	s.functionLock.Lock()
	s.functionInfos = infos
	s.functionLock.Unlock()
}

// replayBreakpoints 重新初始化后按位置恢复已有断点，编号全部重新分配
func (s *Session) replayBreakpoints(engine Engine) {
	snapshot := s.Breakpoints.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	s.Breakpoints.Clear()
	for _, bp := range snapshot {
		location := fmt.Sprintf("%s:%d", bp.File, bp.Line)
		result, err := engine.SendWithTimeout(s.commandTimeout(), "break-insert", location)
		if err != nil || result.Class != gdb.ClassDone {
			logrus.Errorf("[session] restore breakpoint fail, location = %s, err = %v", location, err)
			s.logEvent(constants.LogLevelError, "failed to restore breakpoint at "+location)
			continue
		}
		if restored, ok := s.OutputUtil.ParseBreakpoint(result.Payload); ok && s.Breakpoints.Add(restored) {
			s.broadcaster.Broadcast(protocol.NewBreakpointCreatedMessage(restored))
		}
	}
}

// reportGdbError 广播gdb上报的错误，执行类命令的失败没有发起方，只能广播
func (s *Session) reportGdbError(result gdb.ResultRecord) {
	msg := resultErrorMessage(result)
	s.broadcaster.Broadcast(protocol.NewErrorMessage(msg))
	s.logEvent(constants.LogLevelError, "GDB Error: "+msg)
}

// logEvent 记录并广播一条日志事件
func (s *Session) logEvent(level constants.LogLevel, text string) {
	message := protocol.NewLogEventMessage(level, text, time.Now().UTC().Format(time.RFC3339))
	s.logLock.Lock()
	s.logHistory = append(s.logHistory, message)
	if limit := s.config.Session.LogHistory; limit > 0 && len(s.logHistory) > limit {
		s.logHistory = s.logHistory[len(s.logHistory)-limit:]
	}
	s.logLock.Unlock()
	s.broadcaster.Broadcast(message)
}

func (s *Session) snapshotMessage() protocol.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	payload := protocol.StateUpdatePayload{
		Status:    s.StatusManager.Get(),
		Location:  s.location,
		Stack:     s.stack,
		Variables: s.variables,
	}
	if payload.Stack == nil {
		payload.Stack = []protocol.StackFrame{}
	}
	if payload.Variables == nil {
		payload.Variables = []protocol.Variable{}
	}
	return protocol.NewStateUpdateMessage(payload)
}

func (s *Session) currentEngine() Engine {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.engine
}

// takeEngine 取下当前进程并换代，调用方负责结束进程
func (s *Session) takeEngine() Engine {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	engine := s.engine
	s.engine = nil
	s.stack, s.variables, s.location, s.lastFault = nil, nil, nil, ""
	atomic.AddUint64(&s.epoch, 1)
	return engine
}

func (s *Session) commandTimeout() time.Duration {
	if s.config.GDB.CommandTimeout > 0 {
		return s.config.GDB.CommandTimeout
	}
	return gdb.DefaultTimeout
}

func unmarshalArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func parseLocation(location string) (string, int, error) {
	index := strings.LastIndex(location, ":")
	if index <= 0 || index == len(location)-1 {
		return "", 0, e.ErrInvalidLocation
	}
	line, err := strconv.Atoi(location[index+1:])
	if err != nil || line <= 0 {
		return "", 0, e.ErrInvalidLocation
	}
	return location[:index], line, nil
}

func resultErrorMessage(result gdb.ResultRecord) string {
	msg := result.Payload.GetString("msg")
	if msg == "" {
		msg = "unknown gdb error"
	}
	return msg
}
