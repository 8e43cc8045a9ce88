package debugger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/hashset"

	"github.com/fansqz/gdber/protocol"
)

// BreakpointRegistry 会话内断点的权威登记表
// 只登记gdb已经确认的断点，插入中的位置用pending标记防止并发重复插入。
type BreakpointRegistry struct {
	lock sync.Mutex
	// byID id->断点，treemap保证快照按id有序
	byID *treemap.Map
	// pending 正在等待gdb确认的位置
	pending *hashset.Set
}

func NewBreakpointRegistry() *BreakpointRegistry {
	return &BreakpointRegistry{
		byID:    treemap.NewWithIntComparator(),
		pending: hashset.New(),
	}
}

// SameFile 判断两个路径是否指向同一个源文件
// 客户端、编译器和gdb对同一个文件可能分别使用相对路径和绝对路径，
// 相等或一方是另一方的路径后缀时视为同一文件。
func SameFile(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

// FindByLocation 按位置查找断点
func (r *BreakpointRegistry) FindByLocation(file string, line int) (protocol.Breakpoint, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, value := r.byID.Find(func(key, value interface{}) bool {
		b := value.(protocol.Breakpoint)
		return b.Line == line && SameFile(b.File, file)
	})
	if value == nil {
		return protocol.Breakpoint{}, false
	}
	return value.(protocol.Breakpoint), true
}

// FindByID 按编号查找断点
func (r *BreakpointRegistry) FindByID(id int) (protocol.Breakpoint, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	value, ok := r.byID.Get(id)
	if !ok {
		return protocol.Breakpoint{}, false
	}
	return value.(protocol.Breakpoint), true
}

// BeginPending 标记一个位置开始插入，该位置已有插入在途时返回false
func (r *BreakpointRegistry) BeginPending(file string, line int) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	key := pendingKey(file, line)
	if r.pending.Contains(key) {
		return false
	}
	r.pending.Add(key)
	return true
}

// EndPending 清除插入标记，无论插入成功还是失败都要调用
func (r *BreakpointRegistry) EndPending(file string, line int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.pending.Remove(pendingKey(file, line))
}

// Add 登记一个gdb确认后的断点
// 同一位置已有登记时只更新编号，避免带外通知造成重复。
func (r *BreakpointRegistry) Add(b protocol.Breakpoint) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	key, _ := r.byID.Find(func(key, value interface{}) bool {
		exist := value.(protocol.Breakpoint)
		return exist.Line == b.Line && SameFile(exist.File, b.File)
	})
	if key != nil {
		if key.(int) == b.ID {
			return false
		}
		r.byID.Remove(key)
	}
	r.byID.Put(b.ID, b)
	return true
}

// Remove 按编号移除断点
func (r *BreakpointRegistry) Remove(id int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byID.Remove(id)
}

// Snapshot 返回按编号排序的断点列表
func (r *BreakpointRegistry) Snapshot() []protocol.Breakpoint {
	r.lock.Lock()
	defer r.lock.Unlock()
	answer := make([]protocol.Breakpoint, 0, r.byID.Size())
	r.byID.Each(func(key, value interface{}) {
		answer = append(answer, value.(protocol.Breakpoint))
	})
	return answer
}

// Clear 清空登记表，重新初始化时调用，重放前旧编号已经失效
func (r *BreakpointRegistry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byID.Clear()
	r.pending.Clear()
}

func pendingKey(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}
