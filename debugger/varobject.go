package debugger

import (
	"sync"

	"github.com/fansqz/gdber/protocol"
)

// VarObjectTree 变量观察对象登记表
// 句柄只在一次暂停期间有效，恢复运行时整代失效。
// generation用来识别跨越失效边界的迟到响应：请求发出时记下代号，
// 响应到达时代号不一致说明目标程序已经恢复过运行，结果直接丢弃。
type VarObjectTree struct {
	lock       sync.Mutex
	generation uint64
	// roots 表达式->根观察对象，同一表达式只创建一次
	roots map[string]protocol.VarObjectInfo
	// byName 句柄->观察对象，包含根和已展开的子节点
	byName map[string]protocol.VarObjectInfo
}

func NewVarObjectTree() *VarObjectTree {
	return &VarObjectTree{
		roots:  make(map[string]protocol.VarObjectInfo),
		byName: make(map[string]protocol.VarObjectInfo),
	}
}

// Generation 当前代号，发出var-create或var-list-children前记录
func (t *VarObjectTree) Generation() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.generation
}

// FindByExpression 查找表达式对应的根观察对象
func (t *VarObjectTree) FindByExpression(expression string) (protocol.VarObjectInfo, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	info, ok := t.roots[expression]
	return info, ok
}

// FindByName 按句柄查找观察对象
func (t *VarObjectTree) FindByName(name string) (protocol.VarObjectInfo, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	info, ok := t.byName[name]
	return info, ok
}

// AddRoot 登记一个根观察对象
// generation已经前进或表达式已被并发请求登记时返回false，调用方丢弃结果。
func (t *VarObjectTree) AddRoot(generation uint64, info protocol.VarObjectInfo) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if generation != t.generation {
		return false
	}
	if _, ok := t.roots[info.Expression]; ok {
		return false
	}
	t.roots[info.Expression] = info
	t.byName[info.Name] = info
	return true
}

// SetChildren 登记一次展开的子节点，子节点句柄从此可以继续展开
func (t *VarObjectTree) SetChildren(generation uint64, parent string, children []protocol.VarObjectInfo) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if generation != t.generation {
		return false
	}
	if _, ok := t.byName[parent]; !ok {
		return false
	}
	for _, child := range children {
		t.byName[child.Name] = child
	}
	return true
}

// Invalidate 使所有句柄失效，目标程序恢复运行或会话重置时调用
func (t *VarObjectTree) Invalidate() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.generation++
	t.roots = make(map[string]protocol.VarObjectInfo)
	t.byName = make(map[string]protocol.VarObjectInfo)
}
