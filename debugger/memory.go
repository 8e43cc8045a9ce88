package debugger

import (
	"sync"

	"github.com/fansqz/gdber/protocol"
)

// MemoryReader 内存读取的序号管理
// 读内存请求可能并发在途，只有最新一次请求的结果会被应用，
// 旧请求的迟到响应直接丢弃，保证客户端看到的内存视图不会回退。
type MemoryReader struct {
	lock sync.Mutex
	seq  uint64
	last *protocol.MemoryBlock
}

func NewMemoryReader() *MemoryReader {
	return &MemoryReader{}
}

// Begin 登记一次新的读请求，返回请求序号
func (m *MemoryReader) Begin() uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.seq++
	return m.seq
}

// Apply 应用读结果，seq不是最新请求时返回false
func (m *MemoryReader) Apply(seq uint64, block protocol.MemoryBlock) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if seq != m.seq {
		return false
	}
	m.last = &block
	return true
}

// Last 最近一次成功读取的内存块
func (m *MemoryReader) Last() *protocol.MemoryBlock {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last
}

// Reset 清空状态并使在途请求失效
func (m *MemoryReader) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.seq++
	m.last = nil
}
