package debugger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fansqz/gdber/gdb"
	"github.com/fansqz/gdber/protocol"
)

func TestSameFile(t *testing.T) {
	assert.True(t, SameFile("main.c", "main.c"))
	assert.True(t, SameFile("/tmp/project/main.c", "main.c"))
	assert.True(t, SameFile("main.c", "/tmp/project/main.c"))
	assert.True(t, SameFile("project/main.c", "/home/user/project/main.c"))

	assert.False(t, SameFile("main.c", "other.c"))
	// 后缀必须落在路径分隔符上，domain.c不是main.c
	assert.False(t, SameFile("domain.c", "main.c"))
	assert.False(t, SameFile("/tmp/domain.c", "main.c"))
}

func TestBreakpointRegistryAdd(t *testing.T) {
	registry := NewBreakpointRegistry()

	added := registry.Add(protocol.Breakpoint{ID: 1, File: "/tmp/main.c", Line: 10})
	assert.True(t, added)

	found, ok := registry.FindByID(1)
	assert.True(t, ok)
	assert.Equal(t, 10, found.Line)

	// 同一位置同一编号重复登记不算新增，调用方据此避免重复广播
	added = registry.Add(protocol.Breakpoint{ID: 1, File: "/tmp/main.c", Line: 10})
	assert.False(t, added)

	// 同一位置新编号替换旧登记
	added = registry.Add(protocol.Breakpoint{ID: 3, File: "main.c", Line: 10})
	assert.True(t, added)
	_, ok = registry.FindByID(1)
	assert.False(t, ok)
	_, ok = registry.FindByID(3)
	assert.True(t, ok)
}

func TestBreakpointRegistryFindByLocation(t *testing.T) {
	registry := NewBreakpointRegistry()
	registry.Add(protocol.Breakpoint{ID: 1, File: "/tmp/project/main.c", Line: 10})

	// 相对路径能命中绝对路径登记的断点
	found, ok := registry.FindByLocation("main.c", 10)
	assert.True(t, ok)
	assert.Equal(t, 1, found.ID)

	_, ok = registry.FindByLocation("main.c", 11)
	assert.False(t, ok)
	_, ok = registry.FindByLocation("other.c", 10)
	assert.False(t, ok)
}

func TestBreakpointRegistrySnapshotOrdered(t *testing.T) {
	registry := NewBreakpointRegistry()
	registry.Add(protocol.Breakpoint{ID: 5, File: "main.c", Line: 50})
	registry.Add(protocol.Breakpoint{ID: 1, File: "main.c", Line: 10})
	registry.Add(protocol.Breakpoint{ID: 3, File: "main.c", Line: 30})

	snapshot := registry.Snapshot()
	assert.Equal(t, 3, len(snapshot))
	assert.Equal(t, 1, snapshot[0].ID)
	assert.Equal(t, 3, snapshot[1].ID)
	assert.Equal(t, 5, snapshot[2].ID)
}

func TestBreakpointRegistryRemove(t *testing.T) {
	registry := NewBreakpointRegistry()
	registry.Add(protocol.Breakpoint{ID: 1, File: "main.c", Line: 10})

	registry.Remove(1)
	_, ok := registry.FindByID(1)
	assert.False(t, ok)
	assert.Equal(t, 0, len(registry.Snapshot()))
}

func TestBreakpointRegistryPending(t *testing.T) {
	registry := NewBreakpointRegistry()

	assert.True(t, registry.BeginPending("main.c", 10))
	// 同一位置的第二次插入被挡住
	assert.False(t, registry.BeginPending("main.c", 10))
	// 其他位置不受影响
	assert.True(t, registry.BeginPending("main.c", 11))

	registry.EndPending("main.c", 10)
	assert.True(t, registry.BeginPending("main.c", 10))
}

func TestBreakpointRegistryClear(t *testing.T) {
	registry := NewBreakpointRegistry()
	registry.Add(protocol.Breakpoint{ID: 1, File: "main.c", Line: 10})
	registry.BeginPending("main.c", 20)

	registry.Clear()
	assert.Equal(t, 0, len(registry.Snapshot()))
	assert.True(t, registry.BeginPending("main.c", 20))
}

func TestBreakpointLocationRoundTrip(t *testing.T) {
	// 编码break命令再解码gdb的确认通知，文件和行号要能还原
	encoded := gdb.EncodeCommand(7, "break-insert", "main.c:10")
	assert.Equal(t, "7-break-insert main.c:10", encoded)

	record := gdb.ParseRecord(`=breakpoint-created,bkpt={number="2",type="breakpoint",file="main.c",fullname="/tmp/project/main.c",line="10",original-location="main.c:10"}`)
	notify, ok := record.(gdb.NotifyAsyncRecord)
	assert.True(t, ok)

	bp, ok := NewOutputUtil().ParseBreakpoint(notify.Payload)
	assert.True(t, ok)
	assert.Equal(t, 2, bp.ID)
	assert.Equal(t, 10, bp.Line)
	// gdb报的是绝对路径，按后缀等价仍然对应用户给出的main.c
	assert.True(t, SameFile(bp.File, "main.c"))
}
