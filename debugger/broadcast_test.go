package debugger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fansqz/gdber/constants"
	"github.com/fansqz/gdber/protocol"
)

// fakeChannel 测试用客户端通道，消息进缓冲channel便于按类型等待
type fakeChannel struct {
	id     string
	events chan protocol.Message
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{
		id:     id,
		events: make(chan protocol.Message, 128),
	}
}

func (c *fakeChannel) ID() string {
	return c.id
}

func (c *fakeChannel) Send(message protocol.Message) bool {
	select {
	case c.events <- message:
		return true
	default:
		return false
	}
}

// waitFor 等待指定类型的消息，跳过途中其他类型的消息
func (c *fakeChannel) waitFor(t *testing.T, want constants.MessageType) protocol.Message {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case message := <-c.events:
			if message.Type == want {
				return message
			}
		case <-deadline:
			t.Fatalf("timeout waiting for message type %s", want)
			return protocol.Message{}
		}
	}
}

// waitForState 等待下一条状态快照
func (c *fakeChannel) waitForState(t *testing.T) protocol.StateUpdatePayload {
	t.Helper()
	message := c.waitFor(t, constants.StateUpdateMessage)
	return message.Payload.(protocol.StateUpdatePayload)
}

// drain 丢弃已经积压的消息
func (c *fakeChannel) drain() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

func TestBroadcasterFanOut(t *testing.T) {
	broadcaster := NewBroadcaster()
	first := newFakeChannel("c1")
	second := newFakeChannel("c2")
	broadcaster.Add(first)
	broadcaster.Add(second)
	assert.Equal(t, 2, broadcaster.Count())

	broadcaster.Broadcast(protocol.NewConsoleMessage("hello"))

	assert.Equal(t, "hello", (<-first.events).Payload)
	assert.Equal(t, "hello", (<-second.events).Payload)
}

func TestBroadcasterRemove(t *testing.T) {
	broadcaster := NewBroadcaster()
	first := newFakeChannel("c1")
	second := newFakeChannel("c2")
	broadcaster.Add(first)
	broadcaster.Add(second)

	assert.Equal(t, 1, broadcaster.Remove("c1"))
	assert.Equal(t, 0, broadcaster.Remove("c2"))
	assert.Equal(t, 0, broadcaster.Remove("unknown"))

	broadcaster.Broadcast(protocol.NewConsoleMessage("nobody home"))
	select {
	case <-first.events:
		t.Fatal("removed channel should not receive")
	default:
	}
}

func TestBroadcasterSlowChannelDropped(t *testing.T) {
	broadcaster := NewBroadcaster()
	// 无缓冲且没有读者，投递必然失败
	slow := &fakeChannel{id: "slow", events: make(chan protocol.Message)}
	healthy := newFakeChannel("healthy")
	broadcaster.Add(slow)
	broadcaster.Add(healthy)

	// 慢客户端丢消息，不影响其他客户端
	broadcaster.Broadcast(protocol.NewConsoleMessage("payload"))
	assert.Equal(t, "payload", (<-healthy.events).Payload)
}
