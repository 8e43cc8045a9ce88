package debugger

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/gdber/metrics"
	"github.com/fansqz/gdber/protocol"
)

// Channel 一个接收广播的客户端通道
type Channel interface {
	ID() string
	// Send 非阻塞投递，通道缓冲已满时返回false
	Send(message protocol.Message) bool
}

// Broadcaster 把消息扇出给会话的所有客户端
// 投递永远不阻塞：慢客户端只会丢消息，不会拖住会话循环。
type Broadcaster struct {
	lock     sync.RWMutex
	channels map[string]Channel
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]Channel),
	}
}

// Add 接入一个客户端通道
func (b *Broadcaster) Add(channel Channel) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.channels[channel.ID()] = channel
}

// Remove 移除一个客户端通道，返回剩余通道数
func (b *Broadcaster) Remove(id string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.channels, id)
	return len(b.channels)
}

// Count 当前接入的通道数
func (b *Broadcaster) Count() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.channels)
}

// Broadcast 向所有通道投递一条消息
func (b *Broadcaster) Broadcast(message protocol.Message) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	metrics.Broadcasts.Inc()
	for id, channel := range b.channels {
		if !channel.Send(message) {
			metrics.DroppedMessages.Inc()
			logrus.Warnf("[broadcaster] channel buffer full, message dropped, channel = %s, type = %s", id, message.Type)
		}
	}
}
