package server

import (
	"context"
	"sync"
	"time"

	"github.com/fansqz/gdber/protocol"
	"github.com/fansqz/gdber/utils"
	"github.com/fansqz/gdber/utils/gosync"
	"github.com/gorilla/websocket"
)

const (
	// writeWait 单次写超时，客户端不收数据时写pump不能永远卡住
	writeWait = 10 * time.Second
	// pingInterval 空闲连接的心跳间隔
	pingInterval = 30 * time.Second
)

// wsChannel 一条websocket连接的发送端。
// 写pump是唯一向conn写数据的协程，Send只负责入队，队列满了直接丢弃。
type wsChannel struct {
	id   string
	conn *websocket.Conn
	send chan protocol.Message
	ping time.Duration
	done chan struct{}
	once sync.Once
}

func newChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		id:   utils.GetUUID(),
		conn: conn,
		send: make(chan protocol.Message, 64),
		ping: pingInterval,
		done: make(chan struct{}),
	}
	gosync.Go(context.Background(), func(ctx context.Context) {
		c.writePump()
	})
	return c
}

func (c *wsChannel) ID() string {
	return c.id
}

// Send 非阻塞入队，队列满返回false
func (c *wsChannel) Send(message protocol.Message) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(c.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsChannel) close() {
	c.once.Do(func() {
		close(c.send)
	})
}
