package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gorilla/websocket"

	"github.com/fansqz/gdber/constants"
	"github.com/fansqz/gdber/protocol"
)

// dialTestWS 起一个只做升级的测试服务，返回服务端和客户端两侧的连接
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Nil(t, err)

	select {
	case serverConn := <-connCh:
		return srv, serverConn, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server-side websocket connection")
		return nil, nil, nil
	}
}

func TestChannelDeliversMessages(t *testing.T) {
	_, serverConn, clientConn := dialTestWS(t)
	defer clientConn.Close()

	channel := newChannel(serverConn)
	defer channel.close()
	assert.NotEqual(t, "", channel.ID())

	assert.True(t, channel.Send(protocol.NewConsoleMessage("hello")))

	assert.Nil(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message struct {
		Type    constants.MessageType `json:"type"`
		Payload json.RawMessage       `json:"payload"`
	}
	assert.Nil(t, clientConn.ReadJSON(&message))
	assert.Equal(t, constants.ConsoleMessage, message.Type)
}

func TestChannelCloseStopsPump(t *testing.T) {
	_, serverConn, clientConn := dialTestWS(t)
	defer clientConn.Close()

	channel := newChannel(serverConn)
	channel.close()
	// close幂等
	channel.close()

	select {
	case <-channel.done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not exit after close")
	}
}

func TestChannelWritePumpExitsOnDeadPeer(t *testing.T) {
	_, serverConn, clientConn := dialTestWS(t)
	assert.Nil(t, clientConn.Close())

	channel := newChannel(serverConn)
	defer channel.close()

	// 对端已经没了，写pump在若干次入队后必然撞上写错误并退出
	deadline := time.After(5 * time.Second)
	for {
		channel.Send(protocol.NewConsoleMessage("ping"))
		select {
		case <-channel.done:
			return
		case <-deadline:
			t.Fatal("write pump did not exit after peer went away")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestChannelWritePumpPingsIdleConnection(t *testing.T) {
	_, serverConn, clientConn := dialTestWS(t)
	defer clientConn.Close()

	pinged := make(chan struct{}, 1)
	clientConn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	channel := &wsChannel{
		id:   "test",
		conn: serverConn,
		send: make(chan protocol.Message, 4),
		ping: 20 * time.Millisecond,
		done: make(chan struct{}),
	}
	go channel.writePump()
	defer channel.close()

	// ping是控制帧，客户端得持续读才能触发handler
	go func() {
		for {
			if _, _, err := clientConn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received on idle connection")
	}
}

func TestChannelSendDropsWhenQueueFull(t *testing.T) {
	// 没有写pump消费，队列满后Send返回false而不是阻塞
	channel := &wsChannel{
		id:   "test",
		send: make(chan protocol.Message, 2),
		done: make(chan struct{}),
	}
	assert.True(t, channel.Send(protocol.NewConsoleMessage("a")))
	assert.True(t, channel.Send(protocol.NewConsoleMessage("b")))
	assert.False(t, channel.Send(protocol.NewConsoleMessage("c")))
}
