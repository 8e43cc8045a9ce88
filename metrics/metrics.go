package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 服务端指标，通过 /metrics 暴露
var (
	// ActiveSessions 当前存活的调试会话数
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdber_active_sessions",
		Help: "Number of live debug sessions.",
	})

	// ConnectedClients 当前接入的websocket客户端数
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdber_connected_clients",
		Help: "Number of connected websocket clients.",
	})

	// Actions 按类型统计的客户端动作数
	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdber_actions_total",
		Help: "Client actions handled, by action type.",
	}, []string{"action"})

	// GdbRecords 按类型统计的gdb输出记录数
	GdbRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdber_gdb_records_total",
		Help: "GDB/MI records parsed, by record type.",
	}, []string{"type"})

	// CommandTimeouts 同步mi命令超时次数
	CommandTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdber_command_timeouts_total",
		Help: "Synchronous MI commands that timed out.",
	})

	// Broadcasts 广播出去的消息数
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdber_broadcasts_total",
		Help: "Messages broadcast to clients.",
	})

	// DroppedMessages 因客户端缓冲区写满而丢弃的消息数
	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdber_dropped_messages_total",
		Help: "Messages dropped because a client send buffer was full.",
	})
)
