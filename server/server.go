package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fansqz/gdber/analyze"
	"github.com/fansqz/gdber/config"
	"github.com/fansqz/gdber/debugger"
	"github.com/fansqz/gdber/metrics"
	"github.com/fansqz/gdber/protocol"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server 对外的HTTP/WebSocket入口。
// 每个websocket连接升级后挂到对应的调试会话上，读循环把客户端动作
// 派发给会话，会话的广播经由channel的写pump推回客户端。
type Server struct {
	config   *config.Config
	registry *debugger.Registry
	analyzer *analyze.Client
	version  string

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func NewServer(cfg *config.Config, registry *debugger.Registry, analyzer *analyze.Client, version string) *Server {
	s := &Server{
		config:   cfg,
		registry: registry,
		analyzer: analyzer,
		version:  version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 浏览器端由部署方反向代理把关，这里不限制来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/ws/{session_id}", s.handleWS).Methods("GET")
	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

// ListenAndServe 阻塞直到Shutdown或监听失败
func (s *Server) ListenAndServe() error {
	logrus.Infof("[server] listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("[server] websocket upgrade failed: %v", err)
		return
	}

	channel := newChannel(conn)
	session := s.registry.Attach(sessionID, channel)
	metrics.ConnectedClients.Inc()
	logrus.Infof("[server] client %s connected to session %s from %s", channel.ID(), sessionID, r.RemoteAddr)

	go func() {
		defer func() {
			s.registry.Detach(sessionID, channel.ID())
			channel.close()
			metrics.ConnectedClients.Dec()
			logrus.Infof("[server] client %s disconnected from session %s", channel.ID(), sessionID)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var request protocol.Request
			if err := json.Unmarshal(data, &request); err != nil {
				channel.Send(protocol.NewErrorMessage("malformed request: " + err.Error()))
				continue
			}
			if err := session.HandleAction(request); err != nil {
				channel.Send(protocol.NewErrorMessage(err.Error()))
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

type analyzeHTTPRequest struct {
	SessionID    string `json:"session_id"`
	ExceptionMsg string `json:"exception_msg"`
}

// handleAnalyze 把会话现场转发给外部分析服务，本身不做任何分析
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil || !s.analyzer.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analyze service is not configured"})
		return
	}

	var req analyzeHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request: " + err.Error()})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing session_id"})
		return
	}

	session, ok := s.registry.Get(req.SessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	exceptionMsg := req.ExceptionMsg
	if exceptionMsg == "" {
		exceptionMsg = session.Fault()
	}
	currentFile := ""
	if location := session.Location(); location != nil {
		currentFile = location.File
	}

	request := analyze.BuildRequest(session.StackFrames(), exceptionMsg, session.RecentLogs(0), currentFile)
	result, err := s.analyzer.Analyze(r.Context(), request)
	if err != nil {
		logrus.Errorf("[server] analyze forwarding failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("[server] write response failed: %v", err)
	}
}
