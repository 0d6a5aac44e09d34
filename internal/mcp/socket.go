package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/jsonrpc2"
)

// SocketServer accepts long-lived local clients on a unix socket and
// serves each connection over jsonrpc2. All connections share one tool
// registry and therefore one engine.
type SocketServer struct {
	socketPath string
	server     *Server
	listener   net.Listener

	mu           sync.Mutex
	connections  map[string]*jsonrpc2.Conn
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewSocketServer(socketPath string, server *Server) *SocketServer {
	return &SocketServer{
		socketPath:  socketPath,
		server:      server,
		connections: make(map[string]*jsonrpc2.Conn),
		shutdown:    make(chan struct{}),
	}
}

func (s *SocketServer) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0700); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	log.Info("socket server listening", "path", s.socketPath)
	go s.acceptConnections(ctx)
	return nil
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				continue
			}
		}

		go s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	connID := uuid.NewString()
	log.Info("client connected", "conn_id", connID)

	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	rpcConn := jsonrpc2.NewConn(ctx, stream, &connHandler{server: s.server, connID: connID})

	s.mu.Lock()
	s.connections[connID] = rpcConn
	s.mu.Unlock()

	<-rpcConn.DisconnectNotify()

	s.mu.Lock()
	delete(s.connections, connID)
	s.mu.Unlock()
	log.Info("client disconnected", "conn_id", connID)
}

type connHandler struct {
	server *Server
	connID string
}

func (h *connHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	mcpReq := &Request{
		JSONRPC: "2.0",
		Method:  req.Method,
	}
	if !req.Notif {
		mcpReq.ID = req.ID.String()
	}
	if req.Params != nil {
		var params map[string]interface{}
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			if !req.Notif {
				conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
					Code:    -32700,
					Message: "Parse error",
				})
			}
			return
		}
		mcpReq.Params = params
	}

	resp := h.server.HandleRequest(mcpReq)
	if req.Notif {
		return
	}

	if resp.Error != nil {
		if err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    int64(resp.Error.Code),
			Message: resp.Error.Message,
		}); err != nil {
			log.Warn("reply failed", "conn_id", h.connID, "error", err)
		}
		return
	}

	if err := conn.Reply(ctx, req.ID, resp.Result); err != nil {
		log.Warn("reply failed", "conn_id", h.connID, "error", err)
	}
}

func (s *SocketServer) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.Lock()
		for _, conn := range s.connections {
			conn.Close()
		}
		s.mu.Unlock()

		os.Remove(s.socketPath)
	})
}
