// Package gateway is the WebSocket transport for C8: it upgrades
// connections, tracks per-connection session subscriptions, and fans run
// frames out to every subscriber of a session.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/nextlevelbuilder/agentrun/internal/ids"
	"github.com/nextlevelbuilder/agentrun/internal/wsrun"
	"github.com/nextlevelbuilder/agentrun/pkg/protocol"
)

// Server upgrades /ws connections and routes their frames into an
// Orchestrator, fanning emitted frames back out to every subscriber of a
// session.
type Server struct {
	orchestrator   Orchestrator
	allowedOrigins []string
	allowedUsers   []string

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client

	httpServer *http.Server
}

// Orchestrator is the subset of wsrun.Orchestrator the transport needs;
// defined here so gateway depends only on the methods it calls.
type Orchestrator interface {
	HandleSendMessage(sessionID, runID, content string, emit wsrun.Emit)
	HandleCancel(sessionID, runID string)
	Shutdown()
}

func NewServer(o Orchestrator, allowedOrigins, allowedUsers []string) *Server {
	s := &Server{
		orchestrator:   o,
		allowedOrigins: allowedOrigins,
		allowedUsers:   allowedUsers,
		clients:        make(map[string]*Client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range s.allowedOrigins {
		if a == "*" || a == origin {
			return true
		}
	}
	slog.Warn("gateway: origin rejected", "origin", origin)
	return false
}

func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return IdentityMiddleware(s.allowedUsers, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gateway: upgrade failed", "error", err)
		return
	}

	client := newClient(ulid.Make().String(), conn)
	s.register(client)
	defer s.unregister(client)

	go client.pingLoop()
	client.readLoop(func(frame protocol.ClientFrame) {
		s.handleFrame(client, frame)
	})
}

func (s *Server) handleFrame(c *Client, frame protocol.ClientFrame) {
	if !ids.Valid(frame.SessionID) {
		c.send(protocol.ServerFrame{Type: protocol.FrameError, SessionID: frame.SessionID, Message: "invalid sessionId"})
		return
	}
	c.subscribe(frame.SessionID)

	switch frame.Type {
	case protocol.FrameSendMessage:
		runID := ids.NewRunID()
		s.orchestrator.HandleSendMessage(frame.SessionID, runID, frame.Content, func(f protocol.ServerFrame) {
			s.broadcast(frame.SessionID, f)
		})
	case protocol.FrameCancel:
		s.orchestrator.HandleCancel(frame.SessionID, frame.RunID)
	default:
		c.send(protocol.ServerFrame{Type: protocol.FrameError, SessionID: frame.SessionID, Message: "unknown frame type"})
	}
}

// broadcast delivers frame to every client subscribed to sessionID.
func (s *Server) broadcast(sessionID string, frame protocol.ServerFrame) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.subscribedTo(sessionID) {
			c.send(frame)
		}
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

// Shutdown cancels every active run, closes every socket with code 1001,
// and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.orchestrator.Shutdown()

	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		c.closeWithStatus(websocket.CloseGoingAway, "server shutting down")
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Serve starts the HTTP server on addr and blocks until it stops.
func (s *Server) Serve(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Mux()}
	slog.Info("gateway: listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: serve: %w", err)
	}
	return nil
}
