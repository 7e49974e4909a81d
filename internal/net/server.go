package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/tame2d/engine/internal/config"
	"go.uber.org/zap"
)

// Server accepts websocket connections and creates Sessions.
// New/dead sessions are communicated to the frame loop via channels.
type Server struct {
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64 // session IDs of dead sessions
	sessCfg  SessionConfig
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Renderer and tool clients are not browsers bound to one origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		sessCfg: SessionConfig{
			InQueueSize:       cfg.InQueueSize,
			OutQueueSize:      cfg.OutQueueSize,
			MessagesPerSecond: cfg.MessagesPerSecond,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		log: log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWS)
	s.http = &http.Server{Handler: mux}
	return s, nil
}

// Serve runs in its own goroutine until Shutdown.
func (s *Server) Serve() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("websocket server stopped", zap.Error(err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, extractIP(r), s.sessCfg, s.log)
	sess.onClose = s.NotifyDead

	select {
	case s.newConns <- sess:
		sess.Start()
		s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))
	default:
		s.log.Warn("connection queue full, rejecting client")
		sess.onClose = nil
		sess.Close()
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the frame loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
