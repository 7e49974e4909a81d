package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tame2d/engine/internal/net/message"
	"go.uber.org/zap"
)

const (
	maxMessageSize      = 64 << 10
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Session represents a single websocket client. Network I/O runs in
// dedicated goroutines; the fields below closeCh are owned by the frame loop.
type Session struct {
	ID   uint64
	conn *websocket.Conn
	IP   string

	state atomic.Int32 // message.SessionState stored as int32

	InQueue  chan []byte // frame loop reads messages from here
	OutQueue chan []byte // writer goroutine reads from here

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(id uint64)

	// Per-second message rate limiter (readLoop goroutine only)
	msgPerSec  int // 0 = unlimited
	msgCount   int
	msgResetAt time.Time

	// Frame loop only.
	scene      string
	lastDigest uint64
	seq        uint64

	log *zap.Logger
}

// SessionConfig holds the per-session limits.
type SessionConfig struct {
	InQueueSize       int
	OutQueueSize      int
	MessagesPerSecond int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

func NewSession(conn *websocket.Conn, id uint64, ip string, cfg SessionConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		IP:           ip,
		InQueue:      make(chan []byte, cfg.InQueueSize),
		OutQueue:     make(chan []byte, cfg.OutQueueSize),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		closeCh:      make(chan struct{}),
		msgPerSec:    cfg.MessagesPerSecond,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(message.StateConnected))
	return s
}

func (s *Session) State() message.SessionState {
	return message.SessionState(s.state.Load())
}

func (s *Session) SetState(st message.SessionState) {
	s.state.Store(int32(st))
}

// Scene returns the name of the attached scene, or "".
func (s *Session) Scene() string { return s.scene }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues an encoded message. Non-blocking: if OutQueue is full the
// client is too slow and the session is closed.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, closing slow session")
		s.Close()
	}
}

// SendMessage encodes and queues a message.
func (s *Session) SendMessage(t string, body any) {
	data, err := message.Encode(t, body)
	if err != nil {
		s.log.Error("encode message", zap.String("type", t), zap.Error(err))
		return
	}
	s.Send(data)
}

// Close shuts the session down. Safe to call from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(message.StateClosing)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
		if s.onClose != nil {
			s.onClose(s.ID)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads messages from the websocket and pushes them onto InQueue
// for the frame loop.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.msgPerSec > 0 {
			now := time.Now()
			if now.After(s.msgResetAt) {
				s.msgCount = 0
				s.msgResetAt = now.Add(time.Second)
			}
			s.msgCount++
			if s.msgCount > s.msgPerSec {
				s.log.Warn("message rate exceeded, closing", zap.Int("count", s.msgCount))
				return
			}
		}

		// Block until InQueue has space; only this client stalls.
		select {
		case s.InQueue <- data:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop writes queued messages and keeps the connection alive with pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.readTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case data := <-s.OutQueue:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
