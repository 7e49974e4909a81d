package net

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tame2d/engine/internal/core/ecs"
	"github.com/tame2d/engine/internal/core/event"
	"github.com/tame2d/engine/internal/geom"
	"github.com/tame2d/engine/internal/net/message"
	"github.com/tame2d/engine/internal/render"
	"github.com/tame2d/engine/internal/scene"
	"go.uber.org/zap"
)

// SessionSource delivers connected and disconnected sessions. Server
// implements it.
type SessionSource interface {
	NewSessions() <-chan *Session
	DeadSessions() <-chan uint64
}

// Host drives a game from the network: one call to Frame per frame
// interval, always from the same goroutine.
type Host struct {
	game        *scene.Game
	src         SessionSource
	registry    *message.Registry
	sessions    map[uint64]*Session
	subscribed  map[string]bool
	maxPerFrame int
	log         *zap.Logger
}

func NewHost(game *scene.Game, src SessionSource, maxPerFrame int, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Host{
		game:        game,
		src:         src,
		registry:    message.NewRegistry(log),
		sessions:    make(map[uint64]*Session),
		subscribed:  make(map[string]bool),
		maxPerFrame: maxPerFrame,
		log:         log,
	}
	h.registerHandlers()
	return h
}

func (h *Host) registerHandlers() {
	open := []message.SessionState{message.StateConnected, message.StateAttached}
	attached := []message.SessionState{message.StateAttached}
	h.registry.Register(message.TypeAttach, open, h.handleAttach)
	h.registry.Register(message.TypeDetach, attached, h.handleDetach)
	h.registry.Register(message.TypeImpulse, attached, h.handleImpulse)
	h.registry.Register(message.TypePlace, attached, h.handlePlace)
	h.registry.Register(message.TypeClass, attached, h.handleClass)
}

// Len returns the number of live sessions.
func (h *Host) Len() int { return len(h.sessions) }

// Frame runs one host frame: session bookkeeping, inbound messages, the
// game step and outbound render frames.
func (h *Host) Frame(ctx context.Context, elapsed time.Duration) error {
	h.acceptSessions()
	h.processInput()
	h.subscribeScenes()
	if err := h.game.Advance(ctx, elapsed); err != nil {
		return err
	}
	h.broadcastFrames()
	return nil
}

// Close closes every session.
func (h *Host) Close() {
	for id, sess := range h.sessions {
		sess.Close()
		delete(h.sessions, id)
	}
}

func (h *Host) acceptSessions() {
	for {
		select {
		case sess := <-h.src.NewSessions():
			h.sessions[sess.ID] = sess
		case id := <-h.src.DeadSessions():
			if sess, ok := h.sessions[id]; ok {
				delete(h.sessions, id)
				h.log.Info("client disconnected", zap.Uint64("session", id), zap.String("scene", sess.scene))
			}
		default:
			return
		}
	}
}

func (h *Host) ordered() []*Session {
	out := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		if !sess.IsClosed() {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// processInput drains at most maxPerFrame messages from each session.
func (h *Host) processInput() {
	for _, sess := range h.ordered() {
	drain:
		for n := 0; n < h.maxPerFrame; n++ {
			select {
			case data := <-sess.InQueue:
				h.handle(sess, data)
			default:
				break drain
			}
		}
	}
}

func (h *Host) handle(sess *Session, data []byte) {
	env, err := message.Decode(data)
	if err == nil {
		err = h.registry.Dispatch(sess, sess.State(), &env)
	}
	if err != nil {
		sess.SendMessage(message.TypeError, message.Error{Message: err.Error()})
	}
}

// broadcastFrames flushes every scene's render queue and sends the frame to
// its attached sessions, skipping sessions that already have identical
// content.
func (h *Host) broadcastFrames() {
	watchers := make(map[string][]*Session)
	for _, sess := range h.ordered() {
		if sess.State() == message.StateAttached {
			watchers[sess.scene] = append(watchers[sess.scene], sess)
		}
	}
	for _, s := range h.game.Scenes() {
		f := s.Frame()
		ws := watchers[s.Name()]
		if len(ws) == 0 {
			continue
		}
		data, err := render.EncodeFrame(f)
		if err != nil {
			h.log.Error("encode frame", zap.String("scene", s.Name()), zap.Error(err))
			continue
		}
		digest := xxhash.Sum64(data)
		for _, sess := range ws {
			if sess.lastDigest == digest {
				continue
			}
			sess.lastDigest = digest
			sess.seq++
			sess.SendMessage(message.TypeFrame, message.Frame{Scene: s.Name(), Seq: sess.seq, Data: data})
		}
	}
}

// subscribeScenes hooks the host into the event bus of every scene it has
// not seen yet. Handlers run on scene goroutines during Advance, while the
// session table is read-only.
func (h *Host) subscribeScenes() {
	for _, s := range h.game.Scenes() {
		name := s.Name()
		if h.subscribed[name] {
			continue
		}
		h.subscribed[name] = true
		event.Subscribe(s.Bus(), func(ev event.EntityDestroyed) {
			for _, sess := range h.sessions {
				if sess.scene == name && sess.State() == message.StateAttached {
					sess.SendMessage(message.TypeDestroyed, message.Destroyed{Entity: uint64(ev.EntityID)})
				}
			}
		})
		event.Subscribe(s.Bus(), func(ev event.CatchupDropped) {
			h.log.Warn("scene fell behind",
				zap.String("scene", ev.Scene),
				zap.Uint64("ticks", ev.Ticks),
				zap.Duration("dropped", ev.Dropped),
			)
		})
	}
}

var errNotFound = errors.New("not found")

func (h *Host) target(sess *Session, id uint64) (*scene.Scene, *ecs.Entity, error) {
	s, ok := h.game.Scene(sess.scene)
	if !ok {
		return nil, nil, fmt.Errorf("scene %q: %w", sess.scene, errNotFound)
	}
	e, ok := s.Lookup(ecs.EntityID(id))
	if !ok {
		return nil, nil, fmt.Errorf("entity %d: %w", id, errNotFound)
	}
	return s, e, nil
}

func (h *Host) handleAttach(v any, env *message.Envelope) error {
	sess := v.(*Session)
	var msg message.Attach
	if err := env.Bind(&msg); err != nil {
		return err
	}
	s, ok := h.game.Scene(msg.Scene)
	if !ok {
		return fmt.Errorf("scene %q: %w", msg.Scene, errNotFound)
	}
	sess.scene = s.Name()
	sess.lastDigest = 0
	sess.SetState(message.StateAttached)

	p := s.Props()
	reply := message.Attached{Scene: s.Name(), SceneID: s.ID().String()}
	for _, e := range s.Entities() {
		reply.Entities = append(reply.Entities, message.EntityInfo{ID: uint64(e.ID()), Name: ecs.Value(e, p.Name)})
	}
	sess.SendMessage(message.TypeAttached, reply)
	h.log.Debug("session attached", zap.Uint64("session", sess.ID), zap.String("scene", s.Name()))
	return nil
}

func (h *Host) handleDetach(v any, _ *message.Envelope) error {
	sess := v.(*Session)
	sess.scene = ""
	sess.SetState(message.StateConnected)
	return nil
}

func (h *Host) handleImpulse(v any, env *message.Envelope) error {
	var msg message.Impulse
	if err := env.Bind(&msg); err != nil {
		return err
	}
	s, e, err := h.target(v.(*Session), msg.Entity)
	if err != nil {
		return err
	}
	p := s.Props()
	ecs.Set(e, p.Velocity, ecs.Value(e, p.Velocity).Add(geom.Vec{X: msg.X, Y: msg.Y}))
	return nil
}

func (h *Host) handlePlace(v any, env *message.Envelope) error {
	var msg message.Place
	if err := env.Bind(&msg); err != nil {
		return err
	}
	s, e, err := h.target(v.(*Session), msg.Entity)
	if err != nil {
		return err
	}
	ecs.Set(e, s.Props().Position, geom.Vec{X: msg.X, Y: msg.Y})
	return nil
}

func (h *Host) handleClass(v any, env *message.Envelope) error {
	var msg message.Class
	if err := env.Bind(&msg); err != nil {
		return err
	}
	if msg.Class == "" {
		return errors.New("class: empty name")
	}
	_, e, err := h.target(v.(*Session), msg.Entity)
	if err != nil {
		return err
	}
	if msg.Remove {
		e.RemoveClass(msg.Class)
	} else {
		e.AddClass(msg.Class)
	}
	return nil
}
