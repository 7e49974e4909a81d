package message

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int32

const (
	StateConnected SessionState = iota // no scene yet
	StateAttached                      // receiving frames from one scene
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAttached:
		return "Attached"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one message. The session is passed as an opaque
// value to avoid an import cycle with the transport.
type HandlerFunc func(sess any, env *Envelope) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given states.
func (reg *Registry) Register(t string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[t] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch validates the session state and calls the handler for env.T.
// Unknown types are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, env *Envelope) error {
	reg.log.Debug("message received",
		zap.String("type", env.T),
		zap.Int("size", len(env.D)),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[env.T]
	if !ok {
		reg.log.Debug("unknown message type", zap.String("type", env.T))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("message not allowed in state",
			zap.String("type", env.T),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%s not allowed in state %s", env.T, state)
	}

	return reg.safeCall(entry.fn, sess, env)
}

// safeCall runs a handler with panic recovery so one bad message cannot
// take down the frame loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, env *Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", env.T),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.T, rec)
		}
	}()
	return fn(sess, env)
}
