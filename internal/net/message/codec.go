package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Inbound message types.
const (
	TypeAttach  = "attach"
	TypeDetach  = "detach"
	TypeImpulse = "impulse"
	TypePlace   = "place"
	TypeClass   = "class"
)

// Outbound message types.
const (
	TypeAttached  = "attached"
	TypeFrame     = "frame"
	TypeDestroyed = "destroyed"
	TypeError     = "error"
)

// Envelope wraps every message on the wire. D holds the msgpack body and is
// decoded by the handler for T.
type Envelope struct {
	T string             `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d,omitempty"`
}

// Bind decodes the body into v.
func (e *Envelope) Bind(v any) error {
	if len(e.D) == 0 {
		return fmt.Errorf("%s: empty body", e.T)
	}
	if err := msgpack.Unmarshal(e.D, v); err != nil {
		return fmt.Errorf("%s: decode body: %w", e.T, err)
	}
	return nil
}

// Encode builds the wire form of a message. A nil body is omitted.
func Encode(t string, body any) ([]byte, error) {
	env := Envelope{T: t}
	if body != nil {
		raw, err := msgpack.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		env.D = raw
	}
	return msgpack.Marshal(&env)
}

// Decode parses the wire form of a message.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.T == "" {
		return env, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

type Attach struct {
	Scene string `msgpack:"scene"`
}

// Impulse adds to an entity's velocity.
type Impulse struct {
	Entity uint64  `msgpack:"id"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
}

// Place sets an entity's position.
type Place struct {
	Entity uint64  `msgpack:"id"`
	X      float64 `msgpack:"x"`
	Y      float64 `msgpack:"y"`
}

// Class adds a class tag to an entity, or removes every occurrence of it.
type Class struct {
	Entity uint64 `msgpack:"id"`
	Class  string `msgpack:"class"`
	Remove bool   `msgpack:"remove,omitempty"`
}

type EntityInfo struct {
	ID   uint64 `msgpack:"id"`
	Name string `msgpack:"name"`
}

type Attached struct {
	Scene    string       `msgpack:"scene"`
	SceneID  string       `msgpack:"sid"`
	Entities []EntityInfo `msgpack:"entities"`
}

// Frame carries one encoded render.Frame.
type Frame struct {
	Scene string `msgpack:"scene"`
	Seq   uint64 `msgpack:"seq"`
	Data  []byte `msgpack:"data"`
}

// Destroyed tells an attached client an entity left the scene for good.
type Destroyed struct {
	Entity uint64 `msgpack:"id"`
}

type Error struct {
	Message string `msgpack:"msg"`
}
