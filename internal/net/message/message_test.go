package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEnvelope(t *testing.T) {
	raw, err := Encode(TypeImpulse, Impulse{Entity: 9, X: 1.5, Y: -2})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeImpulse, env.T)
	var imp Impulse
	require.NoError(t, env.Bind(&imp))
	assert.Equal(t, Impulse{Entity: 9, X: 1.5, Y: -2}, imp)

	// The body is a plain map keyed by the short field names.
	var body map[string]any
	require.NoError(t, msgpack.Unmarshal(env.D, &body))
	assert.Contains(t, body, "id")

	raw, err = Encode(TypeDetach, nil)
	require.NoError(t, err)
	env, err = Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, env.D)
	assert.Error(t, env.Bind(&imp))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	assert.Error(t, err)

	raw, err := msgpack.Marshal(map[string]any{"d": []byte{1}})
	require.NoError(t, err)
	_, err = Decode(raw)
	assert.ErrorContains(t, err, "missing type")

	env := Envelope{T: TypePlace, D: msgpack.RawMessage{0xc1}}
	var p Place
	assert.ErrorContains(t, env.Bind(&p), "place: decode body")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil)
	var got []string
	reg.Register(TypeAttach, []SessionState{StateConnected, StateAttached}, func(sess any, env *Envelope) error {
		got = append(got, sess.(string)+":"+env.T)
		return nil
	})
	reg.Register(TypePlace, []SessionState{StateAttached}, func(any, *Envelope) error {
		return errors.New("no such entity")
	})
	reg.Register(TypeClass, []SessionState{StateAttached}, func(any, *Envelope) error {
		panic("boom")
	})

	require.NoError(t, reg.Dispatch("s1", StateConnected, &Envelope{T: TypeAttach}))
	assert.Equal(t, []string{"s1:attach"}, got)

	assert.NoError(t, reg.Dispatch("s1", StateConnected, &Envelope{T: "unknown"}))
	assert.ErrorContains(t, reg.Dispatch("s1", StateConnected, &Envelope{T: TypePlace}), "not allowed in state Connected")
	assert.ErrorContains(t, reg.Dispatch("s1", StateAttached, &Envelope{T: TypePlace}), "no such entity")
	assert.ErrorContains(t, reg.Dispatch("s1", StateAttached, &Envelope{T: TypeClass}), "handler panic for class: boom")
	assert.Equal(t, "Unknown(7)", SessionState(7).String())
}
