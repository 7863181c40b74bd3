package message

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XiandiShan/rclgo/errors"
)

// Envelope is the wire framing around a serialized payload. The payload
// bytes are opaque to the transport; the envelope carries enough to route
// and deserialize on the far side.
type Envelope struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Publisher string    `json:"publisher,omitempty"`
	Stamp     time.Time `json:"stamp"`
	Data      []byte    `json:"data"`
}

// Factory constructs an empty message of one registered type
type Factory func() Message

// Codec serializes messages into envelopes and back. Deserialization
// requires the type to have been registered; unknown types fail with
// UnsupportedType so that a newer peer's messages surface as a typed error
// rather than a decode panic.
type Codec struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCodec creates an empty codec
func NewCodec() *Codec {
	return &Codec{factories: make(map[string]Factory)}
}

// Register associates a type name with a factory for its empty value.
// Re-registering a name replaces the previous factory.
func (c *Codec) Register(typeName string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[typeName] = factory
}

// Known reports whether the type name has a registered factory
func (c *Codec) Known(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[typeName]
	return ok
}

// New constructs an empty message of the named type
func (c *Codec) New(typeName string) (Message, error) {
	c.mu.RLock()
	factory, ok := c.factories[typeName]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.KindUnsupportedType, "message", "new",
			"no factory registered for type %q", typeName)
	}
	return factory(), nil
}

// Encode wraps a message in an envelope and serializes it for transport
func (c *Codec) Encode(msg Message, publisher string, stamp time.Time) ([]byte, error) {
	payload, err := msg.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(errors.KindUnsupportedType, err, "message", "encode",
			"marshal payload of type "+msg.TypeName())
	}
	env := Envelope{
		ID:        uuid.New(),
		Type:      msg.TypeName(),
		Publisher: publisher,
		Stamp:     stamp,
		Data:      payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(errors.KindUnsupportedType, err, "message", "encode", "marshal envelope")
	}
	return data, nil
}

// Decode parses envelope bytes and deserializes the payload into a fresh
// message of the envelope's declared type
func (c *Codec) Decode(data []byte) (Message, *Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, errors.Wrap(errors.KindUnsupportedType, err, "message", "decode", "unmarshal envelope")
	}
	msg, err := c.New(env.Type)
	if err != nil {
		return nil, nil, err
	}
	if err := msg.UnmarshalPayload(env.Data); err != nil {
		return nil, nil, errors.Wrap(errors.KindUnsupportedType, err, "message", "decode",
			"unmarshal payload of type "+env.Type)
	}
	return msg, &env, nil
}

// DecodeRaw parses envelope bytes without interpreting the payload
func (c *Codec) DecodeRaw(data []byte) (*Raw, *Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, errors.Wrap(errors.KindUnsupportedType, err, "message", "decode_raw", "unmarshal envelope")
	}
	return &Raw{Type: env.Type, Data: env.Data}, &env, nil
}
