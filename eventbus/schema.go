// Package eventbus implements the unified event bus (C6): typed, versioned
// pub/sub channels with per-channel overflow policies and dead-letter
// routing. It generalizes a prior single-run, single-agent sequence
// counter and a dead-letter sink (a
// fan-out/backpressure sink hierarchy) into a multi-channel bus any
// component can publish typed events through.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Codec serializes and deserializes one (type, version) pair's payload.
// The default codec, JSON, is a reasonable default for wire encoding;
// a caller registering a schema may supply any Codec.
type Codec interface {
	Encode(payload any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONCodec encodes/decodes payloads as JSON, unmarshaling into a fresh
// value produced by newFn so Decode returns a concretely-typed value rather
// than a map[string]any.
type JSONCodec struct {
	newFn func() any
}

// NewJSONCodec builds a Codec backed by encoding/json. newFn must return a
// pointer to a fresh zero value of the registered payload type.
func NewJSONCodec(newFn func() any) *JSONCodec {
	return &JSONCodec{newFn: newFn}
}

func (c *JSONCodec) Encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func (c *JSONCodec) Decode(data []byte) (any, error) {
	v := c.newFn()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

type schemaKey struct {
	eventType string
	version   int
}

// SchemaRegistry maps a (type, version) pair to the Codec used to
// serialize/deserialize its payloads. A channel cannot be constructed for a
// (type, version) pair that isn't registered here first: schemas are
// registered before channel construction, never implicitly on first
// publish.
type SchemaRegistry struct {
	mu     sync.RWMutex
	codecs map[schemaKey]Codec
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{codecs: make(map[schemaKey]Codec)}
}

// Register binds a Codec to (eventType, version). Re-registering the same
// pair replaces the prior codec.
func (r *SchemaRegistry) Register(eventType string, version int, codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[schemaKey{eventType, version}] = codec
}

// Lookup returns the codec for (eventType, version), or (nil, false) if no
// schema has been registered.
func (r *SchemaRegistry) Lookup(eventType string, version int) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[schemaKey{eventType, version}]
	return c, ok
}

// Registered reports whether (eventType, version) has a bound codec,
// the check channel() performs before returning a handle.
func (r *SchemaRegistry) Registered(eventType string, version int) bool {
	_, ok := r.Lookup(eventType, version)
	return ok
}

func (k schemaKey) String() string {
	return fmt.Sprintf("%s@v%d", k.eventType, k.version)
}
