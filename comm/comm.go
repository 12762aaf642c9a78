// Package comm defines Comm, the single message type flowing through
// agents, flows, and graph nodes. It generalizes a chat-channel message
// type into a channel-agnostic unit
// of communication.
package comm

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the kind of content a Comm carries.
type Type string

const (
	TypeText     Type = "TEXT"
	TypeSystem   Type = "SYSTEM"
	TypeError    Type = "ERROR"
	TypeToolCall Type = "TOOL_CALL"
)

// Role indicates the author of a Comm.
type Role string

const (
	RoleUser      Role = "USER"
	RoleSystem    Role = "SYSTEM"
	RoleAssistant Role = "ASSISTANT"
	RoleTool      Role = "TOOL"
)

// Priority influences event-bus and HITL routing decisions.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityUrgent   Priority = "URGENT"
	PriorityCritical Priority = "CRITICAL"
)

// Comm is the unit of communication flowing through agents, flows, and
// graph nodes. Comm values are never mutated after creation; producing a
// derived Comm (Reply) always returns a new value, so a Comm obtained from
// one goroutine can be safely read from another without synchronization.
type Comm struct {
	ID       string
	ParentID string
	Content  string
	From     string
	To       string
	Type     Type
	Role     Role
	Priority Priority
	Data     map[string]any
	Metadata map[string]any

	CreatedAt time.Time
	TTL       time.Duration
	ExpiresAt time.Time
}

// New constructs a Comm with a generated ID and CreatedAt set to now.
func New(content, from string, role Role) Comm {
	return Comm{
		ID:        uuid.NewString(),
		Content:   content,
		From:      from,
		Type:      TypeText,
		Role:      role,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
	}
}

// WithTTL sets a time-to-live and computes ExpiresAt relative to CreatedAt,
// returning a copy (Comm is never mutated in place).
func (c Comm) WithTTL(ttl time.Duration) Comm {
	c.TTL = ttl
	if ttl > 0 {
		base := c.CreatedAt
		if base.IsZero() {
			base = time.Now()
		}
		c.ExpiresAt = base.Add(ttl)
	}
	return c
}

// IsExpired reports whether the Comm has outlived its TTL.
func (c Comm) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// Reply produces a new Comm addressed back to the sender of c, with
// ParentID set to c.ID so the exchange can be correlated. The original
// Comm is left untouched.
func (c Comm) Reply(content, from string) Comm {
	reply := Comm{
		ID:        uuid.NewString(),
		ParentID:  c.ID,
		Content:   content,
		From:      from,
		To:        c.From,
		Type:      TypeText,
		Role:      RoleAssistant,
		Priority:  c.Priority,
		CreatedAt: time.Now(),
	}
	if len(c.Metadata) > 0 {
		reply.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			reply.Metadata[k] = v
		}
	}
	return reply
}

// WithData returns a copy of c with key set in Data.
func (c Comm) WithData(key string, value any) Comm {
	data := make(map[string]any, len(c.Data)+1)
	for k, v := range c.Data {
		data[k] = v
	}
	data[key] = value
	c.Data = data
	return c
}

// DataValue reads a key from Data, returning false if absent.
func (c Comm) DataValue(key string) (any, bool) {
	if c.Data == nil {
		return nil, false
	}
	v, ok := c.Data[key]
	return v, ok
}
