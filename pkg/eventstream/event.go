// Package eventstream defines the transport-neutral events mnemo emits
// when a user's memory set changes, and the Publisher interface backends
// implement.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryChanged is emitted after any mutation of an owner's
	// memory set.
	EventTypeMemoryChanged = "mnemo.memory.changed"
)

// Operation names the mutation that triggered a memory-changed event.
type Operation string

const (
	OpExtracted    Operation = "extracted"
	OpConfirmed    Operation = "confirmed"
	OpUpdated      Operation = "updated"
	OpDeleted      Operation = "deleted"
	OpConsolidated Operation = "consolidated"
	OpWiped        Operation = "wiped"
)

// MemoryChangedEvent is the payload published after a memory mutation.
type MemoryChangedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	Owner     string    `json:"owner"`
	Operation Operation `json:"operation"`

	// MemoryIDs lists the affected records, when known.
	MemoryIDs []string `json:"memory_ids,omitempty"`
}
