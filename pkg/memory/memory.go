// Package memory defines the core record types of the mnemo system.
//
// A [Memory] is a single durable piece of knowledge about a user (a fact,
// preference, behavioral pattern, relationship, goal, or emotional trigger)
// inferred from their journal entries. Memories are owned by exactly one
// user and move through a lifecycle: created by extraction or consolidation,
// confirmed as new evidence arrives, superseded when merged into a
// replacement, and soft-deleted when retired.
package memory

import "time"

// Type classifies what kind of knowledge a memory holds.
type Type string

const (
	TypeFact           Type = "fact"
	TypePreference     Type = "preference"
	TypePattern        Type = "pattern"
	TypeRelationship   Type = "relationship"
	TypeGoal           Type = "goal"
	TypeEmotionTrigger Type = "emotion_trigger"
)

// Types lists every valid memory type.
var Types = []Type{
	TypeFact,
	TypePreference,
	TypePattern,
	TypeRelationship,
	TypeGoal,
	TypeEmotionTrigger,
}

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	switch t {
	case TypeFact, TypePreference, TypePattern, TypeRelationship, TypeGoal, TypeEmotionTrigger:
		return true
	}
	return false
}

// Category groups memories by life area for context rendering.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryHealth   Category = "health"
	CategoryHobby    Category = "hobby"
	CategoryFamily   Category = "family"
	CategoryPersonal Category = "personal"
	CategoryGeneral  Category = "general"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryHealth, CategoryHobby, CategoryFamily, CategoryPersonal, CategoryGeneral:
		return true
	}
	return false
}

// Defaults applied when a memory is created without explicit values.
const (
	DefaultConfidence = 1.0
	DefaultImportance = 5
)

// Memory is a single durable piece of knowledge about a user.
type Memory struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Type           Type      `json:"memory_type"`
	Category       Category  `json:"category"`
	Content        string    `json:"content"`
	SourceEntryIDs []string  `json:"source_entry_ids,omitempty"`
	Confidence     float64   `json:"confidence"`
	Importance     int       `json:"importance"`

	FirstObservedAt time.Time `json:"first_observed_at"`
	LastConfirmedAt time.Time `json:"last_confirmed_at"`
	MentionCount    int       `json:"mention_count"`

	// Active is false once the memory has been retired. A retired memory
	// with SupersededBy set was replaced by a consolidation merge; with
	// SupersededBy nil it was deactivated outright.
	Active       bool    `json:"is_active"`
	SupersededBy *string `json:"superseded_by,omitempty"`

	// UserConfirmed marks memories the user has explicitly acknowledged,
	// as opposed to machine-inferred ones.
	UserConfirmed bool `json:"user_confirmed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the memory. Storage drivers hand out clones
// so callers can't mutate persisted state through shared pointers.
func (m *Memory) Clone() *Memory {
	c := *m
	if m.SourceEntryIDs != nil {
		c.SourceEntryIDs = append([]string(nil), m.SourceEntryIDs...)
	}
	if m.SupersededBy != nil {
		v := *m.SupersededBy
		c.SupersededBy = &v
	}
	return &c
}
