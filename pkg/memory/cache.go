package memory

import "time"

// ContextCacheEntry is the per-owner cached, pre-formatted memory summary
// served to the prompt builder. There is at most one entry per owner.
type ContextCacheEntry struct {
	Owner          string   `json:"owner"`
	ContextSummary string   `json:"context_summary"`
	Snapshot       []Memory `json:"memory_snapshot,omitempty"`

	LastUpdatedAt time.Time `json:"last_updated_at"`

	// InvalidatedAt is set by any write to the owner's memories. The entry
	// is reusable iff it is nil.
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
}

// Fresh reports whether the entry may be served without recomputation.
func (e *ContextCacheEntry) Fresh() bool {
	return e != nil && e.InvalidatedAt == nil
}

// Clone returns a deep copy of the cache entry.
func (e *ContextCacheEntry) Clone() *ContextCacheEntry {
	c := *e
	if e.Snapshot != nil {
		c.Snapshot = make([]Memory, len(e.Snapshot))
		for i := range e.Snapshot {
			c.Snapshot[i] = *e.Snapshot[i].Clone()
		}
	}
	if e.InvalidatedAt != nil {
		t := *e.InvalidatedAt
		c.InvalidatedAt = &t
	}
	return &c
}
