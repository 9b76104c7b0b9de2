// Package consolidate validates and applies consolidation plans that merge
// near-duplicate memories and retire stale ones, bounding long-term growth
// of a user's memory set.
//
// Plans are proposed externally (typically by an LLM) and are always
// treated as untrusted input: a plan is only ever applied after Validate
// accepts it.
package consolidate

import (
	"context"

	"github.com/lattermind/mnemo/pkg/memory"
)

// Hysteresis bounds for triggering consolidation. A pass is only warranted
// once the active count exceeds DefaultThreshold and aims to shrink the set
// back toward DefaultTarget. The threshold must stay strictly greater than
// the target or a completed pass would immediately re-trigger.
const (
	DefaultThreshold = 50
	DefaultTarget    = 40
)

// Plan assigns every active memory of one owner to exactly one action.
// Plans are ephemeral; they are never persisted.
type Plan struct {
	Keep       []string     `json:"keep"`
	Merge      []MergeGroup `json:"merge"`
	Deactivate []string     `json:"deactivate"`
}

// MergeGroup collapses two or more source memories into one replacement.
type MergeGroup struct {
	SourceIDs  []string        `json:"source_ids"`
	Content    string          `json:"content"`
	Type       memory.Type     `json:"memory_type"`
	Category   memory.Category `json:"category"`
	Importance int             `json:"importance"`
}

// ProposeFunc asks an external collaborator for a consolidation plan over
// the owner's current active memory set.
type ProposeFunc func(ctx context.Context, owner string, active []*memory.Memory) (*Plan, error)
