package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/storage"
)

// Engine runs consolidation passes: it asks the proposer for a plan,
// validates it, and applies it when valid.
type Engine struct {
	store     *memstore.Store
	storage   storage.Driver
	propose   ProposeFunc
	clock     clock.Clock
	log       *slog.Logger
	threshold int
	target    int
}

// NewEngine creates a consolidation engine. The threshold must be strictly
// greater than the target; out-of-order or non-positive values fall back to
// the defaults.
func NewEngine(store *memstore.Store, driver storage.Driver, propose ProposeFunc, clk clock.Clock, log *slog.Logger, threshold, target int) *Engine {
	if threshold <= target || target <= 0 {
		threshold = DefaultThreshold
		target = DefaultTarget
	}

	return &Engine{
		store:     store,
		storage:   driver,
		propose:   propose,
		clock:     clk,
		log:       log,
		threshold: threshold,
		target:    target,
	}
}

// ApplyOutcome summarizes what a validated plan changed.
type ApplyOutcome struct {
	Kept        int      `json:"kept"`
	Merged      int      `json:"merged"`
	Deactivated int      `json:"deactivated"`
	NewIDs      []string `json:"new_ids,omitempty"`
}

// Apply validates the plan against the given active set and, when valid,
// executes it: one new memory per merge group (provenance unioned from the
// sources, each source superseded to point at it), soft-deletion of every
// deactivate id, keeps untouched. Returns a *memory.ValidationError and
// applies nothing when the plan is invalid.
//
// The writes are sequential, not transactional. A crash mid-apply leaves a
// partially-applied plan; the next pass re-validates against current state,
// so the condition heals itself.
func (e *Engine) Apply(ctx context.Context, owner string, plan *Plan, active []*memory.Memory) (*ApplyOutcome, error) {
	result := Validate(plan, active)
	if !result.Valid {
		return nil, &memory.ValidationError{Problems: result.Errors}
	}

	byID := make(map[string]*memory.Memory, len(active))
	for _, m := range active {
		byID[m.ID] = m
	}

	outcome := &ApplyOutcome{Kept: len(plan.Keep)}

	for _, group := range plan.Merge {
		importance := group.Importance
		merged, err := e.store.Create(ctx, memstore.CreateParams{
			Owner:          owner,
			Type:           group.Type,
			Content:        group.Content,
			Category:       group.Category,
			SourceEntryIDs: unionSourceEntries(group.SourceIDs, byID),
			Importance:     &importance,
		})
		if err != nil {
			return outcome, fmt.Errorf("create merged memory: %w", err)
		}

		for _, sourceID := range group.SourceIDs {
			if err := e.store.Supersede(ctx, sourceID, merged.ID); err != nil {
				return outcome, fmt.Errorf("supersede %s: %w", sourceID, err)
			}
		}

		outcome.Merged += len(group.SourceIDs)
		outcome.NewIDs = append(outcome.NewIDs, merged.ID)
	}

	for _, id := range plan.Deactivate {
		if err := e.store.Delete(ctx, id); err != nil {
			return outcome, fmt.Errorf("deactivate %s: %w", id, err)
		}
		outcome.Deactivated++
	}

	// Push-based invalidation: this engine was the mutating caller.
	if err := e.storage.InvalidateCacheEntry(ctx, owner, e.clock.Now()); err != nil {
		return outcome, fmt.Errorf("invalidate cache: %w", err)
	}

	e.log.Info("consolidation applied",
		"owner", owner,
		"kept", outcome.Kept,
		"merged", outcome.Merged,
		"deactivated", outcome.Deactivated,
	)

	return outcome, nil
}

// RunOutcome reports the result of a consolidation pass.
type RunOutcome struct {
	// Ran is false when the pass was skipped (below threshold) or the
	// proposal step failed.
	Ran bool `json:"ran"`

	// ActiveCount is the active memory count observed at the start.
	ActiveCount int `json:"active_count"`

	// PlanErrors holds validation errors from a rejected proposal.
	PlanErrors []string `json:"plan_errors,omitempty"`

	Outcome *ApplyOutcome `json:"outcome,omitempty"`
}

// Run performs one consolidation pass for owner. Below the threshold it is
// a no-op. Proposer failures and invalid plans are recorded and logged, not
// propagated: consolidation is best-effort and must never surface an
// external-call failure to the caller's flow. Storage errors do propagate.
func (e *Engine) Run(ctx context.Context, owner string) (*RunOutcome, error) {
	count, err := e.storage.CountActiveMemories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("count active memories: %w", err)
	}

	outcome := &RunOutcome{ActiveCount: count}
	if count <= e.threshold {
		e.log.Debug("consolidation skipped", "owner", owner, "active", count, "threshold", e.threshold)
		return outcome, nil
	}

	active, err := e.store.GetActive(ctx, owner)
	if err != nil {
		return nil, err
	}

	plan, err := e.propose(ctx, owner, active)
	if err != nil {
		e.log.Warn("consolidation proposal failed", "owner", owner, "error", err)
		return outcome, nil
	}

	applied, err := e.Apply(ctx, owner, plan, active)
	if err != nil {
		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			e.log.Warn("consolidation plan rejected", "owner", owner, "problems", len(verr.Problems))
			outcome.PlanErrors = verr.Problems
			return outcome, nil
		}
		return nil, err
	}

	outcome.Ran = true
	outcome.Outcome = applied
	return outcome, nil
}

// Threshold returns the configured upper trigger bound.
func (e *Engine) Threshold() int { return e.threshold }

// Target returns the configured lower shrink target.
func (e *Engine) Target() int { return e.target }

// unionSourceEntries merges the source memories' entry provenance in plan
// order, dropping duplicates while preserving first occurrence.
func unionSourceEntries(sourceIDs []string, byID map[string]*memory.Memory) []string {
	var union []string
	seen := make(map[string]bool)
	for _, id := range sourceIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		for _, entryID := range m.SourceEntryIDs {
			if !seen[entryID] {
				seen[entryID] = true
				union = append(union, entryID)
			}
		}
	}
	return union
}
