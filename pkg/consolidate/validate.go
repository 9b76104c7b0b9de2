package consolidate

import (
	"fmt"

	"github.com/lattermind/mnemo/pkg/memory"
)

// Result is the outcome of validating a plan. Errors lists every problem
// found; validation never stops at the first issue.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks a proposed plan against the owner's active memory set.
// Four checks run without short-circuiting so all problems are reported
// together: membership (no unknown ids), uniqueness (no id in two
// buckets), completeness (every active id assigned), and merge shape
// (every group has at least two sources and non-empty content).
func Validate(plan *Plan, active []*memory.Memory) Result {
	activeIDs := make(map[string]bool, len(active))
	for _, m := range active {
		activeIDs[m.ID] = true
	}

	var errs []string
	seen := make(map[string]bool)

	// Membership and uniqueness, bucket by bucket.
	check := func(bucket, id string) {
		if !activeIDs[id] {
			errs = append(errs, fmt.Sprintf("%s contains unknown ID: %s", bucket, id))
		}
		if seen[id] {
			errs = append(errs, fmt.Sprintf("Duplicate ID across actions: %s", id))
		}
		seen[id] = true
	}

	for _, id := range plan.Keep {
		check("keep", id)
	}
	for _, group := range plan.Merge {
		for _, id := range group.SourceIDs {
			check("merge", id)
		}
	}
	for _, id := range plan.Deactivate {
		check("deactivate", id)
	}

	// Completeness: every active memory must be assigned somewhere.
	for _, m := range active {
		if !seen[m.ID] {
			errs = append(errs, fmt.Sprintf("Memory %s not assigned to any action", m.ID))
		}
	}

	// Merge shape.
	for _, group := range plan.Merge {
		if len(group.SourceIDs) < 2 {
			errs = append(errs, "merge group must have at least 2 sources")
		}
		if group.Content == "" {
			errs = append(errs, "merge group has empty content")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
