package consolidate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lattermind/mnemo/pkg/consolidate"
	"github.com/lattermind/mnemo/pkg/memory"
)

func activeSet(ids ...string) []*memory.Memory {
	memories := make([]*memory.Memory, len(ids))
	for i, id := range ids {
		memories[i] = &memory.Memory{
			ID:      id,
			Owner:   "user-1",
			Type:    memory.TypeFact,
			Content: "content for " + id,
			Active:  true,
		}
	}
	return memories
}

var _ = Describe("Validate", func() {
	It("accepts a plan covering every active memory exactly once", func() {
		active := activeSet("a", "b", "c", "d", "e")
		plan := &consolidate.Plan{
			Keep: []string{"a", "b"},
			Merge: []consolidate.MergeGroup{{
				SourceIDs: []string{"c", "d"},
				Content:   "merged c and d",
				Type:      memory.TypeFact,
			}},
			Deactivate: []string{"e"},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeTrue())
		Expect(result.Errors).To(BeEmpty())
	})

	It("rejects unknown ids with the bucket name", func() {
		active := activeSet("a", "b")
		plan := &consolidate.Plan{
			Keep:       []string{"a", "b"},
			Deactivate: []string{"ghost"},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ConsistOf("deactivate contains unknown ID: ghost"))
	})

	It("rejects ids assigned to two actions", func() {
		active := activeSet("a", "b", "c")
		plan := &consolidate.Plan{
			Keep: []string{"a", "b", "c"},
			Merge: []consolidate.MergeGroup{{
				SourceIDs: []string{"a", "b"},
				Content:   "double booked",
				Type:      memory.TypeFact,
			}},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ContainElements(
			"Duplicate ID across actions: a",
			"Duplicate ID across actions: b",
		))
	})

	It("rejects plans that leave an active memory unassigned", func() {
		active := activeSet("a", "b")
		plan := &consolidate.Plan{Keep: []string{"a"}}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ConsistOf("Memory b not assigned to any action"))
	})

	It("rejects merge groups with a single source", func() {
		active := activeSet("a", "b")
		plan := &consolidate.Plan{
			Keep: []string{"b"},
			Merge: []consolidate.MergeGroup{{
				SourceIDs: []string{"a"},
				Content:   "lonely merge",
				Type:      memory.TypeFact,
			}},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ConsistOf("merge group must have at least 2 sources"))
	})

	It("rejects merge groups with empty content", func() {
		active := activeSet("a", "b")
		plan := &consolidate.Plan{
			Merge: []consolidate.MergeGroup{{
				SourceIDs: []string{"a", "b"},
				Type:      memory.TypeFact,
			}},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ConsistOf("merge group has empty content"))
	})

	It("reports every problem, not just the first", func() {
		active := activeSet("a", "b", "c")
		plan := &consolidate.Plan{
			Keep: []string{"a", "ghost"},
			Merge: []consolidate.MergeGroup{{
				SourceIDs: []string{"a"},
				Content:   "",
				Type:      memory.TypeFact,
			}},
		}

		result := consolidate.Validate(plan, active)
		Expect(result.Valid).To(BeFalse())
		Expect(result.Errors).To(ConsistOf(
			"keep contains unknown ID: ghost",
			"Duplicate ID across actions: a",
			"Memory b not assigned to any action",
			"Memory c not assigned to any action",
			"merge group must have at least 2 sources",
			"merge group has empty content",
		))
	})
})
