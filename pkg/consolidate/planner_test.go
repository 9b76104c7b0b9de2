package consolidate

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lattermind/mnemo/pkg/memory"
)

var _ = Describe("NewLLMPlanner", func() {
	active := []*memory.Memory{
		{ID: "a", Type: memory.TypeFact, Category: memory.CategoryWork, Content: "Works at Acme", Importance: 5, MentionCount: 2},
		{ID: "b", Type: memory.TypeFact, Category: memory.CategoryWork, Content: "Employed by Acme Corp", Importance: 4, MentionCount: 1, UserConfirmed: true},
	}

	It("lists every memory in the prompt and parses the plan", func() {
		propose := NewLLMPlanner(func(_ context.Context, prompt string) (string, error) {
			Expect(prompt).To(ContainSubstring("id=a"))
			Expect(prompt).To(ContainSubstring("id=b"))
			Expect(prompt).To(ContainSubstring("(user-confirmed)"))
			Expect(prompt).To(ContainSubstring("roughly 10 entries"))
			return `{"keep": [], "merge": [{"source_ids": ["a", "b"], "content": "Works at Acme Corp", "memory_type": "fact", "category": "work", "importance": 5}], "deactivate": []}`, nil
		}, 10)

		plan, err := propose(context.Background(), "user-1", active)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Merge).To(HaveLen(1))
		Expect(plan.Merge[0].SourceIDs).To(Equal([]string{"a", "b"}))
		Expect(plan.Merge[0].Type).To(Equal(memory.TypeFact))
	})

	It("propagates call failures", func() {
		propose := NewLLMPlanner(func(context.Context, string) (string, error) {
			return "", errors.New("model unavailable")
		}, 10)

		_, err := propose(context.Background(), "user-1", active)
		Expect(err).To(MatchError(ContainSubstring("model unavailable")))
	})

	It("fails on non-JSON responses", func() {
		propose := NewLLMPlanner(func(context.Context, string) (string, error) {
			return "cannot comply", nil
		}, 10)

		_, err := propose(context.Background(), "user-1", active)
		Expect(err).To(HaveOccurred())
	})
})
