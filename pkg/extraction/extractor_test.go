package extraction

import (
	"context"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lattermind/mnemo/pkg/memory"
)

var _ = Describe("NewLLMExtractor", func() {
	It("parses candidates out of the model response", func() {
		propose := NewLLMExtractor(func(_ context.Context, prompt string) (string, error) {
			Expect(prompt).To(ContainSubstring("Journal entry:"))
			Expect(prompt).To(ContainSubstring("I started climbing"))
			return `{"memories": [
				{"memory_type": "hobby_fact", "content": "ignored by caller"},
				{"memory_type": "preference", "category": "hobby", "content": "Loves climbing", "confidence": 0.9, "importance": 6}
			]}`, nil
		})

		candidates, err := propose(context.Background(), "user-1", "I started climbing last month", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(HaveLen(2))
		Expect(candidates[1].Type).To(Equal(memory.TypePreference))
		Expect(candidates[1].Category).To(Equal(memory.CategoryHobby))
		Expect(*candidates[1].Confidence).To(Equal(0.9))
		Expect(*candidates[1].Importance).To(Equal(6))
	})

	It("passes the recent context into the prompt", func() {
		propose := NewLLMExtractor(func(_ context.Context, prompt string) (string, error) {
			Expect(prompt).To(ContainSubstring("already known about the author"))
			Expect(prompt).To(ContainSubstring("- Works as a nurse"))
			return `{"memories": []}`, nil
		})

		candidates, err := propose(context.Background(), "user-1", "entry", "Work:\n- Works as a nurse")
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(BeEmpty())
	})

	It("tolerates fenced responses", func() {
		propose := NewLLMExtractor(func(context.Context, string) (string, error) {
			return "```json\n{\"memories\": [{\"memory_type\": \"fact\", \"content\": \"x\"}]}\n```", nil
		})

		candidates, err := propose(context.Background(), "user-1", "entry", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates).To(HaveLen(1))
	})

	It("fails on unparseable responses", func() {
		propose := NewLLMExtractor(func(context.Context, string) (string, error) {
			return "I could not find anything interesting.", nil
		})

		_, err := propose(context.Background(), "user-1", "entry", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("buildExtractionPrompt", func() {
	It("truncates oversized entries", func() {
		entry := strings.Repeat("a", maxEntryChars+500)
		prompt := buildExtractionPrompt(entry, "")
		Expect(len(prompt)).To(BeNumerically("<", len(entry)))
	})

	It("truncates on a rune boundary", func() {
		// Three bytes per rune, so the byte cap lands mid-rune.
		entry := strings.Repeat("日", maxEntryChars)
		prompt := buildExtractionPrompt(entry, "")
		Expect(utf8.ValidString(prompt)).To(BeTrue())
		Expect(len(prompt)).To(BeNumerically("<", len(entry)))
	})
})
