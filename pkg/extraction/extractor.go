package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lattermind/mnemo/pkg/llm"
	"github.com/lattermind/mnemo/pkg/memory"
)

// ProposeFunc asks the external extraction call to propose candidate
// memories for one journal entry. recentContext carries the user's current
// memory summary so the model can confirm rather than duplicate. May
// return an empty slice.
type ProposeFunc func(ctx context.Context, owner, entryText, recentContext string) ([]memory.Candidate, error)

// NewLLMExtractor returns a ProposeFunc backed by an LLM call.
func NewLLMExtractor(call llm.CallFunc) ProposeFunc {
	return func(ctx context.Context, owner, entryText, recentContext string) ([]memory.Candidate, error) {
		prompt := buildExtractionPrompt(entryText, recentContext)

		response, err := call(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm call: %w", err)
		}

		candidates, err := parseExtractionResponse(response)
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		return candidates, nil
	}
}

// maxEntryChars bounds the prompt size for very long entries.
const maxEntryChars = 20000

func buildExtractionPrompt(entryText, recentContext string) string {
	if len(entryText) > maxEntryChars {
		cut := maxEntryChars
		for cut > 0 && !utf8.RuneStart(entryText[cut]) {
			cut--
		}
		entryText = entryText[:cut]
	}

	var b strings.Builder
	b.WriteString(`Extract durable long-term memories about the author from this journal entry.
Only extract things worth remembering across months: stable facts, preferences, behavioral patterns, relationships, goals, and emotional triggers. Skip one-off events and small talk.

Return ONLY valid JSON in this shape (the list may be empty):

{
  "memories": [
    {
      "memory_type": "fact|preference|pattern|relationship|goal|emotion_trigger",
      "category": "work|health|hobby|family|personal|general",
      "content": "one concise statement about the author",
      "confidence": 0.0-1.0,
      "importance": 1-10
    }
  ]
}
`)

	if recentContext != "" {
		b.WriteString("\nWhat is already known about the author (do not repeat these verbatim):\n")
		b.WriteString(recentContext)
		b.WriteString("\n")
	}

	b.WriteString("\nJournal entry:\n")
	b.WriteString(entryText)

	return b.String()
}

type extractionResponse struct {
	Memories []memory.Candidate `json:"memories"`
}

func parseExtractionResponse(response string) ([]memory.Candidate, error) {
	var parsed extractionResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal candidates JSON: %w", err)
	}

	return parsed.Memories, nil
}
