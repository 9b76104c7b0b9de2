package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lattermind/mnemo/pkg/llm"
	"github.com/lattermind/mnemo/pkg/memory"
)

// NewLLMPlanner returns a ProposeFunc backed by an LLM call. The model sees
// the full active set with ids and must return a plan assigning every id to
// exactly one action; the engine re-validates whatever comes back.
func NewLLMPlanner(call llm.CallFunc, target int) ProposeFunc {
	return func(ctx context.Context, owner string, active []*memory.Memory) (*Plan, error) {
		prompt := buildPlanPrompt(active, target)

		response, err := call(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm call: %w", err)
		}

		plan, err := parsePlanResponse(response)
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		return plan, nil
	}
}

func buildPlanPrompt(active []*memory.Memory, target int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You maintain a user's long-term memory set. Consolidate it down to roughly %d entries by merging near-duplicates and deactivating stale or trivial memories.

Return ONLY valid JSON in this shape:

{
  "keep": ["id", ...],
  "merge": [{"source_ids": ["id", "id", ...], "content": "merged statement", "memory_type": "fact|preference|pattern|relationship|goal|emotion_trigger", "category": "work|health|hobby|family|personal|general", "importance": 1-10}],
  "deactivate": ["id", ...]
}

Rules:
- Every memory ID below must appear in exactly one of keep, merge source_ids, or deactivate.
- Never invent IDs. Merge groups need at least 2 sources and non-empty content.
- Prefer keeping user-confirmed and high-importance memories.

Current memories:
`, target)

	for _, m := range active {
		confirmed := ""
		if m.UserConfirmed {
			confirmed = " (user-confirmed)"
		}
		fmt.Fprintf(&b, "- id=%s type=%s category=%s importance=%d mentions=%d%s: %s\n",
			m.ID, m.Type, m.Category, m.Importance, m.MentionCount, confirmed, m.Content)
	}

	return b.String()
}

func parsePlanResponse(response string) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan JSON: %w", err)
	}

	return &plan, nil
}
