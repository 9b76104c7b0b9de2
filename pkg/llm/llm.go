// Package llm provides the inference call used by the extraction and
// consolidation proposers. The rest of the system depends only on
// [CallFunc]; provider selection and transport live here.
package llm

import (
	"context"
	"strings"
)

// CallFunc is the signature for a single LLM inference call: one prompt in,
// raw text out.
type CallFunc func(ctx context.Context, prompt string) (string, error)

const (
	providerOpenAI    = "openai"
	providerAnthropic = "anthropic"
	providerOllama    = "ollama"
)

// ExtractJSON trims an LLM response down to the outermost JSON object,
// stripping markdown fences and surrounding prose the model may add.
func ExtractJSON(response string) string {
	if idx := strings.Index(response, "{"); idx >= 0 {
		endIdx := strings.LastIndex(response, "}")
		if endIdx > idx {
			return response[idx : endIdx+1]
		}
	}
	return response
}
