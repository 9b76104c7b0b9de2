package recall

import (
	"strings"

	"github.com/lattermind/mnemo/pkg/memory"
)

// categoryOrder is the fixed rendering priority for summary sections.
var categoryOrder = []memory.Category{
	memory.CategoryWork,
	memory.CategoryFamily,
	memory.CategoryPersonal,
	memory.CategoryHealth,
	memory.CategoryHobby,
	memory.CategoryGeneral,
}

// categoryHeaders maps each category to its rendered section header.
var categoryHeaders = map[memory.Category]string{
	memory.CategoryWork:     "Work:",
	memory.CategoryFamily:   "Family:",
	memory.CategoryPersonal: "Personal:",
	memory.CategoryHealth:   "Health:",
	memory.CategoryHobby:    "Hobby:",
	memory.CategoryGeneral:  "General:",
}

// buildSummary renders ranked memories as a category-grouped text block:
// one header per non-empty category in fixed priority order, one bullet per
// memory, blank line between sections. Within a category, memories keep
// their rank order. Deterministic for identical input.
func buildSummary(ranked []*memory.Memory, maxTokens int) string {
	var lines []string
	for _, category := range categoryOrder {
		var bullets []string
		for _, m := range ranked {
			if m.Category == category {
				bullets = append(bullets, "- "+m.Content)
			}
		}
		if len(bullets) == 0 {
			continue
		}

		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, categoryHeaders[category])
		lines = append(lines, bullets...)
	}

	return strings.Join(truncateLines(lines, maxTokens), "\n")
}

// truncateLines drops whole trailing lines once the running token estimate
// would exceed the budget. A line is never cut mid-way.
func truncateLines(lines []string, maxTokens int) []string {
	if maxTokens <= 0 {
		return nil
	}

	var total float64
	for i, line := range lines {
		total += estimateTokens(line)
		if total > float64(maxTokens) {
			return trimTrailingBlank(lines[:i])
		}
	}

	return lines
}

// estimateTokens approximates the token cost of one line: wide-script
// characters (CJK and friends) weigh ~1.5 tokens, everything else ~0.25.
// The estimate is intentionally simple and fully deterministic.
func estimateTokens(line string) float64 {
	var tokens float64
	for _, r := range line {
		if isWideRune(r) {
			tokens += 1.5
		} else {
			tokens += 0.25
		}
	}
	return tokens
}

// isWideRune reports whether r belongs to a wide script. CJK radicals
// onward (U+2E80) covers Han, Hiragana, Katakana, Hangul, and full-width
// forms.
func isWideRune(r rune) bool {
	return r >= 0x2E80
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
