package recall

import (
	"sort"
	"time"

	"github.com/lattermind/mnemo/pkg/memory"
)

// Hybrid scoring weights. Importance and mention frequency carry the
// baseline; a recent confirmation and an explicit user confirmation add
// flat boosts.
const (
	importanceWeight   = 0.4
	mentionWeight      = 0.3
	recencyBoost       = 2.0
	userConfirmedBoost = 1.0

	recencyWindow = 7 * 24 * time.Hour
)

// maxRankedMemories caps how many memories feed the context summary.
const maxRankedMemories = 20

// hybridScore ranks a memory for retrieval:
// 0.4*importance + 0.3*mentionCount + 2 if confirmed within the last
// 7 days + 1 if user-confirmed.
func hybridScore(m *memory.Memory, now time.Time) float64 {
	score := importanceWeight*float64(m.Importance) + mentionWeight*float64(m.MentionCount)
	if now.Sub(m.LastConfirmedAt) <= recencyWindow {
		score += recencyBoost
	}
	if m.UserConfirmed {
		score += userConfirmedBoost
	}
	return score
}

// rank orders memories by hybrid score descending and returns at most
// maxRankedMemories of them. The sort is stable over the canonical input
// order so equal scores keep their relative positions, which keeps the
// output deterministic.
func rank(memories []*memory.Memory, now time.Time) []*memory.Memory {
	ranked := append([]*memory.Memory(nil), memories...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return hybridScore(ranked[i], now) > hybridScore(ranked[j], now)
	})

	if len(ranked) > maxRankedMemories {
		ranked = ranked[:maxRankedMemories]
	}

	return ranked
}
