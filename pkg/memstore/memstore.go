// Package memstore implements lifecycle operations over memory records:
// creation with validation and defaults, confirmation, supersession, soft
// deletion, targeted reads, and the privacy wipe.
//
// The store never touches the context cache except during ClearAll, where
// the wipe must also purge the cached summary. For every other mutation the
// caller is responsible for pushing a cache invalidation, keeping the store
// decoupled from the cache layer.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/storage"
)

// Store manages memory record lifecycles on top of a storage driver.
type Store struct {
	storage storage.Driver
	clock   clock.Clock
	log     *slog.Logger
}

// NewStore creates a memory store.
func NewStore(driver storage.Driver, clk clock.Clock, log *slog.Logger) *Store {
	return &Store{
		storage: driver,
		clock:   clk,
		log:     log,
	}
}

// CreateParams are the inputs for creating a memory. Zero-valued optional
// fields take defaults: category general, confidence 1.0, importance 5.
type CreateParams struct {
	Owner          string
	Type           memory.Type
	Content        string
	Category       memory.Category
	SourceEntryIDs []string
	Confidence     *float64
	Importance     *int
	UserConfirmed  bool
}

// Create persists a new active memory with mentionCount 1 and both observed
// timestamps set to now. Returns a *memory.ValidationError listing every
// problem when the params are invalid.
func (s *Store) Create(ctx context.Context, p CreateParams) (*memory.Memory, error) {
	var problems []string
	if strings.TrimSpace(p.Content) == "" {
		problems = append(problems, "content must not be empty")
	}
	if !p.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown memory type: %s", p.Type))
	}
	if p.Category != "" && !p.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category: %s", p.Category))
	}
	if len(problems) > 0 {
		return nil, &memory.ValidationError{Problems: problems}
	}

	category := p.Category
	if category == "" {
		category = memory.CategoryGeneral
	}

	confidence := memory.DefaultConfidence
	if p.Confidence != nil {
		confidence = clamp01(*p.Confidence)
	}

	importance := memory.DefaultImportance
	if p.Importance != nil {
		importance = *p.Importance
	}

	now := s.clock.Now()
	m := &memory.Memory{
		ID:              uuid.NewString(),
		Owner:           p.Owner,
		Type:            p.Type,
		Category:        category,
		Content:         p.Content,
		SourceEntryIDs:  append([]string(nil), p.SourceEntryIDs...),
		Confidence:      confidence,
		Importance:      importance,
		FirstObservedAt: now,
		LastConfirmedAt: now,
		MentionCount:    1,
		Active:          true,
		UserConfirmed:   p.UserConfirmed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.storage.CreateMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}

	s.log.Debug("memory created", "owner", p.Owner, "id", m.ID, "type", m.Type)
	return m, nil
}

// GetActive returns all active memories for owner in the canonical
// relevance order: importance descending, then lastConfirmedAt descending.
func (s *Store) GetActive(ctx context.Context, owner string) ([]*memory.Memory, error) {
	memories, err := s.storage.ListMemories(ctx, owner, true)
	if err != nil {
		return nil, fmt.Errorf("list active memories: %w", err)
	}

	SortCanonical(memories)
	return memories, nil
}

// SortCanonical orders memories by importance descending, ties broken by
// lastConfirmedAt descending, then id for stability.
func SortCanonical(memories []*memory.Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Importance != memories[j].Importance {
			return memories[i].Importance > memories[j].Importance
		}
		if !memories[i].LastConfirmedAt.Equal(memories[j].LastConfirmedAt) {
			return memories[i].LastConfirmedAt.After(memories[j].LastConfirmedAt)
		}
		return memories[i].ID < memories[j].ID
	})
}

// Get loads one of owner's memories by id. A missing id, or an id that
// belongs to a different user, returns nil, nil. Callers addressing
// memories through an owner-scoped surface use this to reject cross-owner
// ids before mutating.
func (s *Store) Get(ctx context.Context, owner, id string) (*memory.Memory, error) {
	m, err := s.storage.GetMemory(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load memory: %w", err)
	}
	if m.Owner != owner {
		return nil, nil
	}

	return m, nil
}

// Confirm records fresh evidence for a memory: one atomic write bumping
// mentionCount and refreshing lastConfirmedAt. A missing id is a no-op.
func (s *Store) Confirm(ctx context.Context, id string) error {
	ok, err := s.storage.ConfirmMemory(ctx, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("confirm memory: %w", err)
	}
	if !ok {
		s.log.Debug("confirm on missing memory ignored", "id", id)
	}

	return nil
}

// UpdateParams are the mutable fields of an existing memory. Nil fields are
// left unchanged.
type UpdateParams struct {
	Content        *string
	Importance     *int
	Category       *memory.Category
	SourceEntryIDs []string
	UserConfirmed  *bool
}

// Update mutates content, importance, category, or provenance of an
// existing memory. A missing id is a no-op returning nil, nil.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*memory.Memory, error) {
	m, err := s.storage.GetMemory(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load memory: %w", err)
	}

	if p.Content != nil {
		if strings.TrimSpace(*p.Content) == "" {
			return nil, &memory.ValidationError{Problems: []string{"content must not be empty"}}
		}
		m.Content = *p.Content
	}
	if p.Importance != nil {
		m.Importance = *p.Importance
	}
	if p.Category != nil {
		if !p.Category.Valid() {
			return nil, &memory.ValidationError{Problems: []string{fmt.Sprintf("unknown category: %s", *p.Category)}}
		}
		m.Category = *p.Category
	}
	if p.SourceEntryIDs != nil {
		m.SourceEntryIDs = append([]string(nil), p.SourceEntryIDs...)
	}
	if p.UserConfirmed != nil {
		m.UserConfirmed = *p.UserConfirmed
	}
	m.UpdatedAt = s.clock.Now()

	if err := s.storage.UpdateMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}

	return m, nil
}

// Supersede deactivates oldID and links it to its replacement. The new
// memory is never touched. A missing oldID is a no-op. Superseding an
// already-superseded memory re-points the link (fan-in, last write wins).
func (s *Store) Supersede(ctx context.Context, oldID, newID string) error {
	m, err := s.storage.GetMemory(ctx, oldID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load memory: %w", err)
	}

	m.Active = false
	m.SupersededBy = &newID
	m.UpdatedAt = s.clock.Now()

	if err := s.storage.UpdateMemory(ctx, m); err != nil {
		return fmt.Errorf("supersede memory: %w", err)
	}

	s.log.Debug("memory superseded", "old", oldID, "new", newID)
	return nil
}

// Delete soft-deletes a memory, leaving supersededBy untouched so an
// outright deactivation stays distinguishable from a replacement. A missing
// id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	m, err := s.storage.GetMemory(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load memory: %w", err)
	}

	m.Active = false
	m.UpdatedAt = s.clock.Now()

	if err := s.storage.UpdateMemory(ctx, m); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}

	return nil
}

// ClearAll hard-deletes every memory row for owner and purges the owner's
// cache entry, returning the removed memory count. Used only for explicit
// user-initiated privacy wipes; succeeds even at zero rows.
func (s *Store) ClearAll(ctx context.Context, owner string) (int, error) {
	removed, err := s.storage.DeleteMemoriesByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("wipe memories: %w", err)
	}

	if err := s.storage.DeleteCacheEntry(ctx, owner); err != nil {
		return removed, fmt.Errorf("purge cache entry: %w", err)
	}

	s.log.Info("memories wiped", "owner", owner, "removed", removed)
	return removed, nil
}

// ByType returns active memories of a single type in canonical order.
func (s *Store) ByType(ctx context.Context, owner string, t memory.Type) ([]*memory.Memory, error) {
	return s.filterActive(ctx, owner, func(m *memory.Memory) bool {
		return m.Type == t
	})
}

// Goals returns active goal memories in canonical order.
func (s *Store) Goals(ctx context.Context, owner string) ([]*memory.Memory, error) {
	return s.ByType(ctx, owner, memory.TypeGoal)
}

// PatternsAndTriggers returns active behavioral patterns and emotional
// triggers in canonical order.
func (s *Store) PatternsAndTriggers(ctx context.Context, owner string) ([]*memory.Memory, error) {
	return s.filterActive(ctx, owner, func(m *memory.Memory) bool {
		return m.Type == memory.TypePattern || m.Type == memory.TypeEmotionTrigger
	})
}

// Relationships returns active relationship memories in canonical order.
func (s *Store) Relationships(ctx context.Context, owner string) ([]*memory.Memory, error) {
	return s.ByType(ctx, owner, memory.TypeRelationship)
}

// Search returns active memories whose content contains the keyword,
// case-insensitively, in canonical order.
func (s *Store) Search(ctx context.Context, owner, keyword string) ([]*memory.Memory, error) {
	needle := strings.ToLower(keyword)
	return s.filterActive(ctx, owner, func(m *memory.Memory) bool {
		return strings.Contains(strings.ToLower(m.Content), needle)
	})
}

func (s *Store) filterActive(ctx context.Context, owner string, keep func(*memory.Memory) bool) ([]*memory.Memory, error) {
	memories, err := s.storage.ListMemories(ctx, owner, true)
	if err != nil {
		return nil, fmt.Errorf("list active memories: %w", err)
	}

	filtered := memories[:0]
	for _, m := range memories {
		if keep(m) {
			filtered = append(filtered, m)
		}
	}

	SortCanonical(filtered)
	return filtered, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
