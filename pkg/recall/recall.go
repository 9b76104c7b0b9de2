// Package recall selects and formats the memories served to the reply
// generator, fronted by a per-owner context cache.
//
// GetContext is the hot path: on a cache hit the stored summary is returned
// with no recomputation; on a miss the active set is ranked with the hybrid
// score, rendered into a category-grouped summary under the token budget,
// and the result is upserted into the cache before returning. The narrower
// read paths (by type, goals, patterns, relationships, keyword search) live
// on the memory store and bypass this cache entirely.
package recall

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/storage"
)

// DefaultMaxTokens is the token budget applied when a caller passes 0.
const DefaultMaxTokens = 500

// Service computes and caches per-owner context summaries.
type Service struct {
	store   *memstore.Store
	storage storage.Driver
	clock   clock.Clock
	log     *slog.Logger
}

// NewService creates a recall service.
func NewService(store *memstore.Store, driver storage.Driver, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		storage: driver,
		clock:   clk,
		log:     log,
	}
}

// Context is the memory context served to the prompt builder.
type Context struct {
	Summary  string          `json:"summary"`
	Memories []memory.Memory `json:"memories"`

	// Cached reports whether the response was served from the cache.
	Cached bool `json:"cached"`
}

// GetContext returns the owner's formatted memory context within maxTokens
// (DefaultMaxTokens when 0). A fresh cache entry is served as-is; otherwise
// the context is recomputed from current data and cached.
func (s *Service) GetContext(ctx context.Context, owner string, maxTokens int) (*Context, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	entry, err := s.storage.GetCacheEntry(ctx, owner)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("load cache entry: %w", err)
	}
	if entry.Fresh() {
		s.log.Debug("context cache hit", "owner", owner)
		return &Context{Summary: entry.ContextSummary, Memories: entry.Snapshot, Cached: true}, nil
	}

	active, err := s.store.GetActive(ctx, owner)
	if err != nil {
		return nil, err
	}

	ranked := rank(active, s.clock.Now())
	summary := buildSummary(ranked, maxTokens)

	snapshot := make([]memory.Memory, len(ranked))
	for i, m := range ranked {
		snapshot[i] = *m
	}

	now := s.clock.Now()
	if err := s.storage.UpsertCacheEntry(ctx, &memory.ContextCacheEntry{
		Owner:          owner,
		ContextSummary: summary,
		Snapshot:       snapshot,
		LastUpdatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("cache context: %w", err)
	}

	s.log.Debug("context recomputed", "owner", owner, "memories", len(ranked))
	return &Context{Summary: summary, Memories: snapshot}, nil
}

// Invalidate marks the owner's cache entry stale. Mutating callers invoke
// this synchronously after every write so a hit can never be false-fresh.
func (s *Service) Invalidate(ctx context.Context, owner string) error {
	if err := s.storage.InvalidateCacheEntry(ctx, owner, s.clock.Now()); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}
