// Package storage defines the persistence interface for mnemo records.
//
// The Driver is deliberately a generic CRUD surface (create, read, update,
// delete by owner or id, plus a count) for the three entity types. All
// domain logic (ordering, scoring, lifecycle rules) lives in the components
// above it, so every backend stays a thin mapping layer.
package storage

import (
	"context"
	"time"

	"github.com/lattermind/mnemo/pkg/memory"
)

// Driver persists memories, extraction jobs, and context cache entries.
// Implementations must treat every call as a single atomic operation.
type Driver interface {
	// CreateMemory inserts a new memory record.
	CreateMemory(ctx context.Context, m *memory.Memory) error

	// GetMemory retrieves a memory by id. Returns NotFoundError when absent.
	GetMemory(ctx context.Context, id string) (*memory.Memory, error)

	// UpdateMemory overwrites an existing memory row. Returns NotFoundError
	// when absent.
	UpdateMemory(ctx context.Context, m *memory.Memory) error

	// ConfirmMemory atomically increments the mention count and refreshes
	// the last-confirmed timestamp in one write, never read-modify-write.
	// Returns false without error when the id does not exist.
	ConfirmMemory(ctx context.Context, id string, at time.Time) (bool, error)

	// ListMemories returns all of an owner's memories, active only when
	// activeOnly is set. Order is unspecified; callers sort.
	ListMemories(ctx context.Context, owner string, activeOnly bool) ([]*memory.Memory, error)

	// CountActiveMemories returns the number of active memories for owner.
	CountActiveMemories(ctx context.Context, owner string) (int, error)

	// DeleteMemoriesByOwner hard-deletes every memory row for owner and
	// returns the removed count. Zero rows is not an error.
	DeleteMemoriesByOwner(ctx context.Context, owner string) (int, error)

	// CreateJob inserts a new extraction job.
	CreateJob(ctx context.Context, j *memory.ExtractionJob) error

	// GetJob retrieves a job by id. Returns NotFoundError when absent.
	GetJob(ctx context.Context, id string) (*memory.ExtractionJob, error)

	// UpdateJob overwrites an existing job row. Returns NotFoundError when
	// absent.
	UpdateJob(ctx context.Context, j *memory.ExtractionJob) error

	// GetInFlightJob returns the pending or processing job for
	// (owner, sourceEntryID), or nil when none is in flight.
	GetInFlightJob(ctx context.Context, owner, sourceEntryID string) (*memory.ExtractionJob, error)

	// ListPendingJobs returns up to limit pending jobs, oldest first.
	ListPendingJobs(ctx context.Context, limit int) ([]*memory.ExtractionJob, error)

	// PurgeTerminalJobs hard-deletes completed and failed jobs created
	// before cutoff, returning the removed count. In-flight jobs are never
	// purged.
	PurgeTerminalJobs(ctx context.Context, cutoff time.Time) (int, error)

	// GetCacheEntry retrieves the cache entry for owner. Returns
	// NotFoundError when absent.
	GetCacheEntry(ctx context.Context, owner string) (*memory.ContextCacheEntry, error)

	// UpsertCacheEntry inserts or replaces the cache entry for its owner.
	UpsertCacheEntry(ctx context.Context, e *memory.ContextCacheEntry) error

	// InvalidateCacheEntry stamps the owner's entry with at. A missing
	// entry is a no-op.
	InvalidateCacheEntry(ctx context.Context, owner string, at time.Time) error

	// DeleteCacheEntry removes the owner's entry. A missing entry is a
	// no-op.
	DeleteCacheEntry(ctx context.Context, owner string) error

	// Close releases backend resources.
	Close() error
}
