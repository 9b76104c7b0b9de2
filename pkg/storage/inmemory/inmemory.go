// Package inmemory provides a map-backed storage driver used for tests and
// single-process deployments without persistence.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/storage"
)

// Driver implements storage.Driver using in-process maps.
type Driver struct {
	mu sync.RWMutex

	// memories and jobs are keyed by record id; cache is keyed by owner.
	memories map[string]*memory.Memory
	jobs     map[string]*memory.ExtractionJob
	cache    map[string]*memory.ContextCacheEntry
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		memories: make(map[string]*memory.Memory),
		jobs:     make(map[string]*memory.ExtractionJob),
		cache:    make(map[string]*memory.ContextCacheEntry),
	}
}

// CreateMemory inserts a new memory record.
func (d *Driver) CreateMemory(_ context.Context, m *memory.Memory) error {
	if m == nil {
		return errors.New("cannot store nil memory")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.memories[m.ID] = m.Clone()
	return nil
}

// GetMemory retrieves a memory by id.
func (d *Driver) GetMemory(_ context.Context, id string) (*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.memories[id]
	if !ok {
		return nil, storage.NotFoundError{Entity: "memory", ID: id}
	}

	return m.Clone(), nil
}

// UpdateMemory overwrites an existing memory row.
func (d *Driver) UpdateMemory(_ context.Context, m *memory.Memory) error {
	if m == nil {
		return errors.New("cannot store nil memory")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.memories[m.ID]; !ok {
		return storage.NotFoundError{Entity: "memory", ID: m.ID}
	}

	d.memories[m.ID] = m.Clone()
	return nil
}

// ConfirmMemory bumps the mention count and last-confirmed timestamp as a
// single operation under the write lock.
func (d *Driver) ConfirmMemory(_ context.Context, id string, at time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.memories[id]
	if !ok {
		return false, nil
	}

	m.MentionCount++
	m.LastConfirmedAt = at
	m.UpdatedAt = at
	return true, nil
}

// ListMemories returns all of an owner's memories.
func (d *Driver) ListMemories(_ context.Context, owner string, activeOnly bool) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*memory.Memory
	for _, m := range d.memories {
		if m.Owner != owner {
			continue
		}
		if activeOnly && !m.Active {
			continue
		}
		result = append(result, m.Clone())
	}

	return result, nil
}

// CountActiveMemories returns the number of active memories for owner.
func (d *Driver) CountActiveMemories(_ context.Context, owner string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, m := range d.memories {
		if m.Owner == owner && m.Active {
			count++
		}
	}

	return count, nil
}

// DeleteMemoriesByOwner hard-deletes every memory row for owner.
func (d *Driver) DeleteMemoriesByOwner(_ context.Context, owner string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, m := range d.memories {
		if m.Owner == owner {
			delete(d.memories, id)
			removed++
		}
	}

	return removed, nil
}

// CreateJob inserts a new extraction job.
func (d *Driver) CreateJob(_ context.Context, j *memory.ExtractionJob) error {
	if j == nil {
		return errors.New("cannot store nil job")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.jobs[j.ID] = j.Clone()
	return nil
}

// GetJob retrieves a job by id.
func (d *Driver) GetJob(_ context.Context, id string) (*memory.ExtractionJob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	j, ok := d.jobs[id]
	if !ok {
		return nil, storage.NotFoundError{Entity: "extraction job", ID: id}
	}

	return j.Clone(), nil
}

// UpdateJob overwrites an existing job row.
func (d *Driver) UpdateJob(_ context.Context, j *memory.ExtractionJob) error {
	if j == nil {
		return errors.New("cannot store nil job")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.jobs[j.ID]; !ok {
		return storage.NotFoundError{Entity: "extraction job", ID: j.ID}
	}

	d.jobs[j.ID] = j.Clone()
	return nil
}

// GetInFlightJob returns the pending or processing job for the entry, or nil.
func (d *Driver) GetInFlightJob(_ context.Context, owner, sourceEntryID string) (*memory.ExtractionJob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, j := range d.jobs {
		if j.Owner == owner && j.SourceEntryID == sourceEntryID && j.Status.InFlight() {
			return j.Clone(), nil
		}
	}

	return nil, nil
}

// ListPendingJobs returns up to limit pending jobs, oldest first.
func (d *Driver) ListPendingJobs(_ context.Context, limit int) ([]*memory.ExtractionJob, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var pending []*memory.ExtractionJob
	for _, j := range d.jobs {
		if j.Status == memory.JobPending {
			pending = append(pending, j.Clone())
		}
	}

	sort.Slice(pending, func(i, k int) bool {
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

// PurgeTerminalJobs removes completed and failed jobs created before cutoff.
func (d *Driver) PurgeTerminalJobs(_ context.Context, cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, j := range d.jobs {
		if j.Status.Terminal() && j.CreatedAt.Before(cutoff) {
			delete(d.jobs, id)
			removed++
		}
	}

	return removed, nil
}

// GetCacheEntry retrieves the cache entry for owner.
func (d *Driver) GetCacheEntry(_ context.Context, owner string) (*memory.ContextCacheEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.cache[owner]
	if !ok {
		return nil, storage.NotFoundError{Entity: "context cache entry", ID: owner}
	}

	return e.Clone(), nil
}

// UpsertCacheEntry inserts or replaces the cache entry for its owner.
func (d *Driver) UpsertCacheEntry(_ context.Context, e *memory.ContextCacheEntry) error {
	if e == nil {
		return errors.New("cannot store nil cache entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache[e.Owner] = e.Clone()
	return nil
}

// InvalidateCacheEntry stamps the owner's entry; missing entries are a no-op.
func (d *Driver) InvalidateCacheEntry(_ context.Context, owner string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.cache[owner]
	if !ok {
		return nil
	}

	t := at
	e.InvalidatedAt = &t
	return nil
}

// DeleteCacheEntry removes the owner's entry; missing entries are a no-op.
func (d *Driver) DeleteCacheEntry(_ context.Context, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.cache, owner)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
