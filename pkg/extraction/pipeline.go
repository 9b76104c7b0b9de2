// Package extraction turns journal entries into memory records through
// asynchronous, idempotent jobs.
//
// Dispatch is the trigger: it records a job and hands the entry text to the
// external extraction call on a goroutine that outlives the triggering
// request. Failures are captured on the job, never propagated: writing a
// journal entry must not fail because memory enrichment failed.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/eventstream"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/recall"
	"github.com/lattermind/mnemo/pkg/storage"
)

// Retention window for terminal jobs; in-flight jobs are never purged.
const retentionWindow = 30 * 24 * time.Hour

// recentContextTokens is the budget for the summary handed to the proposer.
const recentContextTokens = 300

// LoadEntryFunc fetches a journal entry's text for deferred processing.
// The journal itself lives outside this system.
type LoadEntryFunc func(ctx context.Context, owner, entryID string) (string, error)

// Config holds the pipeline's collaborators and tuning.
type Config struct {
	Propose   ProposeFunc
	LoadEntry LoadEntryFunc // required only for Sweep

	// Events, when set, receives a memory-changed event after each job
	// that created memories. Publishing is best-effort.
	Events eventstream.Publisher

	// MaxConcurrent bounds simultaneous extraction calls. Defaults to 2.
	MaxConcurrent int
}

// Pipeline dispatches and executes extraction jobs.
type Pipeline struct {
	config  Config
	storage storage.Driver
	store   *memstore.Store
	recall  *recall.Service
	clock   clock.Clock
	log     *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPipeline creates an extraction pipeline.
func NewPipeline(config Config, driver storage.Driver, store *memstore.Store, recallSvc *recall.Service, clk clock.Clock, log *slog.Logger) *Pipeline {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}

	return &Pipeline{
		config:  config,
		storage: driver,
		store:   store,
		recall:  recallSvc,
		clock:   clk,
		log:     log,
		sem:     make(chan struct{}, config.MaxConcurrent),
	}
}

// Dispatch starts extraction for one journal entry. If a job for the entry
// is already pending or processing, the call is a no-op and returns that
// job, so duplicate upstream triggers collapse to a single execution. The
// check is check-then-act, not a lock: two truly concurrent dispatches may
// rarely both proceed, which later confirmation and consolidation absorb.
func (p *Pipeline) Dispatch(ctx context.Context, owner, entryID, entryText string) (*memory.ExtractionJob, error) {
	existing, err := p.storage.GetInFlightJob(ctx, owner, entryID)
	if err != nil {
		return nil, fmt.Errorf("check in-flight job: %w", err)
	}
	if existing != nil {
		p.log.Debug("extraction already in flight", "owner", owner, "entry", entryID, "job", existing.ID)
		return existing, nil
	}

	job := &memory.ExtractionJob{
		ID:            uuid.NewString(),
		Owner:         owner,
		SourceEntryID: entryID,
		Status:        memory.JobProcessing,
		CreatedAt:     p.clock.Now(),
	}
	if err := p.storage.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// The job outlives the triggering request on purpose.
		p.process(context.Background(), job, entryText)
	}()

	return job, nil
}

// Enqueue records a pending job for deferred processing without invoking
// the proposer. A later Sweep claims it. In-flight duplicates no-op.
func (p *Pipeline) Enqueue(ctx context.Context, owner, entryID string) (*memory.ExtractionJob, error) {
	existing, err := p.storage.GetInFlightJob(ctx, owner, entryID)
	if err != nil {
		return nil, fmt.Errorf("check in-flight job: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	job := &memory.ExtractionJob{
		ID:            uuid.NewString(),
		Owner:         owner,
		SourceEntryID: entryID,
		Status:        memory.JobPending,
		CreatedAt:     p.clock.Now(),
	}
	if err := p.storage.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	return job, nil
}

// Sweep claims up to limit pending jobs, oldest first, and processes them
// with bounded concurrency. Requires a LoadEntry func; entries that fail to
// load mark their job failed. Blocks until the claimed batch finishes.
func (p *Pipeline) Sweep(ctx context.Context, limit int) (int, error) {
	if p.config.LoadEntry == nil {
		return 0, fmt.Errorf("sweep requires a LoadEntry func")
	}

	pending, err := p.storage.ListPendingJobs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}

	for _, job := range pending {
		job.Status = memory.JobProcessing
		if err := p.storage.UpdateJob(ctx, job); err != nil {
			return 0, fmt.Errorf("claim job %s: %w", job.ID, err)
		}

		p.wg.Add(1)
		go func(job *memory.ExtractionJob) {
			defer p.wg.Done()

			text, err := p.config.LoadEntry(ctx, job.Owner, job.SourceEntryID)
			if err != nil {
				p.markFailed(ctx, job, fmt.Errorf("load entry: %w", err))
				return
			}
			p.process(ctx, job, text)
		}(job)
	}

	p.wg.Wait()
	return len(pending), nil
}

// process runs one extraction call and records the outcome on the job.
func (p *Pipeline) process(ctx context.Context, job *memory.ExtractionJob, entryText string) {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	recentContext := ""
	if p.recall != nil {
		if current, err := p.recall.GetContext(ctx, job.Owner, recentContextTokens); err == nil {
			recentContext = current.Summary
		}
	}

	candidates, err := p.config.Propose(ctx, job.Owner, entryText, recentContext)
	if err != nil {
		p.markFailed(ctx, job, err)
		return
	}

	created := 0
	var createdIDs []string
	for _, c := range candidates {
		m, err := p.store.Create(ctx, memstore.CreateParams{
			Owner:          job.Owner,
			Type:           c.Type,
			Content:        c.Content,
			Category:       c.Category,
			SourceEntryIDs: []string{job.SourceEntryID},
			Confidence:     c.Confidence,
			Importance:     c.Importance,
		})
		if err != nil {
			// A malformed candidate is skipped, not fatal to the batch.
			p.log.Warn("skipping invalid candidate", "job", job.ID, "error", err)
			continue
		}
		created++
		createdIDs = append(createdIDs, m.ID)
	}

	now := p.clock.Now()
	job.Status = memory.JobCompleted
	job.Extracted = candidates
	job.ProcessedAt = &now
	if err := p.storage.UpdateJob(ctx, job); err != nil {
		p.log.Error("failed to mark job completed", "job", job.ID, "error", err)
		return
	}

	if created > 0 && p.recall != nil {
		if err := p.recall.Invalidate(ctx, job.Owner); err != nil {
			p.log.Error("failed to invalidate context cache", "owner", job.Owner, "error", err)
		}
	}

	if created > 0 && p.config.Events != nil {
		event := &eventstream.MemoryChangedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeMemoryChanged,
			EventID:       uuid.NewString(),
			EmittedAt:     now,
			Owner:         job.Owner,
			Operation:     eventstream.OpExtracted,
			MemoryIDs:     createdIDs,
		}
		if err := p.config.Events.PublishMemoryChanged(ctx, event); err != nil {
			p.log.Warn("event publish failed", "owner", job.Owner, "error", err)
		}
	}

	p.log.Info("extraction completed", "owner", job.Owner, "entry", job.SourceEntryID, "memories", created)
}

// markFailed records the error as job notes. Extraction is best-effort;
// the failure is never surfaced to the journaling flow.
func (p *Pipeline) markFailed(ctx context.Context, job *memory.ExtractionJob, cause error) {
	now := p.clock.Now()
	job.Status = memory.JobFailed
	job.Notes = cause.Error()
	job.ProcessedAt = &now

	if err := p.storage.UpdateJob(ctx, job); err != nil {
		p.log.Error("failed to mark job failed", "job", job.ID, "error", err)
		return
	}

	p.log.Warn("extraction failed", "owner", job.Owner, "entry", job.SourceEntryID, "error", cause)
}

// PurgeOld removes completed and failed jobs older than the 30-day
// retention window. Pending and processing jobs are never purged.
func (p *Pipeline) PurgeOld(ctx context.Context) (int, error) {
	removed, err := p.storage.PurgeTerminalJobs(ctx, p.clock.Now().Add(-retentionWindow))
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}

	if removed > 0 {
		p.log.Info("purged old extraction jobs", "removed", removed)
	}
	return removed, nil
}

// Wait blocks until all in-flight extraction goroutines finish. Used on
// shutdown and in tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
