package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/storage"
	"github.com/lattermind/mnemo/pkg/storage/inmemory"
)

func testMemory(id, owner string) *memory.Memory {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &memory.Memory{
		ID:              id,
		Owner:           owner,
		Type:            memory.TypeFact,
		Category:        memory.CategoryGeneral,
		Content:         "content of " + id,
		Confidence:      1.0,
		Importance:      5,
		FirstObservedAt: now,
		LastConfirmedAt: now,
		MentionCount:    1,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	Describe("memories", func() {
		It("stores and retrieves a memory", func() {
			m := testMemory("m-1", "user-1")
			Expect(driver.CreateMemory(ctx, m)).To(Succeed())

			got, err := driver.GetMemory(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(m))
		})

		It("returns NotFoundError for a missing id", func() {
			_, err := driver.GetMemory(ctx, "missing")
			Expect(err).To(HaveOccurred())
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("hands out clones, not shared pointers", func() {
			m := testMemory("m-1", "user-1")
			Expect(driver.CreateMemory(ctx, m)).To(Succeed())

			first, err := driver.GetMemory(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			first.Content = "mutated"

			second, err := driver.GetMemory(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Content).To(Equal("content of m-1"))
		})

		It("rejects updates to unknown memories", func() {
			err := driver.UpdateMemory(ctx, testMemory("ghost", "user-1"))
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("confirms atomically and reports missing ids", func() {
			m := testMemory("m-1", "user-1")
			Expect(driver.CreateMemory(ctx, m)).To(Succeed())

			at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
			ok, err := driver.ConfirmMemory(ctx, "m-1", at)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			got, err := driver.GetMemory(ctx, "m-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.MentionCount).To(Equal(2))
			Expect(got.LastConfirmedAt).To(Equal(at))

			ok, err = driver.ConfirmMemory(ctx, "missing", at)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("lists by owner with an active-only filter", func() {
			active := testMemory("m-1", "user-1")
			inactive := testMemory("m-2", "user-1")
			inactive.Active = false
			other := testMemory("m-3", "user-2")

			for _, m := range []*memory.Memory{active, inactive, other} {
				Expect(driver.CreateMemory(ctx, m)).To(Succeed())
			}

			all, err := driver.ListMemories(ctx, "user-1", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			onlyActive, err := driver.ListMemories(ctx, "user-1", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(onlyActive).To(HaveLen(1))
			Expect(onlyActive[0].ID).To(Equal("m-1"))
		})

		It("counts active memories per owner", func() {
			Expect(driver.CreateMemory(ctx, testMemory("m-1", "user-1"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, testMemory("m-2", "user-1"))).To(Succeed())

			count, err := driver.CountActiveMemories(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("hard-deletes by owner and reports the count", func() {
			Expect(driver.CreateMemory(ctx, testMemory("m-1", "user-1"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, testMemory("m-2", "user-1"))).To(Succeed())
			Expect(driver.CreateMemory(ctx, testMemory("m-3", "user-2"))).To(Succeed())

			removed, err := driver.DeleteMemoriesByOwner(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(2))

			count, err := driver.CountActiveMemories(ctx, "user-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("jobs", func() {
		newJob := func(id, owner, entryID string, status memory.JobStatus, createdAt time.Time) *memory.ExtractionJob {
			return &memory.ExtractionJob{
				ID:            id,
				Owner:         owner,
				SourceEntryID: entryID,
				Status:        status,
				CreatedAt:     createdAt,
			}
		}

		t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		It("stores and retrieves a job", func() {
			j := newJob("j-1", "user-1", "entry-1", memory.JobPending, t0)
			Expect(driver.CreateJob(ctx, j)).To(Succeed())

			got, err := driver.GetJob(ctx, "j-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(j))
		})

		It("finds the in-flight job for an entry", func() {
			Expect(driver.CreateJob(ctx, newJob("j-1", "user-1", "entry-1", memory.JobCompleted, t0))).To(Succeed())
			Expect(driver.CreateJob(ctx, newJob("j-2", "user-1", "entry-1", memory.JobProcessing, t0))).To(Succeed())

			inFlight, err := driver.GetInFlightJob(ctx, "user-1", "entry-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(inFlight).NotTo(BeNil())
			Expect(inFlight.ID).To(Equal("j-2"))
		})

		It("returns nil when no in-flight job exists", func() {
			Expect(driver.CreateJob(ctx, newJob("j-1", "user-1", "entry-1", memory.JobFailed, t0))).To(Succeed())

			inFlight, err := driver.GetInFlightJob(ctx, "user-1", "entry-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(inFlight).To(BeNil())
		})

		It("lists pending jobs oldest first with a limit", func() {
			Expect(driver.CreateJob(ctx, newJob("j-2", "user-1", "entry-2", memory.JobPending, t0.Add(time.Hour)))).To(Succeed())
			Expect(driver.CreateJob(ctx, newJob("j-1", "user-1", "entry-1", memory.JobPending, t0))).To(Succeed())
			Expect(driver.CreateJob(ctx, newJob("j-3", "user-1", "entry-3", memory.JobProcessing, t0))).To(Succeed())

			pending, err := driver.ListPendingJobs(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].ID).To(Equal("j-1"))
		})

		It("purges only terminal jobs before the cutoff", func() {
			Expect(driver.CreateJob(ctx, newJob("j-1", "user-1", "entry-1", memory.JobCompleted, t0))).To(Succeed())
			Expect(driver.CreateJob(ctx, newJob("j-2", "user-1", "entry-2", memory.JobPending, t0))).To(Succeed())
			Expect(driver.CreateJob(ctx, newJob("j-3", "user-1", "entry-3", memory.JobFailed, t0.Add(48*time.Hour)))).To(Succeed())

			removed, err := driver.PurgeTerminalJobs(ctx, t0.Add(24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(1))

			_, err = driver.GetJob(ctx, "j-1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			_, err = driver.GetJob(ctx, "j-2")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.GetJob(ctx, "j-3")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("context cache", func() {
		t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		It("upserts and retrieves per owner", func() {
			entry := &memory.ContextCacheEntry{
				Owner:          "user-1",
				ContextSummary: "first",
				LastUpdatedAt:  t0,
			}
			Expect(driver.UpsertCacheEntry(ctx, entry)).To(Succeed())

			entry.ContextSummary = "second"
			Expect(driver.UpsertCacheEntry(ctx, entry)).To(Succeed())

			got, err := driver.GetCacheEntry(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ContextSummary).To(Equal("second"))
			Expect(got.Fresh()).To(BeTrue())
		})

		It("invalidates an existing entry", func() {
			Expect(driver.UpsertCacheEntry(ctx, &memory.ContextCacheEntry{
				Owner:         "user-1",
				LastUpdatedAt: t0,
			})).To(Succeed())

			Expect(driver.InvalidateCacheEntry(ctx, "user-1", t0.Add(time.Minute))).To(Succeed())

			got, err := driver.GetCacheEntry(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Fresh()).To(BeFalse())
			Expect(got.InvalidatedAt).NotTo(BeNil())
		})

		It("treats invalidation of a missing entry as a no-op", func() {
			Expect(driver.InvalidateCacheEntry(ctx, "ghost", t0)).To(Succeed())
		})

		It("deletes an entry", func() {
			Expect(driver.UpsertCacheEntry(ctx, &memory.ContextCacheEntry{
				Owner:         "user-1",
				LastUpdatedAt: t0,
			})).To(Succeed())

			Expect(driver.DeleteCacheEntry(ctx, "user-1")).To(Succeed())

			_, err := driver.GetCacheEntry(ctx, "user-1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
})
