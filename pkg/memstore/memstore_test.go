package memstore_test

import (
	"context"
	"io"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/logger"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/storage/inmemory"
)

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
		clk    *clock.Fixed
		store  *memstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		clk = clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		store = memstore.NewStore(driver, clk, logger.New(logger.WithWriter(io.Discard)))
	})

	Describe("Create", func() {
		It("persists an active memory with defaults applied", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:          "user-1",
				Type:           memory.TypeFact,
				Content:        "Works as a nurse",
				SourceEntryIDs: []string{"entry-1"},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(m.ID).NotTo(BeEmpty())
			Expect(m.Category).To(Equal(memory.CategoryGeneral))
			Expect(m.Confidence).To(Equal(1.0))
			Expect(m.Importance).To(Equal(5))
			Expect(m.MentionCount).To(Equal(1))
			Expect(m.Active).To(BeTrue())
			Expect(m.FirstObservedAt).To(Equal(clk.Now()))
			Expect(m.LastConfirmedAt).To(Equal(clk.Now()))

			stored, err := driver.GetMemory(ctx, m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Content).To(Equal("Works as a nurse"))
		})

		It("keeps explicit confidence and importance", func() {
			confidence := 0.6
			importance := 9
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:      "user-1",
				Type:       memory.TypeGoal,
				Category:   memory.CategoryWork,
				Content:    "Wants a promotion this year",
				Confidence: &confidence,
				Importance: &importance,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Confidence).To(Equal(0.6))
			Expect(m.Importance).To(Equal(9))
			Expect(m.Category).To(Equal(memory.CategoryWork))
		})

		It("clamps confidence into [0, 1]", func() {
			confidence := 1.7
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:      "user-1",
				Type:       memory.TypeFact,
				Content:    "Overconfident",
				Confidence: &confidence,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Confidence).To(Equal(1.0))
		})

		It("collects every validation problem at once", func() {
			_, err := store.Create(ctx, memstore.CreateParams{
				Owner:    "user-1",
				Type:     memory.Type("vibe"),
				Category: memory.Category("cosmic"),
				Content:  "   ",
			})
			Expect(err).To(HaveOccurred())

			var verr *memory.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
			Expect(err.(*memory.ValidationError).Problems).To(HaveLen(3))
		})
	})

	Describe("Get", func() {
		It("returns the memory for its owner", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Works as a nurse",
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "user-1", m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(m.ID))
		})

		It("returns nil for a missing id", func() {
			got, err := store.Get(ctx, "user-1", "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("returns nil when the id belongs to another owner", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-2",
				Type:    memory.TypeFact,
				Content: "Not yours",
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "user-1", m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("Confirm", func() {
		It("bumps mention count and refreshes lastConfirmedAt", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Has two kids",
			})
			Expect(err).NotTo(HaveOccurred())

			clk.Advance(48 * time.Hour)
			Expect(store.Confirm(ctx, m.ID)).To(Succeed())

			updated, err := driver.GetMemory(ctx, m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MentionCount).To(Equal(2))
			Expect(updated.LastConfirmedAt).To(Equal(clk.Now()))
			Expect(updated.FirstObservedAt).To(Equal(m.FirstObservedAt))
		})

		It("ignores a missing id", func() {
			Expect(store.Confirm(ctx, "nope")).To(Succeed())
		})

		It("loses no increments under concurrent confirms", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Popular memory",
			})
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(store.Confirm(ctx, m.ID)).To(Succeed())
				}()
			}
			wg.Wait()

			updated, err := driver.GetMemory(ctx, m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.MentionCount).To(Equal(11))
		})
	})

	Describe("Update", func() {
		It("changes only the provided fields", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:    "user-1",
				Type:     memory.TypePreference,
				Category: memory.CategoryHobby,
				Content:  "Enjoys trail running",
			})
			Expect(err).NotTo(HaveOccurred())

			importance := 8
			updated, err := store.Update(ctx, m.ID, memstore.UpdateParams{Importance: &importance})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Importance).To(Equal(8))
			Expect(updated.Content).To(Equal("Enjoys trail running"))
			Expect(updated.Category).To(Equal(memory.CategoryHobby))
		})

		It("rejects empty content", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Something",
			})
			Expect(err).NotTo(HaveOccurred())

			empty := "  "
			_, err = store.Update(ctx, m.ID, memstore.UpdateParams{Content: &empty})
			Expect(err).To(HaveOccurred())
		})

		It("is a no-op for a missing id", func() {
			content := "ghost"
			updated, err := store.Update(ctx, "missing", memstore.UpdateParams{Content: &content})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeNil())
		})
	})

	Describe("Supersede", func() {
		It("deactivates the old memory and links the replacement", func() {
			old, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Old fact",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Supersede(ctx, old.ID, "new-id")).To(Succeed())

			stored, err := driver.GetMemory(ctx, old.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Active).To(BeFalse())
			Expect(stored.SupersededBy).NotTo(BeNil())
			Expect(*stored.SupersededBy).To(Equal("new-id"))
		})

		It("re-points the link on an already-superseded memory", func() {
			old, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Twice merged",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Supersede(ctx, old.ID, "first")).To(Succeed())
			Expect(store.Supersede(ctx, old.ID, "second")).To(Succeed())

			stored, err := driver.GetMemory(ctx, old.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.SupersededBy).To(Equal("second"))
		})

		It("ignores a missing id", func() {
			Expect(store.Supersede(ctx, "missing", "new")).To(Succeed())
		})
	})

	Describe("Delete", func() {
		It("soft-deletes without setting supersededBy", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner:   "user-1",
				Type:    memory.TypeFact,
				Content: "Retired fact",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, m.ID)).To(Succeed())

			stored, err := driver.GetMemory(ctx, m.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Active).To(BeFalse())
			Expect(stored.SupersededBy).To(BeNil())
		})

		It("ignores a missing id", func() {
			Expect(store.Delete(ctx, "missing")).To(Succeed())
		})
	})

	Describe("GetActive", func() {
		It("orders by importance, then recency of confirmation", func() {
			low, err := store.Create(ctx, memstore.CreateParams{
				Owner: "user-1", Type: memory.TypeFact, Content: "low",
			})
			Expect(err).NotTo(HaveOccurred())

			importance := 9
			high, err := store.Create(ctx, memstore.CreateParams{
				Owner: "user-1", Type: memory.TypeFact, Content: "high", Importance: &importance,
			})
			Expect(err).NotTo(HaveOccurred())

			clk.Advance(time.Hour)
			recent, err := store.Create(ctx, memstore.CreateParams{
				Owner: "user-1", Type: memory.TypeFact, Content: "recent",
			})
			Expect(err).NotTo(HaveOccurred())

			active, err := store.GetActive(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(3))
			Expect(active[0].ID).To(Equal(high.ID))
			Expect(active[1].ID).To(Equal(recent.ID))
			Expect(active[2].ID).To(Equal(low.ID))
		})

		It("excludes inactive memories", func() {
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner: "user-1", Type: memory.TypeFact, Content: "gone",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Delete(ctx, m.ID)).To(Succeed())

			active, err := store.GetActive(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
		})
	})

	Describe("targeted reads", func() {
		BeforeEach(func() {
			for _, p := range []memstore.CreateParams{
				{Owner: "user-1", Type: memory.TypeGoal, Content: "Run a marathon"},
				{Owner: "user-1", Type: memory.TypePattern, Content: "Stress-eats on deadlines"},
				{Owner: "user-1", Type: memory.TypeEmotionTrigger, Content: "Crowded trains"},
				{Owner: "user-1", Type: memory.TypeRelationship, Content: "Close to sister Ana"},
				{Owner: "user-1", Type: memory.TypeFact, Content: "Lives in Lisbon"},
				{Owner: "user-2", Type: memory.TypeGoal, Content: "Someone else's goal"},
			} {
				_, err := store.Create(ctx, p)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("returns goals for the owner only", func() {
			goals, err := store.Goals(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(goals).To(HaveLen(1))
			Expect(goals[0].Content).To(Equal("Run a marathon"))
		})

		It("returns patterns and triggers together", func() {
			found, err := store.PatternsAndTriggers(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(2))
		})

		It("returns relationships", func() {
			found, err := store.Relationships(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Content).To(ContainSubstring("Ana"))
		})

		It("searches content case-insensitively", func() {
			found, err := store.Search(ctx, "user-1", "LISBON")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Content).To(Equal("Lives in Lisbon"))
		})
	})

	Describe("ClearAll", func() {
		It("hard-deletes all rows and the cache entry", func() {
			for _, content := range []string{"one", "two"} {
				_, err := store.Create(ctx, memstore.CreateParams{
					Owner: "user-1", Type: memory.TypeFact, Content: content,
				})
				Expect(err).NotTo(HaveOccurred())
			}
			m, err := store.Create(ctx, memstore.CreateParams{
				Owner: "user-1", Type: memory.TypeFact, Content: "inactive",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Delete(ctx, m.ID)).To(Succeed())

			Expect(driver.UpsertCacheEntry(ctx, &memory.ContextCacheEntry{
				Owner:          "user-1",
				ContextSummary: "stale",
				LastUpdatedAt:  clk.Now(),
			})).To(Succeed())

			removed, err := store.ClearAll(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(3))

			all, err := driver.ListMemories(ctx, "user-1", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())

			_, err = driver.GetCacheEntry(ctx, "user-1")
			Expect(err).To(HaveOccurred())
		})

		It("succeeds for an owner with no memories", func() {
			removed, err := store.ClearAll(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeZero())
		})
	})
})
