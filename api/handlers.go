package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lattermind/mnemo/pkg/eventstream"
	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/memstore"
)

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type dispatchEntryRequest struct {
	Owner   string `json:"owner"`
	EntryID string `json:"entry_id"`
	Text    string `json:"text"`
}

// handleDispatchEntry triggers extraction for a journal entry. The entry
// write itself happened upstream; enrichment is best-effort, so this always
// answers 202 once the job is recorded. Duplicate deliveries collapse onto
// the in-flight job.
func (s *Server) handleDispatchEntry(c *fiber.Ctx) error {
	var req dispatchEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Owner == "" || req.EntryID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "owner and entry_id are required")
	}

	job, err := s.pipeline.Dispatch(c.Context(), req.Owner, req.EntryID, req.Text)
	if err != nil {
		s.log.Error("dispatch failed", "owner", req.Owner, "entry", req.EntryID, "error", err)
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleGetContext(c *fiber.Ctx) error {
	owner := c.Params("owner")
	maxTokens := c.QueryInt("max_tokens", 0)

	result, err := s.recall.GetContext(c.Context(), owner, maxTokens)
	if err != nil {
		s.log.Error("get context failed", "owner", owner, "error", err)
		return fiber.ErrInternalServerError
	}

	return c.JSON(result)
}

func (s *Server) handleListMemories(c *fiber.Ctx) error {
	owner := c.Params("owner")

	var (
		memories []*memory.Memory
		err      error
	)
	switch {
	case c.Query("q") != "":
		memories, err = s.store.Search(c.Context(), owner, c.Query("q"))
	case c.Query("type") != "":
		t := memory.Type(c.Query("type"))
		if !t.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown memory type")
		}
		memories, err = s.store.ByType(c.Context(), owner, t)
	default:
		memories, err = s.store.GetActive(c.Context(), owner)
	}
	if err != nil {
		s.log.Error("list memories failed", "owner", owner, "error", err)
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"memories": memories})
}

type updateMemoryRequest struct {
	Content       *string          `json:"content"`
	Importance    *int             `json:"importance"`
	Category      *memory.Category `json:"category"`
	UserConfirmed *bool            `json:"user_confirmed"`
}

func (s *Server) handleUpdateMemory(c *fiber.Ctx) error {
	owner := c.Params("owner")
	id := c.Params("id")

	if err := s.requireOwned(c, owner, id); err != nil {
		return err
	}

	var req updateMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := s.store.Update(c.Context(), id, memstore.UpdateParams{
		Content:       req.Content,
		Importance:    req.Importance,
		Category:      req.Category,
		UserConfirmed: req.UserConfirmed,
	})
	if err != nil {
		var verr *memory.ValidationError
		if errors.As(err, &verr) {
			return fiber.NewError(fiber.StatusBadRequest, verr.Error())
		}
		s.log.Error("update failed", "id", id, "error", err)
		return fiber.ErrInternalServerError
	}
	if updated == nil {
		return fiber.ErrNotFound
	}

	if err := s.invalidateAndPublish(c.Context(), owner, eventstream.OpUpdated, id); err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(updated)
}

func (s *Server) handleConfirmMemory(c *fiber.Ctx) error {
	owner := c.Params("owner")
	id := c.Params("id")

	if err := s.requireOwned(c, owner, id); err != nil {
		return err
	}

	if err := s.store.Confirm(c.Context(), id); err != nil {
		s.log.Error("confirm failed", "id", id, "error", err)
		return fiber.ErrInternalServerError
	}

	if err := s.invalidateAndPublish(c.Context(), owner, eventstream.OpConfirmed, id); err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"confirmed": id})
}

func (s *Server) handleDeleteMemory(c *fiber.Ctx) error {
	owner := c.Params("owner")
	id := c.Params("id")

	if err := s.requireOwned(c, owner, id); err != nil {
		return err
	}

	if err := s.store.Delete(c.Context(), id); err != nil {
		s.log.Error("delete failed", "id", id, "error", err)
		return fiber.ErrInternalServerError
	}

	if err := s.invalidateAndPublish(c.Context(), owner, eventstream.OpDeleted, id); err != nil {
		return fiber.ErrInternalServerError
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleWipeMemories is the privacy wipe: hard-deletes everything for the
// owner. ClearAll purges the cache entry itself, so no extra invalidation
// is needed.
func (s *Server) handleWipeMemories(c *fiber.Ctx) error {
	owner := c.Params("owner")

	removed, err := s.store.ClearAll(c.Context(), owner)
	if err != nil {
		s.log.Error("wipe failed", "owner", owner, "error", err)
		return fiber.ErrInternalServerError
	}

	s.publish(c.Context(), owner, eventstream.OpWiped)

	return c.JSON(fiber.Map{"removed": removed})
}

func (s *Server) handleConsolidate(c *fiber.Ctx) error {
	owner := c.Params("owner")

	outcome, err := s.engine.Run(c.Context(), owner)
	if err != nil {
		s.log.Error("consolidation failed", "owner", owner, "error", err)
		return fiber.ErrInternalServerError
	}

	if outcome.Ran {
		s.publish(c.Context(), owner, eventstream.OpConsolidated, outcome.Outcome.NewIDs...)
	}

	return c.JSON(outcome)
}

// requireOwned answers 404 unless the memory at id belongs to owner.
// Memories are addressed by globally unique id, so without this check a
// request under the wrong owner path would mutate the record while
// invalidating the wrong cache entry, leaving the real owner's cached
// context stale but still marked fresh.
func (s *Server) requireOwned(c *fiber.Ctx, owner, id string) error {
	m, err := s.store.Get(c.Context(), owner, id)
	if err != nil {
		s.log.Error("load memory failed", "owner", owner, "id", id, "error", err)
		return fiber.ErrInternalServerError
	}
	if m == nil {
		return fiber.ErrNotFound
	}

	return nil
}

// invalidateAndPublish pushes the synchronous cache invalidation for a
// mutation and then emits the change event.
func (s *Server) invalidateAndPublish(ctx context.Context, owner string, op eventstream.Operation, ids ...string) error {
	if err := s.recall.Invalidate(ctx, owner); err != nil {
		s.log.Error("cache invalidation failed", "owner", owner, "error", err)
		return err
	}

	s.publish(ctx, owner, op, ids...)
	return nil
}

// publish emits a memory-changed event. Publishing is best-effort;
// failures are logged, never surfaced to the request.
func (s *Server) publish(ctx context.Context, owner string, op eventstream.Operation, ids ...string) {
	event := &eventstream.MemoryChangedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeMemoryChanged,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Owner:         owner,
		Operation:     op,
		MemoryIDs:     ids,
	}

	if err := s.events.PublishMemoryChanged(ctx, event); err != nil && !errors.Is(err, eventstream.ErrNilEvent) {
		s.log.Warn("event publish failed", "owner", owner, "op", op, "error", err)
	}
}
