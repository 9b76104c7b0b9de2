// Package api exposes the mnemo memory engine to the chat-platform
// delivery layer over HTTP.
package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/lattermind/mnemo/pkg/consolidate"
	"github.com/lattermind/mnemo/pkg/eventstream"
	"github.com/lattermind/mnemo/pkg/extraction"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/recall"
)

// Server is the HTTP API server for the mnemo system.
type Server struct {
	config   Config
	store    *memstore.Store
	recall   *recall.Service
	pipeline *extraction.Pipeline
	engine   *consolidate.Engine
	events   eventstream.Publisher
	log      *slog.Logger
	app      *fiber.App
}

// NewServer creates an API server. All collaborators are injected so they
// can be shared with CLI commands and tests.
func NewServer(config Config, store *memstore.Store, recallSvc *recall.Service, pipeline *extraction.Pipeline, engine *consolidate.Engine, events eventstream.Publisher, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		store:    store,
		recall:   recallSvc,
		pipeline: pipeline,
		engine:   engine,
		events:   events,
		log:      log,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/v1/entries", s.handleDispatchEntry)
	app.Get("/v1/context/:owner", s.handleGetContext)
	app.Get("/v1/memories/:owner", s.handleListMemories)
	app.Patch("/v1/memories/:owner/:id", s.handleUpdateMemory)
	app.Post("/v1/memories/:owner/:id/confirm", s.handleConfirmMemory)
	app.Delete("/v1/memories/:owner/:id", s.handleDeleteMemory)
	app.Delete("/v1/memories/:owner", s.handleWipeMemories)
	app.Post("/v1/consolidate/:owner", s.handleConsolidate)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.log.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	s.pipeline.Wait()
	return s.app.Shutdown()
}
