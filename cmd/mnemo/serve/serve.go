// Package servecmder provides the serve cobra command for running the
// mnemo API server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lattermind/mnemo/api"
	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/config"
	"github.com/lattermind/mnemo/pkg/consolidate"
	"github.com/lattermind/mnemo/pkg/eventstream"
	kafkastream "github.com/lattermind/mnemo/pkg/eventstream/kafka"
	"github.com/lattermind/mnemo/pkg/eventstream/nop"
	"github.com/lattermind/mnemo/pkg/extraction"
	"github.com/lattermind/mnemo/pkg/llm"
	"github.com/lattermind/mnemo/pkg/logger"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/recall"
	"github.com/lattermind/mnemo/pkg/storage"
	"github.com/lattermind/mnemo/pkg/storage/inmemory"
	"github.com/lattermind/mnemo/pkg/storage/postgres"
	"github.com/lattermind/mnemo/pkg/storage/sqlite"
)

type serveCommander struct {
	listen    string
	logFile   string
	debug     bool
	configDir string
	logger    *slog.Logger
}

const serveLongDesc string = `Run the mnemo API server.

The server accepts journal entry notifications, extracts memories from
them, serves memory context for prompt assembly, and consolidates
memory sets that grow past the configured threshold.`

const serveShortDesc string = "Run the mnemo API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}

			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for API server to listen on (overrides config)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
	)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.listen != "" {
		cfg.API.Listen = c.listen
	}

	driver, err := newStorageDriver(cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	clk := clock.System{}
	store := memstore.NewStore(driver, clk, c.logger)
	recallSvc := recall.NewService(store, driver, clk, c.logger)

	call, err := llm.NewCaller(llm.CallerConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM caller: %w", err)
	}

	events := newPublisher(cfg, c.logger)
	defer events.Close()

	pipeline := extraction.NewPipeline(extraction.Config{
		Propose:       extraction.NewLLMExtractor(call),
		Events:        events,
		MaxConcurrent: cfg.Extraction.MaxConcurrent,
	}, driver, store, recallSvc, clk, c.logger)

	engine := consolidate.NewEngine(store, driver,
		consolidate.NewLLMPlanner(call, cfg.Consolidation.Target),
		clk, c.logger, cfg.Consolidation.Threshold, cfg.Consolidation.Target)

	server := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
	}, store, recallSvc, pipeline, engine, events, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

func (c *serveCommander) loadConfig() (*config.Config, error) {
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

func newStorageDriver(cfg *config.Config, log *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		driver, err := sqlite.NewDriver(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", cfg.Storage.SQLitePath)
		return driver, nil
	case "postgres":
		driver, err := postgres.NewDriver(context.Background(), cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres driver: %w", err)
		}
		log.Info("using Postgres storage")
		return driver, nil
	default:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

func newPublisher(cfg *config.Config, log *slog.Logger) eventstream.Publisher {
	if !cfg.EventStream.Enabled {
		return nop.NewPublisher()
	}

	log.Info("publishing memory events to Kafka",
		"brokers", cfg.EventStream.Brokers,
		"topic", cfg.EventStream.Topic,
	)
	return kafkastream.NewPublisher(cfg.EventStream.Brokers, cfg.EventStream.Topic)
}
