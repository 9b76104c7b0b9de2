// Package contextcmder provides the context cobra command for printing a
// user's memory context from the command line.
package contextcmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/config"
	"github.com/lattermind/mnemo/pkg/logger"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/recall"
	"github.com/lattermind/mnemo/pkg/storage"
	"github.com/lattermind/mnemo/pkg/storage/inmemory"
	"github.com/lattermind/mnemo/pkg/storage/postgres"
	"github.com/lattermind/mnemo/pkg/storage/sqlite"
)

type contextCommander struct {
	maxTokens int
	debug     bool
	configDir string
	logger    *slog.Logger
}

const contextLongDesc string = `Print the memory context block for a user, exactly as it would be
injected into a companion prompt.`

const contextShortDesc string = "Print a user's memory context"

func NewContextCmd() *cobra.Command {
	cmder := &contextCommander{}

	cmd := &cobra.Command{
		Use:   "context <owner>",
		Short: contextShortDesc,
		Long:  contextLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}

			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&cmder.maxTokens, "max-tokens", "t", 0, "Token budget for the context block (default: 500)")

	return cmd
}

func (c *contextCommander) run(cmd *cobra.Command, owner string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := openStorage(c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	clk := clock.System{}
	store := memstore.NewStore(driver, clk, c.logger)
	recallSvc := recall.NewService(store, driver, clk, c.logger)

	result, err := recallSvc.GetContext(cmd.Context(), owner, c.maxTokens)
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}

	if result.Summary == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "(no active memories)")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
	return nil
}

// openStorage opens the configured storage backend for one-shot CLI use.
func openStorage(configDir string, log *slog.Logger) (storage.Driver, error) {
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		return sqlite.NewDriver(cfg.Storage.SQLitePath)
	case "postgres":
		return postgres.NewDriver(context.Background(), cfg.Storage.PostgresDSN)
	default:
		log.Warn("in-memory storage holds no persisted memories")
		return inmemory.NewDriver(), nil
	}
}
