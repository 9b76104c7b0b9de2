// Package jobscmder provides the jobs cobra command group for extraction
// job maintenance.
package jobscmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/config"
	"github.com/lattermind/mnemo/pkg/extraction"
	"github.com/lattermind/mnemo/pkg/logger"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/storage"
	"github.com/lattermind/mnemo/pkg/storage/postgres"
	"github.com/lattermind/mnemo/pkg/storage/sqlite"
)

const jobsLongDesc string = `Maintain the extraction job log.

  mnemo jobs purge    Remove completed and failed jobs past retention`

const jobsShortDesc string = "Maintain extraction jobs"

func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: jobsShortDesc,
		Long:  jobsLongDesc,
	}

	cmd.AddCommand(newPurgeCmd())

	return cmd
}

type purgeCommander struct {
	debug     bool
	configDir string
	logger    *slog.Logger
}

func newPurgeCmd() *cobra.Command {
	cmder := &purgeCommander{}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove completed and failed jobs past retention",
		Long: `Remove completed and failed extraction jobs older than the 30-day
retention window. Pending and processing jobs are never removed.`,
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

			return cmder.run(cmd)
		},
	}

	return cmd
}

func (c *purgeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := openStorage(c.configDir)
	if err != nil {
		return err
	}
	defer driver.Close()

	clk := clock.System{}
	store := memstore.NewStore(driver, clk, c.logger)
	pipeline := extraction.NewPipeline(extraction.Config{}, driver, store, nil, clk, c.logger)

	removed, err := pipeline.PurgeOld(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d terminal jobs\n", removed)
	return nil
}

func openStorage(configDir string) (storage.Driver, error) {
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
		return nil, fmt.Errorf("jobs purge requires a persistent storage backend, got %q", cfg.Storage.Backend)
	}
}
