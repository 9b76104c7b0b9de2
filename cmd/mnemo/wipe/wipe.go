// Package wipecmder provides the wipe cobra command for hard-deleting a
// user's memories.
package wipecmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lattermind/mnemo/pkg/clock"
	"github.com/lattermind/mnemo/pkg/config"
	"github.com/lattermind/mnemo/pkg/logger"
	"github.com/lattermind/mnemo/pkg/memstore"
	"github.com/lattermind/mnemo/pkg/storage"
	"github.com/lattermind/mnemo/pkg/storage/postgres"
	"github.com/lattermind/mnemo/pkg/storage/sqlite"
)

type wipeCommander struct {
	force     bool
	debug     bool
	configDir string
	logger    *slog.Logger
}

const wipeLongDesc string = `Hard-delete every memory record for a user, active or not, along with
their cached context. This is the privacy wipe: nothing is retained.`

const wipeShortDesc string = "Hard-delete all memories for a user"

func NewWipeCmd() *cobra.Command {
	cmder := &wipeCommander{}

	cmd := &cobra.Command{
		Use:   "wipe <owner>",
		Short: wipeShortDesc,
		Long:  wipeLongDesc,
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

	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func (c *wipeCommander) run(cmd *cobra.Command, owner string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	if !c.force {
		fmt.Fprintf(cmd.OutOrStdout(), "This permanently deletes all memories for %q. Continue? [y/N] ", owner)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	driver, err := openStorage(c.configDir)
	if err != nil {
		return err
	}
	defer driver.Close()

	store := memstore.NewStore(driver, clock.System{}, c.logger)

	removed, err := store.ClearAll(cmd.Context(), owner)
	if err != nil {
		return fmt.Errorf("wiping memories: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d memory records for %s\n", removed, owner)
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
		return nil, fmt.Errorf("wipe requires a persistent storage backend, got %q", cfg.Storage.Backend)
	}
}
