// Package mnemocmder assembles the mnemo root command.
package mnemocmder

import (
	"github.com/spf13/cobra"

	contextcmder "github.com/lattermind/mnemo/cmd/mnemo/context"
	jobscmder "github.com/lattermind/mnemo/cmd/mnemo/jobs"
	servecmder "github.com/lattermind/mnemo/cmd/mnemo/serve"
	wipecmder "github.com/lattermind/mnemo/cmd/mnemo/wipe"
)

const mnemoLongDesc string = `Mnemo maintains per-user long-term memory for a journaling companion.

Run services using:
  mnemo serve          Run the memory API server
  mnemo context        Print a user's memory context
  mnemo wipe           Hard-delete all memories for a user
  mnemo jobs purge     Remove old terminal extraction jobs`

const mnemoShortDesc string = "Mnemo - long-term memory for journaling companions"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mnemo",
		Short: mnemoShortDesc,
		Long:  mnemoLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory to read config.toml from")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(contextcmder.NewContextCmd())
	cmd.AddCommand(wipecmder.NewWipeCmd())
	cmd.AddCommand(jobscmder.NewJobsCmd())

	return cmd
}
