// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/gpurace/cmd/gpurace/handlers"
)

// Root returns the root command for the gpurace CLI.
func Root() *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:           "gpurace",
		Short:         "Race GPU offers and keep the first machine that connects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			handlers.SetVerbosity(verbosity)
		},
	}

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")

	cmd.AddCommand(Race())
	cmd.AddCommand(Offers())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Version())

	return cmd
}
