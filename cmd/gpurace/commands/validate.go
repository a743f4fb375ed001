package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/gpurace/cmd/gpurace/handlers"
)

// Validate returns the command that checks an intent without racing.
func Validate() *cobra.Command {
	var opts handlers.PlanOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the intent and list every violation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.IntentPath, "file", "f", "", "Path to intent file (default: gpurace.yaml)")
	f.StringVar(&opts.OffersPath, "offers", "", "Static offer catalog (YAML) instead of the provider's catalog")
	f.StringVar(&opts.Provider, "provider", "", "Provider catalog to query: sim or hcloud")
	f.StringVar(&opts.Balance, "balance", "", "Account balance override in dollars")
	f.BoolVar(&opts.JSON, "json", false, "Output in JSON format")

	return cmd
}
