package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/gpurace/cmd/gpurace/handlers"
)

// Race returns the command that runs a provisioning race.
func Race() *cobra.Command {
	var opts handlers.RaceOptions

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Validate the intent, select candidates and race them",
		Long: `Race several GPU offers and keep the first one that connects.

Candidates launch in rounds of GPURACE_BATCH_SIZE. A round that produces no
winner within GPURACE_ROUND_TIMEOUT escalates to the next batch, up to
GPURACE_MAX_ROUNDS rounds. Every losing machine is torn down.

Providers:
  sim     simulated flaky provider (default without HCLOUD_TOKEN)
  hcloud  Hetzner Cloud (default when HCLOUD_TOKEN is set)

Press q or Ctrl-C to cancel a running race.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Race(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.IntentPath, "file", "f", "", "Path to intent file (default: gpurace.yaml)")
	f.StringVar(&opts.OffersPath, "offers", "", "Static offer catalog (YAML) instead of the provider's catalog")
	f.StringVar(&opts.Provider, "provider", "", "Provider to race on: sim or hcloud")
	f.StringVar(&opts.Balance, "balance", "", "Account balance override in dollars")
	f.BoolVar(&opts.NoTUI, "no-tui", false, "Disable the live dashboard and log events instead")
	f.BoolVar(&opts.JSON, "json", false, "Output the result in JSON format")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while racing (e.g. :9090)")
	f.StringVar(&opts.KeyOut, "key-out", "", "Write the winner's SSH private key to this path (hcloud only)")
	f.Uint64Var(&opts.Seed, "seed", 0, "Seed for the simulated provider (0 picks one)")

	return cmd
}
