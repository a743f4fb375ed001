package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/gpurace/cmd/gpurace/handlers"
)

// Cleanup returns the command that removes what a race left behind.
func Cleanup() *cobra.Command {
	var sessionID, keep string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete Hetzner Cloud servers and SSH keys labelled with a race session",
		Long: `Delete every Hetzner Cloud server and SSH key labelled with a race session.

Use this after an interrupted race. Pass --keep with the winning server's
name to delete only the losers; the session key stays in that case.
Requires HCLOUD_TOKEN.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), sessionID, keep)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Race session ID (required)")
	cmd.Flags().StringVar(&keep, "keep", "", "Server name to keep")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
