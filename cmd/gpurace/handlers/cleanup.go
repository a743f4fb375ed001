package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/platform/hcloud"
)

// Cleanup handles the cleanup command.
//
// It deletes every Hetzner Cloud server and SSH key labelled with the
// session except the server named keep. Deletion is best effort: every
// resource is attempted and failures are reported together.
func Cleanup(ctx context.Context, sessionID, keep string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	token := hcloudToken()
	if token == "" {
		return fmt.Errorf("HCLOUD_TOKEN environment variable is required")
	}

	log := newLogger(verbosity)
	p := newHCloudProvider(token,
		hcloud.WithSettings(config.LoadSettings()),
		hcloud.WithLogger(log.WithName("hcloud")),
	)

	report, err := p.CleanupSession(ctx, sessionID, keep)
	if report != nil {
		for _, s := range report.Servers {
			fmt.Fprintf(stdout, "Deleted server %s\n", s)
		}
		for _, k := range report.SSHKeys {
			fmt.Fprintf(stdout, "Deleted SSH key %s\n", k)
		}
	}
	if err != nil {
		return fmt.Errorf("cleanup of session %s incomplete: %w", sessionID, err)
	}

	if report == nil || len(report.Servers)+len(report.SSHKeys) == 0 {
		fmt.Fprintf(stdout, "Nothing to clean up for session %s\n", sessionID)
		return nil
	}
	fmt.Fprintf(stdout, "%s Session %s cleaned up\n", checkMark, sessionID)
	return nil
}
