package hcloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/gpurace/internal/util/async"
	"github.com/imamik/gpurace/internal/util/labels"
)

// cleanupParallelism bounds concurrent delete calls.
const cleanupParallelism = 5

// CleanupReport lists what a cleanup removed.
type CleanupReport struct {
	Servers []string `json:"servers"`
	SSHKeys []string `json:"ssh_keys"`
}

// CleanupSession deletes every server and SSH key labelled with the
// session, keeping the server named keep (if any). Servers go first so
// the key is never removed from under a booting machine. All deletions
// are attempted; failures are joined.
func (p *Provider) CleanupSession(ctx context.Context, sessionID, keep string) (*CleanupReport, error) {
	selector := labels.SelectorForSession(sessionID)
	report := &CleanupReport{}
	log := p.log.WithValues("session", sessionID)

	servers, err := p.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return report, fmt.Errorf("failed to list servers: %w", err)
	}

	var tasks []async.Task
	for _, s := range servers {
		if s.Name == keep {
			continue
		}
		report.Servers = append(report.Servers, s.Name)
		tasks = append(tasks, async.Task{
			Name: "server " + s.Name,
			Func: func(ctx context.Context) error {
				log.Info("deleting server", "server", s.Name, "id", s.ID)
				p.clearEndpoint(s.Name)
				return p.deleteServer(ctx, s)
			},
		})
	}
	serverErr := async.RunLimited(ctx, cleanupParallelism, tasks)

	if keep != "" {
		// keys stay while a server of the session is kept
		return report, serverErr
	}

	keys, err := p.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: selector},
	})
	if err != nil {
		return report, errors.Join(serverErr, fmt.Errorf("failed to list ssh keys: %w", err))
	}

	var keyErrs []error
	for _, k := range keys {
		log.Info("deleting ssh key", "key", k.Name, "id", k.ID)
		if _, err := p.client.SSHKey.Delete(ctx, k); err != nil && !IsNotFound(err) {
			keyErrs = append(keyErrs, fmt.Errorf("ssh key %q: %w", k.Name, err))
			continue
		}
		report.SSHKeys = append(report.SSHKeys, k.Name)
	}

	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()

	return report, errors.Join(serverErr, errors.Join(keyErrs...))
}
