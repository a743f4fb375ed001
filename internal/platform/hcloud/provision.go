package hcloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/gpurace/internal/provisioning/race"
	"github.com/imamik/gpurace/internal/util/labels"
	"github.com/imamik/gpurace/internal/util/naming"
	"github.com/imamik/gpurace/internal/util/netutil"
	"github.com/imamik/gpurace/internal/util/retry"
)

// Progress checkpoints reported to the race.
const (
	progressKeyReady   = 5
	progressCreateFrom = 15
	progressCreateTo   = 60
	progressRunning    = 70
	progressPortOpen   = 85
	progressReachable  = 100
)

// ErrNoPublicIP is returned when a created server has no public IPv4.
var ErrNoPublicIP = errors.New("server has no public IPv4 address")

// Provision implements race.Provisioner.
func (p *Provider) Provision(ctx context.Context, a race.Attempt, report race.ProgressFunc) error {
	serverType, location, err := ParseOfferID(a.Offer.ID)
	if err != nil {
		return err
	}

	sess, err := p.ensureKey(ctx, a.SessionID)
	if err != nil {
		return err
	}
	report(progressKeyReady)

	name := naming.Server(a.SessionID, a.CandidateID)
	log := p.log.WithValues("server", name, "round", a.Round)

	createCtx, cancel := context.WithTimeout(ctx, p.settings.ServerCreate)
	defer cancel()

	result, err := p.createServer(createCtx, hcloud.ServerCreateOpts{
		Name:       name,
		ServerType: &hcloud.ServerType{Name: serverType},
		Image:      &hcloud.Image{Name: p.image},
		Location:   &hcloud.Location{Name: location},
		SSHKeys:    []*hcloud.SSHKey{sess.sshKey},
		UserData:   p.userData,
		Labels: labels.NewLabelBuilder(a.SessionID).
			WithCandidate(a.CandidateID).
			WithRound(a.Round).
			Build(),
	})
	if err != nil {
		return err
	}
	log.V(1).Info("server created", "id", result.Server.ID)
	report(progressCreateFrom)

	if err := p.waitForCreate(createCtx, result, report); err != nil {
		return err
	}
	report(progressRunning)

	ip, err := p.publicIP(ctx, result.Server)
	if err != nil {
		return err
	}
	p.setEndpoint(name, ip)

	if err := p.waitPort(ctx, ip, netutil.SSHPort, p.settings.PortWait); err != nil {
		return fmt.Errorf("ssh port on %s: %w", ip, err)
	}
	report(progressPortOpen)

	if err := p.probe(ctx, ip, sess.keys); err != nil {
		return fmt.Errorf("ssh probe on %s: %w", ip, err)
	}
	report(progressReachable)
	log.Info("candidate reachable", "ip", ip)
	return nil
}

// createServer creates a server, retrying locks and rate limits. Capacity
// and validation errors end the attempt at once.
func (p *Provider) createServer(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.Do(ctx, func(ctx context.Context) error {
		res, _, err := p.client.Server.Create(ctx, opts)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(err)
		}
		result = res
		return nil
	},
		retry.WithMaxAttempts(p.settings.RetryMaxAttempts),
		retry.WithInitialDelay(p.settings.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			p.log.V(1).Info("retrying server create", "server", opts.Name, "attempt", attempt, "delay", delay, "error", err.Error())
		}),
	)
	if err != nil {
		if isCapacityError(err) {
			return result, fmt.Errorf("no capacity for %s in %s: %w", opts.ServerType.Name, opts.Location.Name, err)
		}
		return result, fmt.Errorf("failed to create server: %w", err)
	}
	return result, nil
}

// waitForCreate follows the create action and maps its progress onto the
// create span of the candidate's progress.
func (p *Provider) waitForCreate(ctx context.Context, result hcloud.ServerCreateResult, report race.ProgressFunc) error {
	if result.Action == nil {
		return nil
	}
	span := progressCreateTo - progressCreateFrom
	err := p.client.Action.WaitForFunc(ctx, func(update *hcloud.Action) error {
		report(progressCreateFrom + update.Progress*span/100)
		return nil
	}, result.Action)
	if err != nil {
		return fmt.Errorf("failed to wait for server creation: %w", err)
	}

	// boot and network setup run as follow-up actions
	if len(result.NextActions) > 0 {
		if err := p.client.Action.WaitFor(ctx, result.NextActions...); err != nil {
			return fmt.Errorf("failed to wait for server start: %w", err)
		}
	}
	return nil
}

func (p *Provider) publicIP(ctx context.Context, server *hcloud.Server) (string, error) {
	if server.PublicNet.IPv4.IP != nil && !server.PublicNet.IPv4.IP.IsUnspecified() {
		return server.PublicNet.IPv4.IP.String(), nil
	}
	fresh, _, err := p.client.Server.GetByID(ctx, server.ID)
	if err != nil {
		return "", fmt.Errorf("failed to refresh server %s: %w", server.Name, err)
	}
	if fresh == nil || fresh.PublicNet.IPv4.IP == nil || fresh.PublicNet.IPv4.IP.IsUnspecified() {
		return "", ErrNoPublicIP
	}
	return fresh.PublicNet.IPv4.IP.String(), nil
}

// Teardown implements race.Provisioner. It deletes the candidate's server
// by name and succeeds when there is nothing to delete.
func (p *Provider) Teardown(ctx context.Context, a race.Attempt) error {
	name := naming.Server(a.SessionID, a.CandidateID)
	defer p.clearEndpoint(name)

	return retry.Do(ctx, func(ctx context.Context) error {
		server, _, err := p.client.Server.GetByName(ctx, name)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to get server %s: %w", name, err))
		}
		if server == nil {
			return nil
		}
		if err := p.deleteServer(ctx, server); err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(err)
		}
		p.log.V(1).Info("server deleted", "server", name)
		return nil
	},
		retry.WithMaxAttempts(p.settings.RetryMaxAttempts),
		retry.WithInitialDelay(p.settings.RetryInitialDelay),
	)
}

func (p *Provider) deleteServer(ctx context.Context, server *hcloud.Server) error {
	res, _, err := p.client.Server.DeleteWithResult(ctx, server)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete server %s: %w", server.Name, err)
	}
	if res != nil && res.Action != nil {
		if err := p.client.Action.WaitFor(ctx, res.Action); err != nil {
			return fmt.Errorf("failed to wait for deletion of %s: %w", server.Name, err)
		}
	}
	return nil
}

var _ race.Provisioner = (*Provider)(nil)
