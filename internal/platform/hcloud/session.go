package hcloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/gpurace/internal/util/keygen"
	"github.com/imamik/gpurace/internal/util/labels"
	"github.com/imamik/gpurace/internal/util/naming"
)

// session holds the SSH key shared by all candidates of one race.
type session struct {
	mu     sync.Mutex
	keys   *keygen.KeyPair
	sshKey *hcloud.SSHKey
}

func (p *Provider) session(id string) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		s = &session{}
		p.sessions[id] = s
	}
	return s
}

// ensureKey uploads the session key on first use. A failed upload is not
// cached, the next candidate tries again.
func (p *Provider) ensureKey(ctx context.Context, id string) (*session, error) {
	s := p.session(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sshKey != nil {
		return s, nil
	}

	if s.keys == nil {
		keys, err := keygen.Generate(naming.SSHKey(id))
		if err != nil {
			return nil, err
		}
		s.keys = keys
	}

	key, _, err := p.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      naming.SSHKey(id),
		PublicKey: s.keys.PublicKey,
		Labels:    labels.NewLabelBuilder(id).Build(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload session key: %w", err)
	}
	s.sshKey = key
	return s, nil
}

// SessionKey returns the private key candidates of a session accept.
func (p *Provider) SessionKey(id string) (*keygen.KeyPair, bool) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys, s.keys != nil
}

// ReleaseSession deletes the session's uploaded public key. Servers that
// already booted keep it in authorized_keys.
func (p *Provider) ReleaseSession(ctx context.Context, id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sshKey == nil {
		return nil
	}
	if _, err := p.client.SSHKey.Delete(ctx, s.sshKey); err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete session key: %w", err)
	}
	s.sshKey = nil
	return nil
}

// Endpoint returns the public IP of a provisioned candidate.
func (p *Provider) Endpoint(sessionID, candidateID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ip, ok := p.endpoints[naming.Server(sessionID, candidateID)]
	return ip, ok
}

func (p *Provider) setEndpoint(server, ip string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints[server] = ip
}

func (p *Provider) clearEndpoint(server string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.endpoints, server)
}
