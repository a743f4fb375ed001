package hcloud

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/platform/ssh"
	"github.com/imamik/gpurace/internal/pricing"
	"github.com/imamik/gpurace/internal/util/keygen"
	"github.com/imamik/gpurace/internal/util/netutil"
)

// DefaultImage is the OS image candidates boot.
const DefaultImage = "ubuntu-24.04"

// GPU describes the accelerator attached to a server type.
type GPU struct {
	Name  string
	Count int
}

// DefaultGPUModels maps Hetzner server types to their GPUs. Types not in
// the map are offered as CPU-only machines.
func DefaultGPUModels() map[string]GPU {
	return map[string]GPU{
		"gex44":  {Name: "RTX 4000 SFF Ada", Count: 1},
		"gex130": {Name: "RTX 6000 Ada", Count: 1},
	}
}

// cpuOnly is the GPU name of types without an accelerator.
const cpuOnly = "none"

// Provider implements offer.Catalog and race.Provisioner on Hetzner Cloud.
type Provider struct {
	client   *hcloud.Client
	settings *config.Settings
	log      logr.Logger
	prices   *pricing.Client
	gpus     map[string]GPU
	image    string
	userData string

	waitPort func(ctx context.Context, ip string, port int, timeout time.Duration) error
	probe    func(ctx context.Context, ip string, key *keygen.KeyPair) error

	mu        sync.Mutex
	sessions  map[string]*session
	endpoints map[string]string
}

// Option configures a Provider.
type Option func(*Provider)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(p *Provider) {
		p.client = hc
	}
}

// WithSettings sets timeouts and retry bounds.
func WithSettings(s *config.Settings) Option {
	return func(p *Provider) {
		p.settings = s
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Provider) {
		p.log = log
	}
}

// WithPricing makes the catalog read prices from the pricing API instead
// of the server type listing.
func WithPricing(c *pricing.Client) Option {
	return func(p *Provider) {
		p.prices = c
	}
}

// WithGPUModels replaces the server type to GPU mapping.
func WithGPUModels(gpus map[string]GPU) Option {
	return func(p *Provider) {
		p.gpus = gpus
	}
}

// WithImage sets the OS image.
func WithImage(image string) Option {
	return func(p *Provider) {
		p.image = image
	}
}

// WithWorkload makes every candidate start the intent's container on boot.
func WithWorkload(intent *config.Intent) Option {
	return func(p *Provider) {
		p.userData = UserData(intent)
	}
}

// NewProvider creates a provider for the given API token.
func NewProvider(token string, opts ...Option) *Provider {
	p := &Provider{
		client:    hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("gpurace", "")),
		settings:  config.LoadSettings(),
		log:       logr.Discard(),
		gpus:      DefaultGPUModels(),
		image:     DefaultImage,
		waitPort:  netutil.WaitForPort,
		probe:     sshProbe,
		sessions:  make(map[string]*session),
		endpoints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HCloudClient returns the underlying hcloud.Client.
func (p *Provider) HCloudClient() *hcloud.Client {
	return p.client
}

func sshProbe(ctx context.Context, ip string, key *keygen.KeyPair) error {
	signer, err := key.Signer()
	if err != nil {
		return err
	}
	client, err := ssh.NewClient(ssh.Config{Host: ip, Signer: signer})
	if err != nil {
		return err
	}
	return client.Probe(ctx)
}
