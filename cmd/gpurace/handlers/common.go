// Package handlers implements the gpurace CLI commands.
package handlers

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/platform/hcloud"
	"github.com/imamik/gpurace/internal/platform/sim"
	"github.com/imamik/gpurace/internal/pricing"
	"github.com/imamik/gpurace/internal/provisioning"
	"github.com/imamik/gpurace/internal/provisioning/race"
	"github.com/imamik/gpurace/internal/ui/tui"
)

// Provider names accepted by --provider.
const (
	ProviderSim    = "sim"
	ProviderHCloud = "hcloud"
)

//go:embed demo_offers.yaml
var demoOffers []byte

var verbosity int

// SetVerbosity sets the log verbosity for every handler.
func SetVerbosity(v int) {
	verbosity = v
}

// Factory function variables - can be replaced in tests.
var (
	// newLogger builds the CLI logger.
	newLogger = defaultLogger

	// newSimProvider creates the simulated provider.
	newSimProvider = func(seed uint64) *sim.Provider {
		if seed == 0 {
			return sim.New()
		}
		return sim.New(sim.WithSeed(seed))
	}

	// newHCloudProvider creates the Hetzner Cloud provider.
	newHCloudProvider = hcloud.NewProvider

	// newProvisioningContext creates a new provisioning context.
	newProvisioningContext = provisioning.NewContext

	// interactive reports whether the live dashboard can be shown.
	interactive = tui.Interactive

	// runRaceTUI renders a running race.
	runRaceTUI = tui.RunRaceTUI

	// stdout receives user-facing output.
	stdout io.Writer = os.Stdout
)

// PlanOptions are the inputs shared by every command that reads an intent.
type PlanOptions struct {
	IntentPath string
	OffersPath string
	Provider   string
	Balance    string
	JSON       bool
}

// defaultLogger writes human-readable logs to stderr. Each -v lowers the
// zap level by one so that logr's V(n) calls become visible.
func defaultLogger(v int) logr.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-v))
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	z, err := cfg.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}

// loadIntent loads the intent at path, or discovers gpurace.yaml when path
// is empty. balance, if set, overrides the intent's balance.
func loadIntent(path, balance string) (*config.Intent, error) {
	if path == "" {
		found, err := config.FindIntentFile()
		if err != nil {
			return nil, fmt.Errorf("no intent file given and %w", err)
		}
		path = found
	}

	intent, err := config.LoadIntent(path)
	if err != nil {
		return nil, err
	}

	if balance != "" {
		b, err := decimal.NewFromString(strings.TrimPrefix(balance, "$"))
		if err != nil {
			return nil, fmt.Errorf("invalid --balance %q: %w", balance, err)
		}
		intent.Balance = b
	}
	return intent, nil
}

// backend pairs the catalog a race draws offers from with the provisioner
// that launches them.
type backend struct {
	name        string
	catalog     offer.Catalog
	provisioner race.Provisioner

	// cloud is set for the Hetzner backend.
	cloud *hcloud.Provider
}

// resolveProvider picks the backend name: the flag if given, else hcloud
// when a token is configured, else the simulator.
func resolveProvider(flag string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "":
		if hcloudToken() != "" {
			return ProviderHCloud, nil
		}
		return ProviderSim, nil
	case ProviderSim:
		return ProviderSim, nil
	case ProviderHCloud:
		return ProviderHCloud, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want %s or %s)", flag, ProviderSim, ProviderHCloud)
	}
}

func hcloudToken() string {
	return strings.TrimSpace(os.Getenv("HCLOUD_TOKEN"))
}

// newBackend wires the provider selected by opts.
func newBackend(opts PlanOptions, intent *config.Intent, settings *config.Settings, seed uint64, log logr.Logger) (*backend, error) {
	name, err := resolveProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	var static offer.Catalog
	if opts.OffersPath != "" {
		c, err := offer.LoadStaticCatalog(opts.OffersPath)
		if err != nil {
			return nil, err
		}
		static = c
	}

	switch name {
	case ProviderHCloud:
		token := hcloudToken()
		if token == "" {
			return nil, fmt.Errorf("HCLOUD_TOKEN environment variable is required for the %s provider", ProviderHCloud)
		}
		p := newHCloudProvider(token,
			hcloud.WithSettings(settings),
			hcloud.WithLogger(log.WithName("hcloud")),
			hcloud.WithPricing(pricing.NewClient(token)),
			hcloud.WithWorkload(intent),
		)
		b := &backend{name: name, catalog: p, provisioner: p, cloud: p}
		if static != nil {
			b.catalog = static
		}
		return b, nil

	default:
		if static == nil {
			c, err := offer.ParseStaticCatalog(demoOffers)
			if err != nil {
				return nil, fmt.Errorf("failed to load demo catalog: %w", err)
			}
			static = c
		}
		return &backend{name: name, catalog: static, provisioner: newSimProvider(seed)}, nil
	}
}

// planContext builds a provisioning context wired to b.
func planContext(ctx context.Context, intent *config.Intent, b *backend, settings *config.Settings, log logr.Logger) *provisioning.Context {
	pctx := newProvisioningContext(ctx, intent, b.catalog, b.provisioner)
	pctx.Settings = settings
	pctx.Logger = log
	return pctx
}
