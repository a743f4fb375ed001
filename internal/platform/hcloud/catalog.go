package hcloud

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/shopspring/decimal"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/pricing"
)

// Reliability scores. Hetzner publishes no per-host history, so the score
// only separates current types from ones being phased out.
const (
	reliabilityCurrent    = 99.0
	reliabilityDeprecated = 80.0
)

// balancedMinCores is the core count from which shared types count as
// balanced instead of economy.
const balancedMinCores = 4

// OfferID returns the offer ID of a server type at a location.
func OfferID(serverType, location string) string {
	return serverType + "@" + location
}

// ParseOfferID splits an offer ID into server type and location.
func ParseOfferID(id string) (serverType, location string, err error) {
	st, loc, ok := strings.Cut(id, "@")
	if !ok || st == "" || loc == "" {
		return "", "", fmt.Errorf("invalid offer id %q, want {type}@{location}", id)
	}
	return st, loc, nil
}

// TierOf maps a server type onto a performance tier.
func TierOf(st *hcloud.ServerType) config.Tier {
	switch {
	case st.CPUType == hcloud.CPUTypeDedicated:
		return config.TierPerformance
	case st.Cores >= balancedMinCores:
		return config.TierBalanced
	default:
		return config.TierEconomy
	}
}

// Offers implements offer.Catalog.
func (p *Provider) Offers(ctx context.Context, q offer.Query) ([]offer.Offer, error) {
	types, err := p.client.ServerType.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch server types: %w", err)
	}

	var prices *pricing.Prices
	if p.prices != nil {
		prices, err = p.prices.FetchPrices(ctx)
		if err != nil {
			p.log.Info("pricing API unavailable, using server type prices", "error", err.Error())
			prices = nil
		}
	}

	var out []offer.Offer
	for _, st := range types {
		if q.Tier != "" && string(TierOf(st)) != q.Tier {
			continue
		}
		out = append(out, p.offersFor(st, q.Locations, prices)...)
	}
	slices.SortStableFunc(out, func(a, b offer.Offer) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (p *Provider) offersFor(st *hcloud.ServerType, locations []string, prices *pricing.Prices) []offer.Offer {
	gpu, ok := p.gpus[st.Name]
	if !ok {
		gpu = GPU{Name: cpuOnly}
	}
	reliability := reliabilityCurrent
	if st.IsDeprecated() {
		reliability = reliabilityDeprecated
	}

	var out []offer.Offer
	for _, pr := range st.Pricings {
		if pr.Location == nil {
			continue
		}
		loc := pr.Location.Name
		if len(locations) > 0 && !slices.Contains(locations, loc) {
			continue
		}

		price, ok := prices.ServerHourly(st.Name, loc)
		if !ok {
			var err error
			price, err = decimal.NewFromString(pr.Hourly.Net)
			if err != nil {
				continue
			}
		}

		out = append(out, offer.Offer{
			ID:          OfferID(st.Name, loc),
			GPUName:     gpu.Name,
			NumGPUs:     gpu.Count,
			HourlyPrice: price,
			Verified:    true,
			Reliability: reliability,
			Location:    loc,
		})
	}
	return out
}

var _ offer.Catalog = (*Provider)(nil)
