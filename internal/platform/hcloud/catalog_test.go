package hcloud

import (
	"context"
	"net/http"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/pricing"
)

const serverTypesJSON = `{"server_types": [
	{"id": 1, "name": "cx22", "description": "CX22", "cores": 2, "memory": 4, "disk": 40,
	 "cpu_type": "shared", "architecture": "x86", "storage_type": "local",
	 "prices": [
		{"location": "fsn1", "price_hourly": {"net": "0.0060", "gross": "0.0071"}, "price_monthly": {"net": "3.79", "gross": "4.51"}},
		{"location": "nbg1", "price_hourly": {"net": "0.0061", "gross": "0.0072"}, "price_monthly": {"net": "3.79", "gross": "4.51"}}
	 ]},
	{"id": 2, "name": "cpx41", "description": "CPX41", "cores": 8, "memory": 16, "disk": 240,
	 "cpu_type": "shared", "architecture": "x86", "storage_type": "local",
	 "prices": [
		{"location": "fsn1", "price_hourly": {"net": "0.0440", "gross": "0.0524"}, "price_monthly": {"net": "27.49", "gross": "32.71"}}
	 ]},
	{"id": 3, "name": "gex44", "description": "GEX44", "cores": 14, "memory": 64, "disk": 1000,
	 "cpu_type": "dedicated", "architecture": "x86", "storage_type": "local",
	 "prices": [
		{"location": "fsn1", "price_hourly": {"net": "0.3080", "gross": "0.3665"}, "price_monthly": {"net": "184.00", "gross": "218.96"}},
		{"location": "nbg1", "price_hourly": {"net": "bogus", "gross": "bogus"}, "price_monthly": {"net": "184.00", "gross": "218.96"}}
	 ]},
	{"id": 4, "name": "ccx13", "description": "CCX13", "cores": 2, "memory": 8, "disk": 80,
	 "cpu_type": "dedicated", "architecture": "x86", "storage_type": "local",
	 "deprecation": {"announced": "2024-01-01T00:00:00+00:00", "unavailable_after": "2099-01-01T00:00:00+00:00"},
	 "prices": [
		{"location": "fsn1", "price_hourly": {"net": "0.0200", "gross": "0.0238"}, "price_monthly": {"net": "12.49", "gross": "14.86"}}
	 ]}
]}`

func catalogServer(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	ts.handleFunc("/server_types", func(w http.ResponseWriter, _ *http.Request) {
		rawResponse(w, http.StatusOK, serverTypesJSON)
	})
	return ts
}

func ids(offers []offer.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}

func TestOffers_FiltersByTierAndLocation(t *testing.T) {
	t.Parallel()
	p := catalogServer(t).provider(nil)

	tests := []struct {
		name string
		q    offer.Query
		want []string
	}{
		{"everything", offer.Query{}, []string{"ccx13@fsn1", "cpx41@fsn1", "cx22@fsn1", "cx22@nbg1", "gex44@fsn1"}},
		{"economy", offer.Query{Tier: string(config.TierEconomy)}, []string{"cx22@fsn1", "cx22@nbg1"}},
		{"balanced", offer.Query{Tier: string(config.TierBalanced)}, []string{"cpx41@fsn1"}},
		{"performance in nbg1", offer.Query{Tier: string(config.TierPerformance), Locations: []string{"nbg1"}}, nil},
		{"nbg1", offer.Query{Locations: []string{"nbg1"}}, []string{"cx22@nbg1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Offers(context.Background(), tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestOffers_MapsServerTypes(t *testing.T) {
	t.Parallel()
	p := catalogServer(t).provider(nil)

	got, err := p.Offers(context.Background(), offer.Query{Tier: string(config.TierPerformance)})
	require.NoError(t, err)
	require.Len(t, got, 2)

	ccx, gex := got[0], got[1]
	assert.Equal(t, "RTX 4000 SFF Ada", gex.GPUName)
	assert.Equal(t, 1, gex.NumGPUs)
	assert.Equal(t, "0.308", gex.HourlyPrice.String())
	assert.True(t, gex.Verified)
	assert.Equal(t, reliabilityCurrent, gex.Reliability)
	assert.Equal(t, "fsn1", gex.Location)

	assert.Equal(t, cpuOnly, ccx.GPUName)
	assert.Zero(t, ccx.NumGPUs)
	assert.Equal(t, reliabilityDeprecated, ccx.Reliability)
}

func TestOffers_PricingAPIOverrides(t *testing.T) {
	t.Parallel()
	ts := catalogServer(t)
	ts.handleFunc("/pricing", func(w http.ResponseWriter, _ *http.Request) {
		rawResponse(w, http.StatusOK, `{"pricing": {"currency": "EUR", "server_types": [
			{"name": "gex44", "prices": [{"location": "nbg1", "price_hourly": {"net": "0.2990"}}]}
		]}}`)
	})
	p := ts.provider(nil, WithPricing(pricing.NewClientWithEndpoint("test-token", ts.server.URL)))

	got, err := p.Offers(context.Background(), offer.Query{Tier: string(config.TierPerformance)})
	require.NoError(t, err)

	// nbg1 is unparseable in the type listing but priced by the pricing API
	assert.Equal(t, []string{"ccx13@fsn1", "gex44@fsn1", "gex44@nbg1"}, ids(got))
	assert.Equal(t, "0.299", got[2].HourlyPrice.String())
}

func TestOffers_PricingAPIDownFallsBack(t *testing.T) {
	t.Parallel()
	ts := catalogServer(t)
	ts.handleFunc("/pricing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	p := ts.provider(nil, WithPricing(pricing.NewClientWithEndpoint("test-token", ts.server.URL)))

	got, err := p.Offers(context.Background(), offer.Query{Tier: string(config.TierBalanced)})
	require.NoError(t, err)
	assert.Equal(t, "0.044", got[0].HourlyPrice.String())
}

func TestOffers_APIError(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.handleFunc("/server_types", func(w http.ResponseWriter, _ *http.Request) {
		apiError(w, http.StatusUnauthorized, "unauthorized", "unable to authenticate")
	})

	_, err := ts.provider(nil).Offers(context.Background(), offer.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch server types")
}

func TestTierOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, config.TierPerformance, TierOf(&hcloud.ServerType{CPUType: hcloud.CPUTypeDedicated, Cores: 2}))
	assert.Equal(t, config.TierBalanced, TierOf(&hcloud.ServerType{CPUType: hcloud.CPUTypeShared, Cores: 4}))
	assert.Equal(t, config.TierEconomy, TierOf(&hcloud.ServerType{CPUType: hcloud.CPUTypeShared, Cores: 3}))
}

func TestParseOfferID(t *testing.T) {
	t.Parallel()
	st, loc, err := ParseOfferID(OfferID("gex44", "fsn1"))
	require.NoError(t, err)
	assert.Equal(t, "gex44", st)
	assert.Equal(t, "fsn1", loc)

	for _, bad := range []string{"", "gex44", "@fsn1", "gex44@"} {
		_, _, err := ParseOfferID(bad)
		assert.Error(t, err, bad)
	}
}
