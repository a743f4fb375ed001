package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricingJSON = `{
	"pricing": {
		"currency": "EUR",
		"server_types": [
			{
				"name": "gex44",
				"prices": [
					{"location": "fsn1", "price_hourly": {"net": "0.3080", "gross": "0.3665"}},
					{"location": "nbg1", "price_hourly": {"net": "0.3100", "gross": "0.3689"}}
				]
			},
			{
				"name": "cx22",
				"prices": [
					{"location": "fsn1", "price_hourly": {"net": "0.0060"}},
					{"location": "hel1", "price_hourly": {"net": ""}}
				]
			}
		]
	}
}`

func TestClient_FetchPrices(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, PricingEndpoint, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pricingJSON))
	}))
	defer server.Close()

	prices, err := NewClientWithEndpoint("test-token", server.URL).FetchPrices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "EUR", prices.Currency)
	p, ok := prices.ServerHourly("gex44", "nbg1")
	require.True(t, ok)
	assert.Equal(t, "0.31", p.String())

	_, ok = prices.ServerHourly("cx22", "hel1")
	assert.False(t, ok, "unparseable price is skipped")
	_, ok = prices.ServerHourly("cx52", "fsn1")
	assert.False(t, ok)
}

func TestClient_FetchPrices_Error(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClientWithEndpoint("invalid-token", server.URL).FetchPrices(context.Background())
	assert.EqualError(t, err, "pricing API returned status 401")
}

func TestClient_FetchPrices_InvalidJSON(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	}))
	defer server.Close()

	_, err := NewClientWithEndpoint("test-token", server.URL).FetchPrices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse pricing response")
}

func TestPrices_NilSafe(t *testing.T) {
	t.Parallel()
	var p *Prices
	_, ok := p.ServerHourly("cx22", "fsn1")
	assert.False(t, ok)
}
