package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// HetznerAPIEndpoint is the default Hetzner Cloud API endpoint.
	HetznerAPIEndpoint = "https://api.hetzner.cloud/v1"

	// PricingEndpoint is the pricing API path.
	PricingEndpoint = "/pricing"
)

// Prices holds net hourly server prices by server type and location.
type Prices struct {
	Currency string
	Hourly   map[string]map[string]decimal.Decimal
}

// ServerHourly returns the hourly price of a server type at a location.
func (p *Prices) ServerHourly(serverType, location string) (decimal.Decimal, bool) {
	if p == nil {
		return decimal.Zero, false
	}
	price, ok := p.Hourly[serverType][location]
	return price, ok
}

// Client fetches pricing data from the Hetzner API.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new pricing client with the given API token.
func NewClient(token string) *Client {
	return NewClientWithEndpoint(token, HetznerAPIEndpoint)
}

// NewClientWithEndpoint creates a client with a custom endpoint (for testing).
func NewClientWithEndpoint(token, endpoint string) *Client {
	return &Client{
		token:      token,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPrices fetches current pricing from the Hetzner API.
func (c *Client) FetchPrices(ctx context.Context) (*Prices, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+PricingEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pricing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parsePricingResponse(body)
}

type pricingResponse struct {
	Pricing struct {
		Currency    string              `json:"currency"`
		ServerTypes []serverTypePricing `json:"server_types"`
	} `json:"pricing"`
}

type serverTypePricing struct {
	Name   string       `json:"name"`
	Prices []priceByLoc `json:"prices"`
}

type priceByLoc struct {
	Location    string `json:"location"`
	PriceHourly struct {
		Net string `json:"net"`
	} `json:"price_hourly"`
}

func parsePricingResponse(data []byte) (*Prices, error) {
	var resp pricingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse pricing response: %w", err)
	}

	prices := &Prices{
		Currency: resp.Pricing.Currency,
		Hourly:   make(map[string]map[string]decimal.Decimal, len(resp.Pricing.ServerTypes)),
	}
	for _, st := range resp.Pricing.ServerTypes {
		byLoc := make(map[string]decimal.Decimal, len(st.Prices))
		for _, p := range st.Prices {
			price, err := decimal.NewFromString(p.PriceHourly.Net)
			if err != nil {
				// unpriced locations are not offered
				continue
			}
			byLoc[p.Location] = price
		}
		prices.Hourly[st.Name] = byLoc
	}
	return prices, nil
}
