package testing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
)

// OfferBuilder provides a fluent interface for constructing test offers.
// Each method returns a new builder (immutable) for chaining.
type OfferBuilder struct {
	o offer.Offer
}

// NewOfferBuilder creates an OfferBuilder for a verified single-GPU offer.
func NewOfferBuilder(id string) *OfferBuilder {
	return &OfferBuilder{
		o: offer.Offer{
			ID:          id,
			GPUName:     "RTX4090",
			NumGPUs:     1,
			HourlyPrice: decimal.RequireFromString("0.40"),
			Verified:    true,
			Reliability: 99,
			Location:    "us-east",
		},
	}
}

// WithGPU sets the GPU model and count.
func (b *OfferBuilder) WithGPU(name string, count int) *OfferBuilder {
	nb := *b
	nb.o.GPUName = name
	nb.o.NumGPUs = count
	return &nb
}

// WithPrice sets the hourly price from a decimal string.
func (b *OfferBuilder) WithPrice(price string) *OfferBuilder {
	nb := *b
	nb.o.HourlyPrice = decimal.RequireFromString(price)
	return &nb
}

// WithLocation sets the location tag.
func (b *OfferBuilder) WithLocation(location string) *OfferBuilder {
	nb := *b
	nb.o.Location = location
	return &nb
}

// Unverified clears the verified flag and sets the reliability score.
func (b *OfferBuilder) Unverified(reliability float64) *OfferBuilder {
	nb := *b
	nb.o.Verified = false
	nb.o.Reliability = reliability
	return &nb
}

// Build returns the offer.
func (b *OfferBuilder) Build() offer.Offer {
	return b.o
}

// IntentBuilder provides a fluent interface for constructing test intents.
type IntentBuilder struct {
	intent config.Intent
}

// NewIntentBuilder creates an IntentBuilder that passes validation against
// the default settings.
func NewIntentBuilder() *IntentBuilder {
	return &IntentBuilder{
		intent: config.Intent{
			Locations:        []string{"us-east"},
			Tier:             config.TierPerformance,
			FailoverStrategy: config.StrategySnapshot,
			DockerImage:      "pytorch/pytorch:latest",
			Ports:            []config.Port{{Port: 8888, Protocol: config.ProtocolTCP}},
			Balance:          decimal.RequireFromString("5.00"),
		},
	}
}

// WithLocations replaces the acceptable locations.
func (b *IntentBuilder) WithLocations(locations ...string) *IntentBuilder {
	nb := b.clone()
	nb.intent.Locations = locations
	return nb
}

// WithTier sets the performance tier.
func (b *IntentBuilder) WithTier(tier config.Tier) *IntentBuilder {
	nb := b.clone()
	nb.intent.Tier = tier
	return nb
}

// WithOfferID sets the target offer.
func (b *IntentBuilder) WithOfferID(id string) *IntentBuilder {
	nb := b.clone()
	nb.intent.OfferID = id
	return nb
}

// WithStrategy sets the failover strategy.
func (b *IntentBuilder) WithStrategy(s config.FailoverStrategy) *IntentBuilder {
	nb := b.clone()
	nb.intent.FailoverStrategy = s
	return nb
}

// WithBalance sets the balance snapshot from a decimal string.
func (b *IntentBuilder) WithBalance(balance string) *IntentBuilder {
	nb := b.clone()
	nb.intent.Balance = decimal.RequireFromString(balance)
	return nb
}

// Build returns a copy of the intent.
func (b *IntentBuilder) Build() *config.Intent {
	out := b.clone().intent
	return &out
}

func (b *IntentBuilder) clone() *IntentBuilder {
	nb := &IntentBuilder{intent: b.intent}
	nb.intent.Locations = slices.Clone(b.intent.Locations)
	nb.intent.Ports = slices.Clone(b.intent.Ports)
	return nb
}
