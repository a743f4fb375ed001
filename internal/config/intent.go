package config

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Tier is a performance tier.
type Tier string

// Supported tiers.
const (
	TierEconomy     Tier = "economy"
	TierBalanced    Tier = "balanced"
	TierPerformance Tier = "performance"
)

// Tiers lists the supported tiers, cheapest first.
func Tiers() []Tier {
	return []Tier{TierEconomy, TierBalanced, TierPerformance}
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	return slices.Contains(Tiers(), t)
}

// FailoverStrategy names what happens after a winning instance dies. The
// engine only carries the identifier.
type FailoverStrategy string

const (
	// StrategyNone is the explicit "nothing selected" sentinel.
	StrategyNone     FailoverStrategy = "none"
	StrategySnapshot FailoverStrategy = "snapshot"
	StrategyStandby  FailoverStrategy = "standby"
	StrategyRestart  FailoverStrategy = "restart"

	// DefaultFailoverStrategy applies when the intent file omits one.
	DefaultFailoverStrategy = StrategySnapshot
)

// IsSelected reports whether s names an actual strategy.
func (s FailoverStrategy) IsSelected() bool {
	return s != "" && s != StrategyNone
}

// Protocol is a transport protocol for an exposed port.
type Protocol string

// Supported protocols.
const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Port is an exposed (port, protocol) pair.
type Port struct {
	Port     int      `yaml:"port" json:"port"`
	Protocol Protocol `yaml:"protocol" json:"protocol"`
}

// String returns "8080/tcp".
func (p Port) String() string {
	return fmt.Sprintf("%d/%s", p.Port, p.Protocol)
}

// Intent is the input to one race attempt.
//
// Example:
//
//	locations: [us-east]
//	tier: performance
//	offer_id: "1"
//	failover_strategy: snapshot
//	docker_image: pytorch/pytorch:latest
//	ports:
//	  - port: 8888
//	    protocol: tcp
//	balance: 12.50
type Intent struct {
	// Locations are the acceptable location tags.
	Locations []string `yaml:"locations"`

	// Tier is the performance tier.
	Tier Tier `yaml:"tier"`

	// OfferID is the target offer. Empty means accept the tier recommendation.
	OfferID string `yaml:"offer_id,omitempty"`

	FailoverStrategy FailoverStrategy `yaml:"failover_strategy,omitempty"`
	DockerImage      string           `yaml:"docker_image,omitempty"`
	Ports            []Port           `yaml:"ports,omitempty"`

	// Balance is the account balance snapshot. Overridden by --balance.
	Balance decimal.Decimal `yaml:"balance"`
}

// ApplyDefaults fills fields that have a system default.
func (i *Intent) ApplyDefaults() {
	if i.FailoverStrategy == "" {
		i.FailoverStrategy = DefaultFailoverStrategy
	}
	for n := range i.Ports {
		if i.Ports[n].Protocol == "" {
			i.Ports[n].Protocol = ProtocolTCP
		}
	}
}
