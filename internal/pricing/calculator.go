package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imamik/gpurace/internal/offer"
)

// Calculator computes the cost exposure of a race.
type Calculator struct {
	batchSize    int
	maxRounds    int
	roundTimeout time.Duration
}

// NewCalculator creates a calculator for the given race bounds.
func NewCalculator(batchSize, maxRounds int, roundTimeout time.Duration) *Calculator {
	return &Calculator{
		batchSize:    max(batchSize, 1),
		maxRounds:    max(maxRounds, 1),
		roundTimeout: roundTimeout,
	}
}

// LineItem is one candidate's hourly price.
type LineItem struct {
	Round       int             `json:"round"`
	OfferID     string          `json:"offer_id"`
	Description string          `json:"description"`
	Hourly      decimal.Decimal `json:"hourly"`
}

// String returns a formatted string representation of the line item.
func (l LineItem) String() string {
	return fmt.Sprintf("round %d: %s @ $%s/h", l.Round, l.Description, l.Hourly.StringFixed(2))
}

// RoundCost summarizes one round. Rounds are additive, so Cumulative is
// the hourly spend while this round and every earlier one are running.
type RoundCost struct {
	Round      int             `json:"round"`
	Candidates int             `json:"candidates"`
	Hourly     decimal.Decimal `json:"hourly"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// Exposure is the cost a race can incur before losers are torn down.
type Exposure struct {
	Items  []LineItem  `json:"items"`
	Rounds []RoundCost `json:"rounds"`

	// PeakHourly is the hourly spend with every planned candidate running.
	PeakHourly decimal.Decimal `json:"peak_hourly"`

	// WorstCase is the spend if every configured round runs to its timeout.
	WorstCase decimal.Decimal `json:"worst_case"`

	RoundTimeout time.Duration `json:"round_timeout"`
}

// Exposure computes the exposure of racing candidates in order.
func (c *Calculator) Exposure(candidates []offer.Offer) *Exposure {
	limit := min(len(candidates), c.batchSize*c.maxRounds)
	e := &Exposure{
		Items:        make([]LineItem, 0, limit),
		PeakHourly:   decimal.Zero,
		WorstCase:    decimal.Zero,
		RoundTimeout: c.roundTimeout,
	}

	hours := decimal.NewFromFloat(c.roundTimeout.Hours())
	for i, o := range candidates[:limit] {
		round := i/c.batchSize + 1
		e.Items = append(e.Items, LineItem{
			Round:       round,
			OfferID:     o.ID,
			Description: fmt.Sprintf("%dx %s (%s)", o.NumGPUs, o.GPUName, o.Location),
			Hourly:      o.HourlyPrice,
		})
		if len(e.Rounds) < round {
			e.Rounds = append(e.Rounds, RoundCost{Round: round, Hourly: decimal.Zero})
		}
		rc := &e.Rounds[round-1]
		rc.Candidates++
		rc.Hourly = rc.Hourly.Add(o.HourlyPrice)
	}

	for i := range e.Rounds {
		e.PeakHourly = e.PeakHourly.Add(e.Rounds[i].Hourly)
		e.Rounds[i].Cumulative = e.PeakHourly
		e.WorstCase = e.WorstCase.Add(e.PeakHourly.Mul(hours))
	}
	// rounds after the last batch keep every candidate running
	if idle := c.maxRounds - len(e.Rounds); len(e.Rounds) > 0 && idle > 0 {
		e.WorstCase = e.WorstCase.Add(e.PeakHourly.Mul(hours).Mul(decimal.NewFromInt(int64(idle))))
	}
	return e
}

// WinnerCost returns what the winning offer costs over d.
func WinnerCost(o offer.Offer, d time.Duration) decimal.Decimal {
	return o.HourlyPrice.Mul(decimal.NewFromFloat(d.Hours()))
}
