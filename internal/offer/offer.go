package offer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoOffers is returned when a catalog query yields nothing to race.
var ErrNoOffers = errors.New("no offers available")

// Offer is an immutable description of a provisionable machine.
type Offer struct {
	ID          string          `yaml:"id" json:"id"`
	GPUName     string          `yaml:"gpu_name" json:"gpu_name"`
	NumGPUs     int             `yaml:"num_gpus" json:"num_gpus"`
	HourlyPrice decimal.Decimal `yaml:"hourly_price" json:"hourly_price"`
	Verified    bool            `yaml:"verified" json:"verified"`
	Reliability float64         `yaml:"reliability" json:"reliability"` // 0-100
	Location    string          `yaml:"location" json:"location"`
}

// String returns a short human-readable label.
func (o Offer) String() string {
	return fmt.Sprintf("%s (%dx %s, %s, $%s/h)", o.ID, o.NumGPUs, o.GPUName, o.Location, o.HourlyPrice.StringFixed(2))
}

// IsZero reports whether o is the zero offer.
func (o Offer) IsZero() bool {
	return o.ID == ""
}

// Find returns the offer with the given ID.
func Find(offers []Offer, id string) (Offer, bool) {
	for _, o := range offers {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}
