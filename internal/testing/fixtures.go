package testing

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/provisioning/race"
)

// Offers returns n offers in location with IDs "1".."n". Prices rise by
// five cents per offer and every second offer is unverified.
func Offers(n int, location string) []offer.Offer {
	out := make([]offer.Offer, n)
	for i := range n {
		b := NewOfferBuilder(strconv.Itoa(i+1)).
			WithLocation(location).
			WithPrice(decimal.NewFromFloat(0.30 + 0.05*float64(i)).StringFixed(2))
		if i%2 == 1 {
			b = b.Unverified(90)
		}
		out[i] = b.Build()
	}
	return out
}

// Catalog wraps Offers in a performance-tier static catalog.
func Catalog(n int, location string) *offer.StaticCatalog {
	return offer.NewStaticCatalog(string(config.TierPerformance), Offers(n, location)...)
}

// FastRaceSettings returns race settings small enough for unit tests.
func FastRaceSettings(batch, rounds int) race.Settings {
	s := race.DefaultSettings()
	s.BatchSize = batch
	s.MaxRounds = rounds
	s.RoundTimeout = RoundTimeout
	s.TeardownTimeout = RoundTimeout
	return s
}

// Attempt returns a race attempt for offer o in round 1.
func Attempt(session string, o offer.Offer) race.Attempt {
	return race.Attempt{SessionID: session, CandidateID: o.ID, Round: 1, Offer: o}
}
