package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/gpurace/internal/offer"
)

func pricedOffers(prices ...string) []offer.Offer {
	out := make([]offer.Offer, len(prices))
	for i, p := range prices {
		out[i] = offer.Offer{
			ID:          fmt.Sprintf("o%d", i),
			GPUName:     "RTX4090",
			NumGPUs:     1,
			HourlyPrice: decimal.RequireFromString(p),
			Location:    "us-east",
		}
	}
	return out
}

func TestCalculator_Exposure(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(2, 3, 30*time.Minute)

	e := calc.Exposure(pricedOffers("0.50", "0.30", "1.00", "0.20", "0.40"))

	require.Len(t, e.Items, 5)
	require.Len(t, e.Rounds, 3)
	assert.Equal(t, 1, e.Items[1].Round)
	assert.Equal(t, 2, e.Items[2].Round)

	assert.Equal(t, "0.8", e.Rounds[0].Hourly.String())
	assert.Equal(t, "0.8", e.Rounds[0].Cumulative.String())
	assert.Equal(t, "2", e.Rounds[1].Cumulative.String())
	assert.Equal(t, "2.4", e.Rounds[2].Cumulative.String())
	assert.Equal(t, 1, e.Rounds[2].Candidates)
	assert.Equal(t, "2.4", e.PeakHourly.String())

	// half an hour at each cumulative level: (0.8 + 2.0 + 2.4) / 2
	assert.Equal(t, "2.6", e.WorstCase.String())
}

func TestCalculator_ExposureCapsAtPlannedCandidates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(2, 1, time.Hour)

	e := calc.Exposure(pricedOffers("1", "1", "1", "1"))

	assert.Len(t, e.Items, 2)
	assert.Len(t, e.Rounds, 1)
	assert.Equal(t, "2", e.PeakHourly.String())
}

func TestCalculator_ExposureSingleBatchRunsEveryRound(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(5, 3, time.Hour)

	e := calc.Exposure(pricedOffers("1", "1"))

	assert.Len(t, e.Rounds, 1)
	assert.Equal(t, "2", e.PeakHourly.String())
	// both candidates may connect until the third round times out
	assert.Equal(t, "6", e.WorstCase.String())
}

func TestCalculator_ExposureEmpty(t *testing.T) {
	t.Parallel()
	e := NewCalculator(0, 0, time.Minute).Exposure(nil)
	assert.Empty(t, e.Items)
	assert.True(t, e.PeakHourly.IsZero())
	assert.True(t, e.WorstCase.IsZero())
}

func TestWinnerCost(t *testing.T) {
	t.Parallel()
	o := pricedOffers("0.40")[0]
	assert.Equal(t, "0.6", WinnerCost(o, 90*time.Minute).String())
}
