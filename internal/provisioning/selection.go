package provisioning

import (
	"fmt"

	"github.com/imamik/gpurace/internal/offer"
)

// SelectionPhase resolves the target offer and builds the candidate set.
type SelectionPhase struct{}

// NewSelectionPhase creates a new selection phase.
func NewSelectionPhase() *SelectionPhase {
	return &SelectionPhase{}
}

// Name implements the Phase interface.
func (sp *SelectionPhase) Name() string {
	return "selection"
}

// Provision implements the Phase interface.
func (sp *SelectionPhase) Provision(ctx *Context) error {
	offers := ctx.State.Offers
	if len(offers) == 0 {
		return offer.ErrNoOffers
	}

	target, recommended, err := resolveTarget(ctx, offers)
	if err != nil {
		return err
	}

	policy := SelectionPolicy(ctx.Settings)
	if policy.MaxSize < ctx.Settings.MaxRaceSize {
		ctx.Logger.Info("race size capped by rounds",
			"maxRaceSize", ctx.Settings.MaxRaceSize,
			"batchSize", ctx.Settings.BatchSize,
			"maxRounds", ctx.Settings.MaxRounds,
			"cap", policy.MaxSize,
		)
	}
	ctx.State.Target = target
	ctx.State.Recommended = recommended
	ctx.State.Breakdown = offer.BreakDown(offers, target)
	ctx.State.Candidates = policy.Select(offers, target)

	b := ctx.State.Breakdown
	ctx.Logger.Info("candidates selected",
		"target", target.ID,
		"recommended", recommended,
		"candidates", len(ctx.State.Candidates),
		"exact", len(b.Exact),
		"sameGPU", len(b.SameGPU),
		"other", len(b.Other),
	)
	return nil
}

// resolveTarget returns the intent's offer, or the tier recommendation when
// the intent names none or names one the catalog no longer lists.
func resolveTarget(ctx *Context, offers []offer.Offer) (offer.Offer, bool, error) {
	id := ""
	if ctx.Intent != nil {
		id = ctx.Intent.OfferID
	}
	if id != "" {
		if o, ok := offer.Find(offers, id); ok {
			return o, false, nil
		}
		ctx.Logger.Info("target offer not in catalog, using recommendation", "offer", id)
	}

	o, ok := offer.Recommend(offers)
	if !ok {
		return offer.Offer{}, false, fmt.Errorf("no target offer: %w", offer.ErrNoOffers)
	}
	return o, true, nil
}
