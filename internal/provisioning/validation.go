package provisioning

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
)

// ViolationCode identifies a failed pre-race condition.
type ViolationCode string

const (
	ViolationNoLocation ViolationCode = "no-location"
	ViolationNoTier     ViolationCode = "no-tier"
	ViolationNoStrategy ViolationCode = "no-strategy"
	ViolationLowBalance ViolationCode = "insufficient-balance"
	ViolationNoOffers   ViolationCode = "no-offers"
)

// Violation is one failed pre-race condition.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Field   string        `json:"field,omitempty"` // intent field the user should fix, if any
	Message string        `json:"message"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	return v.Message
}

// Unwrap links the no-offers violation to offer.ErrNoOffers.
func (v Violation) Unwrap() error {
	if v.Code == ViolationNoOffers {
		return offer.ErrNoOffers
	}
	return nil
}

// Validate checks every pre-race condition independently and returns one
// violation per failed condition. It never fails fast and has no side
// effects. offers is the catalog result for the intent's location and tier.
func Validate(intent *config.Intent, currentBalance, minBalance decimal.Decimal, offers []offer.Offer) []Violation {
	if intent == nil {
		intent = &config.Intent{}
	}
	var vs []Violation

	if len(intent.Locations) == 0 {
		vs = append(vs, Violation{
			Code:    ViolationNoLocation,
			Field:   "locations",
			Message: "no location selected",
		})
	}

	if intent.Tier == "" {
		vs = append(vs, Violation{
			Code:    ViolationNoTier,
			Field:   "tier",
			Message: "no performance tier selected",
		})
	}

	if !intent.FailoverStrategy.IsSelected() {
		vs = append(vs, Violation{
			Code:    ViolationNoStrategy,
			Field:   "failover_strategy",
			Message: "no failover strategy selected",
		})
	}

	if currentBalance.LessThan(minBalance) {
		msg := fmt.Sprintf("balance insufficient ($%s < $%s)", dollars(currentBalance), dollars(minBalance))
		vs = append(vs, Violation{
			Code:    ViolationLowBalance,
			Field:   "balance",
			Message: msg,
		})
	}

	if len(offers) == 0 {
		vs = append(vs, Violation{
			Code:    ViolationNoOffers,
			Message: "no offers available for " + describeQuery(intent),
		})
	}

	return vs
}

// dollars formats d with cents, keeping any sub-cent digits so that a
// balance just below the minimum never prints as equal to it.
func dollars(d decimal.Decimal) string {
	if d.Exponent() < -2 && !d.Equal(d.Truncate(2)) {
		return d.String()
	}
	return d.StringFixed(2)
}

func describeQuery(intent *config.Intent) string {
	tier := string(intent.Tier)
	if tier == "" {
		tier = "any"
	}
	where := "any location"
	if len(intent.Locations) > 0 {
		where = strings.Join(intent.Locations, ", ")
	}
	return fmt.Sprintf("tier %s in %s", tier, where)
}

// ValidationFailedError carries the complete violation list.
type ValidationFailedError struct {
	Violations []Violation
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("intent validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Unwrap exposes each violation to errors.Is and errors.As.
func (e *ValidationFailedError) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}
	return errs
}

// ValidationPhase implements the Phase interface for pre-race validation.
type ValidationPhase struct{}

// NewValidationPhase creates a new validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements the Phase interface.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements the Phase interface. The catalog is queried here,
// once per race attempt.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	intent := ctx.Intent
	if intent == nil {
		intent = &config.Intent{}
	}

	offers, err := ctx.Catalog.Offers(ctx, offer.Query{
		Locations: intent.Locations,
		Tier:      string(intent.Tier),
	})
	if err != nil {
		return fmt.Errorf("failed to query offers: %w", err)
	}
	ctx.State.Offers = offers
	ctx.Logger.V(1).Info("catalog queried", "offers", len(offers))

	ctx.State.Violations = Validate(intent, intent.Balance, ctx.Settings.MinBalance, offers)
	if len(ctx.State.Violations) > 0 {
		return &ValidationFailedError{Violations: ctx.State.Violations}
	}

	ctx.Logger.V(1).Info("validation passed")
	return nil
}
