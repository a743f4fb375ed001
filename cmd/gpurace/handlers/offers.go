package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/pricing"
	"github.com/imamik/gpurace/internal/provisioning"
)

type offersResult struct {
	Provider    string            `json:"provider"`
	Target      offer.Offer       `json:"target"`
	Recommended bool              `json:"recommended"`
	Candidates  []candidateRow    `json:"candidates"`
	Exposure    *pricing.Exposure `json:"exposure"`
}

// Offers handles the offers command.
//
// It runs validation and selection without provisioning anything and
// shows the candidate set in launch order together with its cost exposure.
func Offers(ctx context.Context, opts PlanOptions) error {
	log := newLogger(verbosity)

	intent, err := loadIntent(opts.IntentPath, opts.Balance)
	if err != nil {
		return err
	}

	settings := config.LoadSettings()
	b, err := newBackend(opts, intent, settings, 0, log)
	if err != nil {
		return err
	}

	pctx := planContext(ctx, intent, b, settings, log)
	if err := provisioning.RunPhases(pctx, provisioning.PlanPhases()); err != nil {
		return planError(err)
	}

	st := pctx.State
	calc := pricing.NewCalculator(settings.BatchSize, settings.MaxRounds, settings.RoundTimeout)
	res := offersResult{
		Provider:    b.name,
		Target:      st.Target,
		Recommended: st.Recommended,
		Candidates:  candidateRows(st.Candidates, st.Target, settings.BatchSize),
		Exposure:    calc.Exposure(st.Candidates),
	}

	if opts.JSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
		return nil
	}

	printPlan(res)
	return nil
}

func printPlan(res offersResult) {
	how := "from intent"
	if res.Recommended {
		how = "recommended"
	}
	fmt.Fprintf(stdout, "Target: %s [%s, provider %s]\n\n", res.Target, how, res.Provider)
	renderCandidateTable(stdout, res.Candidates)
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, pricing.NewFormatter().Format(res.Exposure))
}

// planError prints validation violations the way the validate command
// does and returns a short error. Other errors pass through.
func planError(err error) error {
	var vErr *provisioning.ValidationFailedError
	if errors.As(err, &vErr) {
		printValidation(validationResult{Violations: vErr.Violations})
		return fmt.Errorf("intent has %d violation(s)", len(vErr.Violations))
	}
	return err
}
