package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/provisioning"
)

type validationResult struct {
	Valid      bool                     `json:"valid"`
	Offers     int                      `json:"offers"`
	Violations []provisioning.Violation `json:"violations"`
}

// Validate handles the validate command.
//
// Every pre-race condition is checked; all violations are printed and the
// command fails if there is at least one.
func Validate(ctx context.Context, opts PlanOptions) error {
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
	err = provisioning.RunPhases(pctx, []provisioning.Phase{provisioning.NewValidationPhase()})

	var vErr *provisioning.ValidationFailedError
	if err != nil && !errors.As(err, &vErr) {
		return err
	}

	res := validationResult{
		Valid:      len(pctx.State.Violations) == 0,
		Offers:     len(pctx.State.Offers),
		Violations: pctx.State.Violations,
	}
	if res.Violations == nil {
		res.Violations = []provisioning.Violation{}
	}

	if opts.JSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		printValidation(res)
	}

	if !res.Valid {
		return fmt.Errorf("intent has %d violation(s)", len(res.Violations))
	}
	return nil
}

func printValidation(res validationResult) {
	if res.Valid {
		fmt.Fprintf(stdout, "%s Intent is valid (%d offer(s) available)\n", checkMark, res.Offers)
		return
	}
	fmt.Fprintf(stdout, "%s Intent has %d violation(s):\n", crossMark, len(res.Violations))
	for _, v := range res.Violations {
		if v.Field != "" {
			fmt.Fprintf(stdout, "  - %s (%s)\n", v.Message, v.Field)
			continue
		}
		fmt.Fprintf(stdout, "  - %s\n", v.Message)
	}
}
