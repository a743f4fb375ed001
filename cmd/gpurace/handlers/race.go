package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/eta"
	"github.com/imamik/gpurace/internal/offer"
	"github.com/imamik/gpurace/internal/platform/hcloud"
	"github.com/imamik/gpurace/internal/pricing"
	"github.com/imamik/gpurace/internal/provisioning"
	"github.com/imamik/gpurace/internal/provisioning/race"
	"github.com/imamik/gpurace/internal/ui/tui"
	"github.com/imamik/gpurace/internal/util/naming"
)

// feedSize bounds buffered dashboard events.
const feedSize = 256

// RaceOptions are the inputs of the race command.
type RaceOptions struct {
	PlanOptions
	NoTUI       bool
	MetricsAddr string
	KeyOut      string
	Seed        uint64
}

type raceResult struct {
	SessionID  string                `json:"session_id"`
	Provider   string                `json:"provider"`
	Status     race.SessionStatus    `json:"status"`
	Winner     *offer.Offer          `json:"winner,omitempty"`
	Endpoint   string                `json:"endpoint,omitempty"`
	SSHKeyPath string                `json:"ssh_key_path,omitempty"`
	Rounds     int                   `json:"rounds"`
	Elapsed    string                `json:"elapsed"`
	Candidates []race.CandidateView  `json:"candidates"`
	Failures   []string              `json:"failures,omitempty"`
	Cleanup    *hcloud.CleanupReport `json:"cleanup,omitempty"`
	Exposure   *pricing.Exposure     `json:"exposure"`
	Error      string                `json:"error,omitempty"`
}

// Race handles the race command.
//
// It validates the intent, selects candidates, races them and reports the
// winner. On Hetzner Cloud the winner's SSH key is saved and every other
// resource of the session is cleaned up afterwards.
func Race(ctx context.Context, opts RaceOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(verbosity)

	intent, err := loadIntent(opts.IntentPath, opts.Balance)
	if err != nil {
		return err
	}

	settings := config.LoadSettings()
	b, err := newBackend(opts.PlanOptions, intent, settings, opts.Seed, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := race.NewMetrics(reg)
	if opts.MetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		shutdown, err := serveMetrics(opts.MetricsAddr, reg, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	pctx := planContext(ctx, intent, b, settings, log)
	pctx.Metrics = metrics
	if err := provisioning.RunPhases(pctx, provisioning.PlanPhases()); err != nil {
		return planError(err)
	}

	st := pctx.State
	exposure := pricing.NewCalculator(settings.BatchSize, settings.MaxRounds, settings.RoundTimeout).Exposure(st.Candidates)
	if !opts.JSON {
		fmt.Fprintf(stdout, "Racing for %s on %s\n", st.Target, b.name)
		fmt.Fprintf(stdout, "  %s\n", pricing.NewFormatter().FormatCompact(exposure))
	}

	useTUI := !opts.NoTUI && !opts.JSON && interactive()
	raceErr := runRace(ctx, pctx, useTUI, st.Target.ID)

	out := st.Outcome
	if out == nil {
		return raceErr
	}

	res := newRaceResult(b.name, out, st.Race, exposure)
	if b.cloud != nil {
		finishCloud(ctx, b.cloud, out, opts.KeyOut, &res, log)
	}

	if opts.JSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		printRaceResult(res, st.Race)
	}

	return raceErr
}

// runRace runs the race phase, rendering the dashboard while it runs when
// useTUI is set. The phase runs on its own goroutine because Bubble Tea
// owns the calling one.
func runRace(ctx context.Context, pctx *provisioning.Context, useTUI bool, title string) error {
	if !useTUI {
		pctx.Observer = race.NewLogObserver(pctx.Logger.WithName("race"))
		return provisioning.RunPhases(pctx, []provisioning.Phase{provisioning.NewRacePhase(nil)})
	}

	feed := tui.NewFeed(feedSize)
	pctx.Observer = feed

	started := make(chan *race.Race, 1)
	done := make(chan error, 1)
	go func() {
		done <- provisioning.RunPhases(pctx, []provisioning.Phase{
			provisioning.NewRacePhase(func(r *race.Race) { started <- r }),
		})
	}()

	select {
	case r := <-started:
		if _, err := runRaceTUI(ctx, r, feed, title); err != nil {
			pctx.Logger.Error(err, "dashboard failed, waiting for the race to finish")
		}
		return <-done
	case err := <-done:
		return err
	}
}

func newRaceResult(provider string, out *race.Outcome, r *race.Race, exposure *pricing.Exposure) raceResult {
	res := raceResult{
		SessionID: out.SessionID,
		Provider:  provider,
		Status:    out.Status,
		Winner:    out.Winner,
		Rounds:    out.Rounds,
		Elapsed:   eta.FormatDuration(out.Elapsed),
		Exposure:  exposure,
	}
	if r != nil {
		res.Candidates = r.View().Candidates
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	var exhausted *race.ExhaustedError
	if errors.As(out.Err, &exhausted) {
		res.Failures = exhausted.Messages()
	}
	return res
}

// finishCloud saves the winner's key, deletes the uploaded public key and
// removes every other server of the session.
func finishCloud(ctx context.Context, p *hcloud.Provider, out *race.Outcome, keyOut string, res *raceResult, log logr.Logger) {
	// cleanup runs even after an interrupt
	ctx = context.WithoutCancel(ctx)

	keep := ""
	if out.Succeeded() {
		keep = naming.Server(out.SessionID, out.Winner.ID)
		if ip, ok := p.Endpoint(out.SessionID, out.Winner.ID); ok {
			res.Endpoint = ip
		}
		if kp, ok := p.SessionKey(out.SessionID); ok {
			path := keyOut
			if path == "" {
				path = naming.SSHKey(out.SessionID)
			}
			if err := os.WriteFile(path, kp.PrivateKey, 0o600); err != nil {
				log.Error(err, "failed to save the winner's SSH key", "path", path)
			} else {
				res.SSHKeyPath = path
			}
		}
	}

	if err := p.ReleaseSession(ctx, out.SessionID); err != nil {
		log.Error(err, "failed to delete session key", "session", out.SessionID)
	}

	report, err := p.CleanupSession(ctx, out.SessionID, keep)
	if err != nil {
		log.Error(err, "cleanup incomplete, run `gpurace cleanup` to retry", "session", out.SessionID)
	}
	res.Cleanup = report
}

func printRaceResult(res raceResult, r *race.Race) {
	fmt.Fprintln(stdout)
	if r != nil {
		renderRaceTable(stdout, r.View())
	}

	switch {
	case res.Winner != nil:
		fmt.Fprintf(stdout, "\n%s Connected to %s after %s (%d round(s))\n", checkMark, res.Winner, res.Elapsed, res.Rounds)
		if res.Endpoint != "" {
			fmt.Fprintf(stdout, "  Endpoint: %s\n", res.Endpoint)
		}
		if res.SSHKeyPath != "" {
			fmt.Fprintf(stdout, "  SSH:      ssh -i %s root@%s\n", res.SSHKeyPath, res.Endpoint)
		}
		fmt.Fprintf(stdout, "  Cost:     $%s/h ($%s per day)\n",
			res.Winner.HourlyPrice.StringFixed(2), pricing.WinnerCost(*res.Winner, 24*time.Hour).StringFixed(2))
	case res.Status == race.SessionCancelled:
		fmt.Fprintf(stdout, "\n%s Race cancelled after %s\n", warnMark, res.Elapsed)
	default:
		fmt.Fprintf(stdout, "\n%s No candidate connected after %d round(s)\n", crossMark, res.Rounds)
		for _, f := range res.Failures {
			fmt.Fprintf(stdout, "  - %s\n", f)
		}
	}
	fmt.Fprintf(stdout, "  Session:  %s\n", res.SessionID)
	if res.Cleanup != nil {
		fmt.Fprintf(stdout, "  Cleanup:  %d server(s), %d SSH key(s) removed\n", len(res.Cleanup.Servers), len(res.Cleanup.SSHKeys))
	}
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log logr.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped")
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
