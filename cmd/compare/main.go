// Command compare runs the highway workload once without and once with
// synchronization and prints how many updates each mode lost.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliamunaev/highway-simulator/internal/config"
	"github.com/iliamunaev/highway-simulator/internal/logging"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/simulation"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		color.Red("compare: %v", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load("highway-compare", args)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := compare(ctx, cfg, log)
	printReports(out, reports)
	return err
}

func compare(ctx context.Context, cfg config.Config, log *zap.Logger) ([]simulation.Report, error) {
	sim, err := simulation.New(cfg.Simulation(), counter.New(cfg.UnsyncDelay), log)
	if err != nil {
		return nil, err
	}
	log.Info("comparing modes",
		zap.Int("workers", cfg.Workers),
		zap.Duration("per_mode", cfg.CompareDuration),
		zap.Duration("unsync_delay", cfg.UnsyncDelay),
	)
	return sim.Compare(ctx, cfg.CompareDuration)
}

var (
	bad  = color.New(color.FgRed, color.Bold)
	good = color.New(color.FgGreen)
	note = color.New(color.FgYellow)
)

func verdictColor(v simulation.Verdict) *color.Color {
	switch v {
	case simulation.VerdictSynchronizedOK:
		return good
	case simulation.VerdictNoLossObserved:
		return note
	default:
		return bad
	}
}

func printReports(w io.Writer, reports []simulation.Report) {
	_, _ = fmt.Fprintf(w, "%-16s %10s %10s %12s  %s\n", "MODE", "EXPECTED", "ACTUAL", "DISCREPANCY", "VERDICT")
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%-16s %10d %10d %12d  ", r.Mode, r.Expected, r.Actual, r.Discrepancy)
		_, _ = verdictColor(r.Verdict).Fprintln(w, r.Verdict)
	}
}
