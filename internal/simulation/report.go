package simulation

import (
	"go.uber.org/zap"

	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/vehicle"
)

// Verdict summarizes what a run's discrepancy means for its mode.
type Verdict string

const (
	VerdictRaceDetected          Verdict = "race_detected"
	VerdictNoLossObserved        Verdict = "no_loss_observed"
	VerdictSynchronizedOK        Verdict = "synchronized_ok"
	VerdictSynchronizationDefect Verdict = "synchronization_defect"
)

// Judge classifies a discrepancy observed in mode m.
func Judge(m counter.Mode, discrepancy int64) Verdict {
	switch {
	case m == counter.Synchronized && discrepancy == 0:
		return VerdictSynchronizedOK
	case m == counter.Synchronized:
		return VerdictSynchronizationDefect
	case discrepancy != 0:
		return VerdictRaceDetected
	default:
		return VerdictNoLossObserved
	}
}

// Report is the expected-versus-actual summary of a run.
type Report struct {
	RunID       string
	Mode        counter.Mode
	Expected    int64
	Actual      int64
	Discrepancy int64
	Verdict     Verdict
}

// View is a monitoring snapshot of the whole simulation. Worker fields
// are read without stopping the workers and may straddle a tick.
type View struct {
	RunID       string
	Mode        counter.Mode
	Workers     []vehicle.Snapshot
	Counters    counter.Values
	Expected    int64
	Actual      int64
	Discrepancy int64
	Active      int64
}

// Report computes the current expected-versus-actual summary.
func (o *Orchestrator) Report() Report {
	mode := o.counter.Mode()
	expected := o.ExpectedTotal()
	actual := o.counter.Distance()
	return Report{
		RunID:       o.RunID(),
		Mode:        mode,
		Expected:    expected,
		Actual:      actual,
		Discrepancy: expected - actual,
		Verdict:     Judge(mode, expected-actual),
	}
}

func (o *Orchestrator) logReport(r Report) {
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.Stringer("mode", r.Mode),
		zap.Int64("expected", r.Expected),
		zap.Int64("actual", r.Actual),
		zap.Int64("discrepancy", r.Discrepancy),
		zap.String("verdict", string(r.Verdict)),
	}
	if r.Verdict == VerdictSynchronizationDefect {
		o.log.Error("simulation stopped", fields...)
		return
	}
	o.log.Info("simulation stopped", fields...)
}
