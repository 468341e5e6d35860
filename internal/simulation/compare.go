package simulation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/shared"
)

// Compare runs the same workload once per mode, unsynchronized first,
// for d each. Every phase starts from a reset and ends with StopAll, so
// the reports are exact. The counter mode in effect before the call is
// restored afterwards.
//
// If ctx is canceled mid-phase, that phase is still stopped and reported
// and Compare returns the reports collected so far with ctx.Err().
func (o *Orchestrator) Compare(ctx context.Context, d time.Duration) ([]Report, error) {
	prev := o.Mode()
	defer o.SetMode(prev)

	reports := make([]Report, 0, 2)
	for _, m := range []counter.Mode{counter.Unsynchronized, counter.Synchronized} {
		if err := o.Reset(); err != nil {
			return reports, err
		}
		o.SetMode(m)
		o.StartAll()

		waitErr := shared.SleepOrDone(ctx, d)

		rep, err := o.StopAll(context.WithoutCancel(ctx))
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
		if waitErr != nil {
			o.log.Warn("comparison interrupted", zap.Stringer("mode", m), zap.Error(waitErr))
			return reports, waitErr
		}
	}
	return reports, nil
}
