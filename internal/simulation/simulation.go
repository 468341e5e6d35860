// Package simulation orchestrates the vehicle workers that share one
// highway distance counter, and measures how many updates the counter
// lost.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/tracker"
	"github.com/iliamunaev/highway-simulator/internal/service/vehicle"
)

const defaultStopTimeout = time.Second

// Config describes one simulation run.
type Config struct {
	Workers     int
	Vehicle     vehicle.Config
	StopTimeout time.Duration
}

// Validate reports whether c describes a runnable simulation.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("worker count %d must be positive: %w", c.Workers, apperr.ErrInvalidConfig)
	}
	return c.Vehicle.Validate()
}

// run is one generation of workers; Reset replaces it wholesale.
type run struct {
	id      ksuid.KSUID
	workers []*vehicle.Worker
}

// Orchestrator drives a fixed set of workers against a shared counter.
type Orchestrator struct {
	cfg     Config
	counter *counter.Counter
	log     *zap.Logger
	tr      *tracker.Tracker

	mu  sync.Mutex // serializes commands
	cur atomic.Pointer[run]

	obsMu     sync.RWMutex
	observers []vehicle.Observer
}

// New creates an orchestrator with a fresh set of paused workers.
func New(cfg Config, c *counter.Counter, log *zap.Logger) (*Orchestrator, error) {
	if c == nil {
		panic("simulation.New: nil counter")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:     cfg,
		counter: c,
		log:     log,
		tr:      &tracker.Tracker{},
	}
	r, err := o.newRun()
	if err != nil {
		return nil, err
	}
	o.cur.Store(r)
	return o, nil
}

func (o *Orchestrator) newRun() (*run, error) {
	r := &run{
		id:      ksuid.New(),
		workers: make([]*vehicle.Worker, 0, o.cfg.Workers),
	}
	for i := 1; i <= o.cfg.Workers; i++ {
		id := fmt.Sprintf("vehicle-%d", i)
		w, err := vehicle.New(id, o.cfg.Vehicle, o.counter,
			vehicle.WithObserver(o.notify),
			vehicle.WithLogger(o.log.With(zap.String("run_id", r.id.String()))),
			vehicle.WithTracker(o.tr),
		)
		if err != nil {
			return nil, err
		}
		r.workers = append(r.workers, w)
	}
	return r, nil
}

// Subscribe registers fn to receive every worker state change, starting
// with the current state of each worker. fn runs on worker goroutines and
// must not block.
func (o *Orchestrator) Subscribe(fn vehicle.Observer) {
	if fn == nil {
		return
	}
	o.obsMu.Lock()
	o.observers = append(o.observers, fn)
	o.obsMu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, w := range o.workers() {
		fn(w.Snapshot())
	}
}

func (o *Orchestrator) notify(s vehicle.Snapshot) {
	o.obsMu.RLock()
	defer o.obsMu.RUnlock()
	for _, fn := range o.observers {
		fn(s)
	}
}

func (o *Orchestrator) workers() []*vehicle.Worker {
	return o.cur.Load().workers
}

// publish sends the state of every worker in r to the observers.
func (o *Orchestrator) publish(r *run) {
	for _, w := range r.workers {
		o.notify(w.Snapshot())
	}
}

// RunID identifies the current generation of workers.
func (o *Orchestrator) RunID() string {
	return o.cur.Load().id.String()
}

// Active returns the number of worker goroutines still alive.
func (o *Orchestrator) Active() int64 {
	return o.tr.Running()
}

// PeakActive returns the most worker goroutines alive at once during the
// current run.
func (o *Orchestrator) PeakActive() int64 {
	return o.tr.Peak()
}

// StartAll launches every worker goroutine that is not running yet and
// resumes every worker.
func (o *Orchestrator) StartAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, w := range o.workers() {
		w.Start()
		w.Resume()
	}
	o.log.Info("simulation started",
		zap.String("run_id", o.RunID()),
		zap.Stringer("mode", o.counter.Mode()),
		zap.Int("workers", o.cfg.Workers),
	)
}

// PauseAll pauses every worker.
func (o *Orchestrator) PauseAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, w := range o.workers() {
		w.Pause()
	}
	o.log.Info("simulation paused", zap.String("run_id", o.RunID()))
}

// ResumeAll resumes every worker that still has fuel.
func (o *Orchestrator) ResumeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, w := range o.workers() {
		if w.FuelLevel() <= 0 {
			continue
		}
		w.Resume()
	}
	o.log.Info("simulation resumed", zap.String("run_id", o.RunID()))
}

// StopAll stops every worker and waits, at most the configured stop
// timeout per worker, for their goroutines to exit. Workers that did not
// acknowledge in time are reported as ErrStopTimeout; calling StopAll
// again retries the wait. The returned report is taken after the wait.
func (o *Orchestrator) StopAll(ctx context.Context) (Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ws := o.workers()
	for _, w := range ws {
		w.Stop()
	}

	errs := make([]error, len(ws))
	var g errgroup.Group
	for i, w := range ws {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, o.cfg.StopTimeout)
			defer cancel()

			if err := w.Wait(wctx); err != nil {
				errs[i] = fmt.Errorf("worker %s: %w: %w", w.ID(), apperr.ErrStopTimeout, err)
				return errs[i]
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := o.Report()
	err := errors.Join(errs...)
	if err != nil {
		o.log.Warn("simulation stop incomplete", zap.String("run_id", rep.RunID), zap.Error(err))
	}
	o.logReport(rep)
	return rep, err
}

// Reset discards the stopped workers, zeroes the counter and creates a
// fresh set of paused workers with full tanks. Every worker goroutine
// must have exited; otherwise Reset returns ErrNotQuiesced.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n := o.tr.Running(); n > 0 {
		return fmt.Errorf("reset with %d live workers: %w", n, apperr.ErrNotQuiesced)
	}

	// Retire workers that were never started.
	for _, w := range o.workers() {
		w.Stop()
	}

	r, err := o.newRun()
	if err != nil {
		return err
	}
	o.counter.Reset()
	o.tr.ResetPeak()
	o.cur.Store(r)
	o.publish(r)

	o.log.Info("simulation reset", zap.String("run_id", r.id.String()))
	return nil
}

func (o *Orchestrator) lookup(id string) (*vehicle.Worker, error) {
	for _, w := range o.workers() {
		if w.ID() == id {
			return w, nil
		}
	}
	return nil, fmt.Errorf("worker %q: %w", id, apperr.ErrUnknownWorker)
}

// Refuel adds amount to one worker's tank.
func (o *Orchestrator) Refuel(id string, amount float64) error {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return fmt.Errorf("refuel %v: %w", amount, apperr.ErrInvalidAmount)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	w, err := o.lookup(id)
	if err != nil {
		return err
	}
	w.Refuel(amount)
	o.log.Info("worker refueled", zap.String("worker", id), zap.Float64("amount", amount))
	return nil
}

// RefuelToFull fills one worker's tank.
func (o *Orchestrator) RefuelToFull(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, err := o.lookup(id)
	if err != nil {
		return err
	}
	w.RefuelToFull()
	o.log.Info("worker refueled to full capacity", zap.String("worker", id))
	return nil
}

// SetMode selects how future increments reach the shared counter.
func (o *Orchestrator) SetMode(m counter.Mode) {
	o.counter.SetMode(m)
	o.log.Info("counter mode changed", zap.Stringer("mode", m))
}

// Mode returns the counter's active mode.
func (o *Orchestrator) Mode() counter.Mode {
	return o.counter.Mode()
}

// ExpectedTotal sums the mileage every worker reports.
func (o *Orchestrator) ExpectedTotal() int64 {
	var total int64
	for _, w := range o.workers() {
		total += int64(w.Mileage())
	}
	return total
}

// ActualTotal returns the counter value for the active mode.
func (o *Orchestrator) ActualTotal() int64 {
	return o.counter.Distance()
}

// ComputeDiscrepancy returns expected minus actual distance. The value is
// a point-in-time snapshot; it is exact only once StopAll has returned.
func (o *Orchestrator) ComputeDiscrepancy() int64 {
	return o.ExpectedTotal() - o.ActualTotal()
}

// Counters returns both counter totals.
func (o *Orchestrator) Counters() counter.Values {
	return o.counter.Values()
}

// Snapshot returns the state of every worker and the counter.
func (o *Orchestrator) Snapshot() View {
	r := o.cur.Load()
	v := View{
		RunID:    r.id.String(),
		Mode:     o.counter.Mode(),
		Workers:  make([]vehicle.Snapshot, 0, len(r.workers)),
		Counters: o.counter.Values(),
		Active:   o.tr.Running(),
	}
	for _, w := range r.workers {
		s := w.Snapshot()
		v.Workers = append(v.Workers, s)
		v.Expected += int64(s.Mileage)
	}
	v.Actual = o.counter.Distance()
	v.Discrepancy = v.Expected - v.Actual
	return v
}
