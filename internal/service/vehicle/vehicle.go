// Package vehicle implements the simulated vehicle worker.
//
// Each Worker owns its mileage, fuel and status. After Start those fields
// are written only by the worker's own goroutine: commands issued from
// other goroutines are queued to that goroutine and executed there. Readers
// see the fields through atomics, so a Snapshot may mix values from
// adjacent ticks but never a torn value.
package vehicle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
	"github.com/iliamunaev/highway-simulator/internal/service/tracker"
)

// Incrementer receives the distance covered on every productive tick.
type Incrementer interface {
	Increment(distance int64)
}

// Observer is called after the worker's visible state changed. It runs on
// the worker's goroutine and must return promptly without calling back
// into the worker.
type Observer func(Snapshot)

// Config holds the per-worker simulation parameters.
type Config struct {
	MaxFuel         float64
	StepDistance    int64
	ConsumptionRate float64
	TickInterval    time.Duration
}

// Validate reports whether c can drive a worker.
func (c Config) Validate() error {
	switch {
	case !(c.MaxFuel > 0) || math.IsInf(c.MaxFuel, 0):
		return fmt.Errorf("max fuel %v must be positive: %w", c.MaxFuel, apperr.ErrInvalidConfig)
	case c.StepDistance <= 0:
		return fmt.Errorf("step distance %d must be positive: %w", c.StepDistance, apperr.ErrInvalidConfig)
	case !(c.ConsumptionRate >= 0):
		return fmt.Errorf("consumption rate %v must not be negative: %w", c.ConsumptionRate, apperr.ErrInvalidConfig)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval %v must be positive: %w", c.TickInterval, apperr.ErrInvalidConfig)
	}
	return nil
}

// Snapshot is a point-in-time view of a worker.
type Snapshot struct {
	ID        string
	Mileage   float64
	FuelLevel float64
	MaxFuel   float64
	Status    Status
}

// Option configures a Worker.
type Option func(*Worker)

// WithObserver registers fn to be notified of state changes.
func WithObserver(fn Observer) Option {
	return func(w *Worker) { w.observer = fn }
}

// WithLogger sets the worker's logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithTracker counts the worker's goroutine in tr while it is alive.
func WithTracker(tr *tracker.Tracker) Option {
	return func(w *Worker) { w.tr = tr }
}

// WithTicks replaces the interval ticker with ch.
func WithTicks(ch <-chan time.Time) Option {
	return func(w *Worker) { w.ticks = ch }
}

type command struct {
	fn  func()
	ack chan struct{}
}

// Worker is one simulated vehicle.
type Worker struct {
	id       string
	cfg      Config
	counter  Incrementer
	observer Observer
	log      *zap.Logger
	tr       *tracker.Tracker
	ticks    <-chan time.Time

	mileage atomic.Uint64 // float64 bits
	fuel    atomic.Uint64 // float64 bits
	status  atomic.Int32

	// wantRun records that the last accepted command was a resume, so a
	// full refuel after running dry puts the vehicle back on the road.
	wantRun bool

	ctl      sync.Mutex // serializes commands and guards started
	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	cmds     chan command
}

// New creates a paused worker with a full tank.
func New(id string, cfg Config, c Incrementer, opts ...Option) (*Worker, error) {
	if c == nil {
		panic("vehicle.New: nil counter")
	}
	if id == "" {
		return nil, fmt.Errorf("empty worker id: %w", apperr.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("worker %s: %w", id, err)
	}

	w := &Worker{
		id:      id,
		cfg:     cfg,
		counter: c,
		log:     zap.NewNop(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		cmds:    make(chan command),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(zap.String("worker", id))
	w.storeFuel(cfg.MaxFuel)
	w.setStatus(Paused)
	return w, nil
}

// ID returns the worker's identity.
func (w *Worker) ID() string { return w.id }

// MaxFuel returns the tank capacity.
func (w *Worker) MaxFuel() float64 { return w.cfg.MaxFuel }

// Mileage returns the distance covered so far.
func (w *Worker) Mileage() float64 { return math.Float64frombits(w.mileage.Load()) }

// FuelLevel returns the fuel left in the tank.
func (w *Worker) FuelLevel() float64 { return math.Float64frombits(w.fuel.Load()) }

// Status returns the current lifecycle state.
func (w *Worker) Status() Status { return Status(w.status.Load()) }

// Snapshot returns the worker's current visible state.
func (w *Worker) Snapshot() Snapshot {
	return Snapshot{
		ID:        w.id,
		Mileage:   w.Mileage(),
		FuelLevel: w.FuelLevel(),
		MaxFuel:   w.cfg.MaxFuel,
		Status:    w.Status(),
	}
}

func (w *Worker) storeMileage(v float64) { w.mileage.Store(math.Float64bits(v)) }
func (w *Worker) storeFuel(v float64)    { w.fuel.Store(math.Float64bits(v)) }
func (w *Worker) setStatus(s Status)     { w.status.Store(int32(s)) }

// Start launches the worker goroutine. Calling it again, or after Stop,
// does nothing.
func (w *Worker) Start() {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if w.started {
		return
	}
	w.started = true

	if w.tr != nil {
		w.tr.Inc()
	}
	go w.run()
}

// Stop retires the worker. It returns without waiting; use Wait or Done
// to observe the goroutine exit. Stop is idempotent.
func (w *Worker) Stop() {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if !w.started {
		// No goroutine will ever exist; retire inline.
		w.started = true
		w.halt()
		close(w.done)
		return
	}
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed once the worker has stopped for good.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until the worker has stopped or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume puts the worker on the road if it has fuel.
func (w *Worker) Resume() {
	w.do(func() {
		if w.Status() == Stopped || w.FuelLevel() <= 0 {
			return
		}
		w.wantRun = true
		w.transition(Running)
	})
}

// Pause takes the worker off the road. An out-of-fuel worker keeps its
// status but forgets any pending resume.
func (w *Worker) Pause() {
	w.do(func() {
		switch w.Status() {
		case Stopped:
			return
		case OutOfFuel:
			w.wantRun = false
		default:
			w.wantRun = false
			w.transition(Paused)
		}
	})
}

// Refuel adds amount to the tank, capped at capacity. An out-of-fuel
// worker becomes paused. Non-positive amounts are ignored.
func (w *Worker) Refuel(amount float64) {
	if !(amount > 0) {
		return
	}
	w.do(func() {
		if w.Status() == Stopped {
			return
		}
		w.storeFuel(math.Min(w.cfg.MaxFuel, w.FuelLevel()+amount))
		if w.Status() == OutOfFuel {
			w.setStatus(Paused)
		}
		w.notify()
	})
}

// RefuelToFull fills the tank. A worker that ran dry while running goes
// straight back to running.
func (w *Worker) RefuelToFull() {
	w.do(func() {
		if w.Status() == Stopped {
			return
		}
		w.storeFuel(w.cfg.MaxFuel)
		if w.Status() == OutOfFuel {
			if w.wantRun {
				w.setStatus(Running)
			} else {
				w.setStatus(Paused)
			}
		}
		w.notify()
	})
}

// do runs fn in the context that owns the worker state: inline before the
// goroutine exists, on the goroutine afterwards. Once the goroutine has
// exited, fn is dropped.
func (w *Worker) do(fn func()) {
	w.ctl.Lock()
	defer w.ctl.Unlock()

	if !w.started {
		fn()
		return
	}

	cmd := command{fn: fn, ack: make(chan struct{})}
	select {
	case w.cmds <- cmd:
	case <-w.done:
		return
	}
	<-cmd.ack
}

func (w *Worker) transition(s Status) {
	if w.Status() == s {
		return
	}
	w.setStatus(s)
	w.notify()
}

func (w *Worker) notify() {
	if w.observer != nil {
		w.observer(w.Snapshot())
	}
}

func (w *Worker) run() {
	defer close(w.done)
	if w.tr != nil {
		defer w.tr.Dec()
	}

	ticks := w.ticks
	if ticks == nil {
		t := time.NewTicker(w.cfg.TickInterval)
		defer t.Stop()
		ticks = t.C
	}

	for {
		select {
		case <-w.stop:
			w.halt()
			return
		case cmd := <-w.cmds:
			cmd.fn()
			close(cmd.ack)
		case <-ticks:
			if !w.tick() {
				w.halt()
				return
			}
		}
	}
}

// tick advances the worker by one interval. It returns false when a stop
// request is pending.
func (w *Worker) tick() bool {
	select {
	case <-w.stop:
		return false
	default:
	}

	status := w.Status()
	fuel := w.FuelLevel()

	if status != Running || fuel <= 0 {
		if fuel <= 0 && status != OutOfFuel {
			w.transition(OutOfFuel)
		}
		return true
	}

	w.storeMileage(w.Mileage() + float64(w.cfg.StepDistance))
	fuel = math.Max(0, fuel-w.cfg.ConsumptionRate)
	w.storeFuel(fuel)
	w.counter.Increment(w.cfg.StepDistance)

	if fuel <= 0 {
		w.setStatus(OutOfFuel)
		w.log.Debug("out of fuel", zap.Float64("mileage", w.Mileage()))
	}
	w.notify()
	return true
}

func (w *Worker) halt() {
	if w.Status() == Stopped {
		return
	}
	w.setStatus(Stopped)
	w.log.Debug("stopped",
		zap.Float64("mileage", w.Mileage()),
		zap.Float64("fuel", w.FuelLevel()),
	)
	w.notify()
}
