package vehicle

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/tracker"
)

// recorder collects observer notifications.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Status)
	}
	return out
}

// manual builds a worker whose ticks are driven by the test.
func manual(t *testing.T, cfg Config, opts ...Option) (*Worker, chan time.Time, *counter.Counter) {
	t.Helper()

	ticks := make(chan time.Time)
	c := counter.New(0)
	opts = append([]Option{WithTicks(ticks), WithLogger(zaptest.NewLogger(t))}, opts...)
	w, err := New("vehicle-1", cfg, c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Stop()
		<-w.Done()
	})
	return w, ticks, c
}

// step sends n ticks and waits until the last one has been processed.
func step(w *Worker, ticks chan<- time.Time, n int) {
	for i := 0; i < n; i++ {
		ticks <- time.Now()
	}
	// Commands run on the worker goroutine after any tick it already took.
	w.do(func() {})
}

var smallTank = Config{MaxFuel: 4, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Hour}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	w, err := New("vehicle-7", Config{MaxFuel: 20, StepDistance: 1, ConsumptionRate: 0.5, TickInterval: time.Second}, counter.New(0))
	require.NoError(t, err)

	assert.Equal(t, Snapshot{ID: "vehicle-7", Mileage: 0, FuelLevel: 20, MaxFuel: 20, Status: Paused}, w.Snapshot())
}

func TestNewWorkerInvalidConfig(t *testing.T) {
	t.Parallel()

	valid := Config{MaxFuel: 1, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Millisecond}

	tests := []struct {
		name   string
		id     string
		mutate func(*Config)
	}{
		{name: "empty_id", id: "", mutate: func(*Config) {}},
		{name: "zero_fuel", id: "v", mutate: func(c *Config) { c.MaxFuel = 0 }},
		{name: "negative_fuel", id: "v", mutate: func(c *Config) { c.MaxFuel = -1 }},
		{name: "nan_fuel", id: "v", mutate: func(c *Config) { c.MaxFuel = math.NaN() }},
		{name: "inf_fuel", id: "v", mutate: func(c *Config) { c.MaxFuel = math.Inf(1) }},
		{name: "zero_step", id: "v", mutate: func(c *Config) { c.StepDistance = 0 }},
		{name: "negative_rate", id: "v", mutate: func(c *Config) { c.ConsumptionRate = -0.5 }},
		{name: "zero_interval", id: "v", mutate: func(c *Config) { c.TickInterval = 0 }},
		{name: "negative_interval", id: "v", mutate: func(c *Config) { c.TickInterval = -time.Second }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			w, err := New(tt.id, cfg, counter.New(0))
			require.ErrorIs(t, err, apperr.ErrInvalidConfig)
			assert.Nil(t, w)
		})
	}
}

func TestNewWorkerNilCounterPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		_, _ = New("v", smallTank, nil)
	})
}

func TestRunDryRefuelResume(t *testing.T) {
	t.Parallel()

	w, ticks, c := manual(t, smallTank)
	w.Start()
	w.Resume()
	require.Equal(t, Running, w.Status())

	step(w, ticks, 4)

	assert.Equal(t, 4.0, w.Mileage())
	assert.Equal(t, 0.0, w.FuelLevel())
	assert.Equal(t, OutOfFuel, w.Status())
	assert.Equal(t, int64(4), c.Distance())

	w.Refuel(4)
	assert.Equal(t, 4.0, w.FuelLevel())
	assert.Equal(t, Paused, w.Status())

	w.Resume()
	assert.Equal(t, Running, w.Status())
}

func TestTickWhileOutOfFuelDoesNothing(t *testing.T) {
	t.Parallel()

	w, ticks, c := manual(t, smallTank)
	w.Start()
	w.Resume()
	step(w, ticks, 6)

	assert.Equal(t, 4.0, w.Mileage())
	assert.Equal(t, OutOfFuel, w.Status())
	assert.Equal(t, int64(4), c.Distance())
}

func TestTickWhilePausedDoesNothing(t *testing.T) {
	t.Parallel()

	w, ticks, c := manual(t, smallTank)
	w.Start()
	step(w, ticks, 3)

	assert.Equal(t, 0.0, w.Mileage())
	assert.Equal(t, 4.0, w.FuelLevel())
	assert.Equal(t, Paused, w.Status())
	assert.Equal(t, int64(0), c.Distance())
}

func TestFuelClampsAtZero(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, Config{MaxFuel: 1, StepDistance: 2, ConsumptionRate: 0.75, TickInterval: time.Hour})
	w.Start()
	w.Resume()
	step(w, ticks, 2)

	assert.Equal(t, 4.0, w.Mileage())
	assert.Equal(t, 0.0, w.FuelLevel())
	assert.Equal(t, OutOfFuel, w.Status())
}

func TestResumeWithoutFuelIsNoop(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, smallTank)
	w.Start()
	w.Resume()
	step(w, ticks, 4)

	w.Resume()
	assert.Equal(t, OutOfFuel, w.Status())
}

func TestRefuelCapsAtCapacity(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, smallTank)
	w.Start()
	w.Resume()
	step(w, ticks, 1)

	w.Refuel(100)
	assert.Equal(t, 4.0, w.FuelLevel())
	assert.Equal(t, Running, w.Status(), "refuel does not interrupt a running worker")

	w.Refuel(0)
	w.Refuel(-3)
	assert.Equal(t, 4.0, w.FuelLevel())
}

func TestRefuelToFull(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pauseFirst bool
		want       Status
	}{
		{name: "resumes_after_running_dry", want: Running},
		{name: "stays_paused_after_pause", pauseFirst: true, want: Paused},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, ticks, _ := manual(t, smallTank)
			w.Start()
			w.Resume()
			step(w, ticks, 4)
			require.Equal(t, OutOfFuel, w.Status())

			if tt.pauseFirst {
				w.Pause()
				require.Equal(t, OutOfFuel, w.Status(), "pause keeps out-of-fuel")
			}

			w.RefuelToFull()
			assert.Equal(t, 4.0, w.FuelLevel())
			assert.Equal(t, tt.want, w.Status())
		})
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, Config{MaxFuel: 10, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Hour})
	w.Start()
	w.Resume()
	step(w, ticks, 2)

	w.Pause()
	assert.Equal(t, Paused, w.Status())
	step(w, ticks, 3)
	assert.Equal(t, 2.0, w.Mileage())

	w.Resume()
	step(w, ticks, 1)
	assert.Equal(t, 3.0, w.Mileage())
	assert.Equal(t, Running, w.Status())
}

func TestCommandsBeforeStart(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, smallTank)

	w.Resume()
	assert.Equal(t, Running, w.Status())
	w.Pause()
	assert.Equal(t, Paused, w.Status())

	w.Resume()
	w.Start()
	step(w, ticks, 1)
	assert.Equal(t, 1.0, w.Mileage())
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, smallTank)
	w.Start()
	w.Resume()
	step(w, ticks, 1)

	w.Stop()
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))

	first := w.Snapshot()
	w.Stop()
	assert.Equal(t, first, w.Snapshot())
	assert.Equal(t, Stopped, first.Status)
	assert.Equal(t, 1.0, first.Mileage)
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	tr := &tracker.Tracker{}
	w, _, _ := manual(t, smallTank, WithTracker(tr))

	w.Stop()
	select {
	case <-w.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
	assert.Equal(t, Stopped, w.Status())

	w.Start()
	assert.Equal(t, int64(0), tr.Running(), "start after stop must not launch a goroutine")
}

func TestCommandsAfterStopAreNoops(t *testing.T) {
	t.Parallel()

	w, ticks, _ := manual(t, smallTank)
	w.Start()
	w.Resume()
	step(w, ticks, 2)
	w.Stop()
	require.NoError(t, w.Wait(context.Background()))

	w.Resume()
	w.Pause()
	w.Refuel(2)
	w.RefuelToFull()
	w.Start()

	assert.Equal(t, Snapshot{ID: "vehicle-1", Mileage: 2, FuelLevel: 2, MaxFuel: 4, Status: Stopped}, w.Snapshot())
}

func TestStopInterruptsSleep(t *testing.T) {
	t.Parallel()

	w, err := New("slow", Config{MaxFuel: 1, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Hour}, counter.New(0))
	require.NoError(t, err)
	w.Start()
	w.Resume()

	start := time.Now()
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Stopped, w.Status())
}

func TestWaitTimeout(t *testing.T) {
	t.Parallel()

	w, _, _ := manual(t, smallTank)
	w.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}

func TestTrackerCountsGoroutine(t *testing.T) {
	t.Parallel()

	tr := &tracker.Tracker{}
	w, _, _ := manual(t, smallTank, WithTracker(tr))

	w.Start()
	w.Start()
	assert.Equal(t, int64(1), tr.Running())

	w.Stop()
	require.NoError(t, w.Wait(context.Background()))
	assert.Equal(t, int64(0), tr.Running())
}

func TestStoppedIsTerminal(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	w, ticks, _ := manual(t, smallTank, WithObserver(rec.observe))
	w.Start()
	w.Resume()
	step(w, ticks, 4)
	w.RefuelToFull()
	step(w, ticks, 1)
	w.Stop()
	require.NoError(t, w.Wait(context.Background()))
	w.Resume()
	w.RefuelToFull()

	statuses := rec.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, Stopped, statuses[len(statuses)-1])

	stoppedAt := -1
	for i, s := range statuses {
		if s == Stopped {
			stoppedAt = i
			break
		}
	}
	require.GreaterOrEqual(t, stoppedAt, 0)
	for _, s := range statuses[stoppedAt:] {
		assert.Equal(t, Stopped, s)
	}
}

func TestObserverSeesEveryProductiveTick(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	w, ticks, _ := manual(t, Config{MaxFuel: 10, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Hour}, WithObserver(rec.observe))
	w.Start()
	w.Resume()
	step(w, ticks, 3)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	var miles []float64
	for _, s := range rec.snaps {
		miles = append(miles, s.Mileage)
	}
	assert.Equal(t, []float64{0, 1, 2, 3}, miles)
}

func TestMileageMonotonic(t *testing.T) {
	t.Parallel()

	w, err := New("fast", Config{MaxFuel: 1000, StepDistance: 1, ConsumptionRate: 1, TickInterval: time.Millisecond}, counter.New(0))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	w.Start()
	w.Resume()

	last := 0.0
	for i := 0; i < 200; i++ {
		m := w.Mileage()
		require.GreaterOrEqual(t, m, last)
		last = m
		time.Sleep(100 * time.Microsecond)
	}

	w.Pause()
	paused := w.Mileage()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, w.Mileage(), "mileage must not grow while paused")
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Status
		want string
	}{
		{in: Paused, want: "paused"},
		{in: Running, want: "running"},
		{in: OutOfFuel, want: "out_of_fuel"},
		{in: Stopped, want: "stopped"},
		{in: Status(42), want: "status(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}
