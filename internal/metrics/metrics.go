// Package metrics exports the simulation state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/service/vehicle"
)

const namespace = "highway"

// Source is the simulation state sampled on every scrape.
type Source interface {
	ExpectedTotal() int64
	ActualTotal() int64
	ComputeDiscrepancy() int64
	Counters() counter.Values
	Mode() counter.Mode
	Active() int64
	PeakActive() int64
}

// Metrics holds the per-worker collectors fed by worker notifications.
type Metrics struct {
	updates *prometheus.CounterVec
	mileage *prometheus.GaugeVec
	fuel    *prometheus.GaugeVec
	status  *prometheus.GaugeVec
}

// New registers all collectors on reg. Aggregate values are read from src
// at scrape time.
func New(reg prometheus.Registerer, src Source) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_updates_total",
			Help:      "Number of state changes published by each worker.",
		}, []string{"worker"}),
		mileage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_mileage",
			Help:      "Distance covered by each worker.",
		}, []string{"worker"}),
		fuel: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_fuel_level",
			Help:      "Fuel left in each worker's tank.",
		}, []string{"worker"}),
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_status",
			Help:      "1 for the worker's current status, 0 otherwise.",
		}, []string{"worker", "status"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "expected_distance",
		Help:      "Sum of all workers' mileage.",
	}, func() float64 { return float64(src.ExpectedTotal()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "counter_distance",
		Help:      "Shared counter value for the active mode.",
	}, func() float64 { return float64(src.ActualTotal()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "discrepancy",
		Help:      "Expected minus counted distance.",
	}, func() float64 { return float64(src.ComputeDiscrepancy()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "counter_total",
		Help:        "Shared counter value per mode.",
		ConstLabels: prometheus.Labels{"mode": counter.Unsynchronized.String()},
	}, func() float64 { return float64(src.Counters().Unsynchronized) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "counter_total",
		Help:        "Shared counter value per mode.",
		ConstLabels: prometheus.Labels{"mode": counter.Synchronized.String()},
	}, func() float64 { return float64(src.Counters().Synchronized) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "synchronized_mode",
		Help:      "1 when increments go through the lock, 0 otherwise.",
	}, func() float64 {
		if src.Mode() == counter.Synchronized {
			return 1
		}
		return 0
	})

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Worker goroutines currently alive.",
	}, func() float64 { return float64(src.Active()) })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peak_active_workers",
		Help:      "Most worker goroutines alive at once in the current run.",
	}, func() float64 { return float64(src.PeakActive()) })

	return m
}

var statuses = []vehicle.Status{vehicle.Paused, vehicle.Running, vehicle.OutOfFuel, vehicle.Stopped}

// Observe records a worker notification. It is safe to use as a
// vehicle.Observer.
func (m *Metrics) Observe(s vehicle.Snapshot) {
	m.updates.WithLabelValues(s.ID).Inc()
	m.mileage.WithLabelValues(s.ID).Set(s.Mileage)
	m.fuel.WithLabelValues(s.ID).Set(s.FuelLevel)
	for _, st := range statuses {
		v := 0.0
		if st == s.Status {
			v = 1
		}
		m.status.WithLabelValues(s.ID, st.String()).Set(v)
	}
}
