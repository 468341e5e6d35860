// Package app wires the simulation, its metrics and the HTTP API together.
package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iliamunaev/highway-simulator/internal/config"
	"github.com/iliamunaev/highway-simulator/internal/metrics"
	"github.com/iliamunaev/highway-simulator/internal/middleware"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/simulation"
	httptransport "github.com/iliamunaev/highway-simulator/internal/transport/http"
)

type App struct {
	Simulation     *simulation.Orchestrator
	Registry       *prometheus.Registry
	Handler        http.Handler
	RequestTimeout time.Duration
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Second
	}

	c := counter.New(cfg.UnsyncDelay)
	c.SetMode(cfg.Mode)

	sim, err := simulation.New(cfg.Simulation(), c, log.Named("simulation"))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, sim)
	sim.Subscribe(m.Observe)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httptransport.New(sim, cfg.RequestTimeout).Register(mux)

	return &App{
		Simulation:     sim,
		Registry:       reg,
		Handler:        middleware.Logging(log.Named("http"))(mux),
		RequestTimeout: cfg.RequestTimeout,
	}, nil
}
