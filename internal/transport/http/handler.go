// Package httptransport implements the HTTP control and monitoring API
// for the highway simulation.
package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/iliamunaev/highway-simulator/internal/model"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
	"github.com/iliamunaev/highway-simulator/internal/simulation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type controller interface {
	StartAll()
	PauseAll()
	ResumeAll()
	StopAll(ctx context.Context) (simulation.Report, error)
	Reset() error
	SetMode(m counter.Mode)
	Refuel(id string, amount float64) error
	RefuelToFull(id string) error
	Snapshot() simulation.View
}

// Handler handles HTTP requests to the simulation.
type Handler struct {
	ctrl           controller
	requestTimeout time.Duration
}

// New returns a Handler driving ctrl.
//
// It panics if ctrl is nil. If requestTimeout is non-positive, a default
// timeout is applied. The timeout bounds how long a stop request waits
// for workers to exit.
func New(ctrl controller, requestTimeout time.Duration) *Handler {
	if ctrl == nil {
		panic("handler.New: nil controller")
	}
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Second
	}
	return &Handler{
		ctrl:           ctrl,
		requestTimeout: requestTimeout,
	}
}

// Register mounts the simulation routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /simulation", h.HandleSnapshot)
	mux.HandleFunc("POST /simulation/start", h.HandleStart)
	mux.HandleFunc("POST /simulation/pause", h.HandlePause)
	mux.HandleFunc("POST /simulation/resume", h.HandleResume)
	mux.HandleFunc("POST /simulation/stop", h.HandleStop)
	mux.HandleFunc("POST /simulation/reset", h.HandleReset)
	mux.HandleFunc("PUT /simulation/mode", h.HandleMode)
	mux.HandleFunc("POST /simulation/workers/{id}/refuel", h.HandleRefuel)
}

// HandleSnapshot writes the current state of every worker and the counter.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSimulationResponse(h.ctrl.Snapshot()))
}

// HandleStart starts every worker.
func (h *Handler) HandleStart(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.StartAll()
	writeCommand(w, "start", nil)
}

// HandlePause pauses every worker.
func (h *Handler) HandlePause(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.PauseAll()
	writeCommand(w, "pause", nil)
}

// HandleResume resumes every worker with fuel left.
func (h *Handler) HandleResume(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.ResumeAll()
	writeCommand(w, "resume", nil)
}

// HandleStop stops every worker and returns the final report.
//
// A stop that does not complete within the request timeout still returns
// the report, marked as an error; the client may retry.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	rep, err := h.ctrl.StopAll(ctx)
	resp := model.CommandResponse{
		Status:  "ok",
		Command: "stop",
		Report:  toReport(rep),
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = &model.ErrorPayload{Kind: errorKind(err), Message: err.Error()}
	}
	writeJSON(w, httpStatus(err), resp)
}

// HandleReset recreates the workers and zeroes the counter.
func (h *Handler) HandleReset(w http.ResponseWriter, _ *http.Request) {
	writeCommand(w, "reset", h.ctrl.Reset())
}

// HandleMode switches the counter between its two modes.
func (h *Handler) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req model.ModeRequest
	if err := decode(r, &req); err != nil {
		writeBadRequest(w, "mode", "invalid JSON")
		return
	}
	m, err := counter.ParseMode(req.Mode)
	if err != nil {
		writeCommand(w, "mode", err)
		return
	}
	h.ctrl.SetMode(m)
	writeCommand(w, "mode", nil)
}

// HandleRefuel refuels the worker named in the path. Without an amount
// the tank is filled.
func (h *Handler) HandleRefuel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.RefuelRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeBadRequest(w, "refuel", "invalid JSON")
			return
		}
	}

	var err error
	if req.Amount == nil {
		err = h.ctrl.RefuelToFull(id)
	} else {
		err = h.ctrl.Refuel(id, *req.Amount)
	}
	writeCommand(w, "refuel", err)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeCommand(w http.ResponseWriter, command string, err error) {
	resp := model.CommandResponse{Status: "ok", Command: command}
	if err != nil {
		resp.Status = "error"
		resp.Error = &model.ErrorPayload{Kind: errorKind(err), Message: err.Error()}
	}
	writeJSON(w, httpStatus(err), resp)
}

func writeBadRequest(w http.ResponseWriter, command, msg string) {
	writeJSON(w, http.StatusBadRequest, model.CommandResponse{
		Status:  "error",
		Command: command,
		Error:   &model.ErrorPayload{Kind: "bad_request", Message: msg},
	})
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toSimulationResponse(v simulation.View) model.SimulationResponse {
	resp := model.SimulationResponse{
		RunID:   v.RunID,
		Mode:    v.Mode.String(),
		Workers: make([]model.WorkerView, 0, len(v.Workers)),
		Counters: model.Counters{
			Unsynchronized: v.Counters.Unsynchronized,
			Synchronized:   v.Counters.Synchronized,
		},
		Expected:      v.Expected,
		Actual:        v.Actual,
		Discrepancy:   v.Discrepancy,
		ActiveWorkers: v.Active,
	}
	for _, s := range v.Workers {
		resp.Workers = append(resp.Workers, model.WorkerView{
			ID:        s.ID,
			Mileage:   s.Mileage,
			FuelLevel: s.FuelLevel,
			MaxFuel:   s.MaxFuel,
			Status:    s.Status.String(),
		})
	}
	return resp
}

func toReport(r simulation.Report) *model.ReportPayload {
	return &model.ReportPayload{
		RunID:       r.RunID,
		Mode:        r.Mode.String(),
		Expected:    r.Expected,
		Actual:      r.Actual,
		Discrepancy: r.Discrepancy,
		Verdict:     string(r.Verdict),
	}
}
