// Package model defines the request and response payloads used by the API.
// It keeps transport-level types in one place for reuse.
package model

// WorkerView describes one vehicle worker.
type WorkerView struct {
	ID        string  `json:"id"`
	Mileage   float64 `json:"mileage"`
	FuelLevel float64 `json:"fuel_level"`
	MaxFuel   float64 `json:"max_fuel"`
	Status    string  `json:"status"` // "paused" | "running" | "out_of_fuel" | "stopped"
}

// Counters carries both shared counter totals.
type Counters struct {
	Unsynchronized int64 `json:"unsynchronized"`
	Synchronized   int64 `json:"synchronized"`
}

// SimulationResponse is the monitoring view of the whole simulation.
type SimulationResponse struct {
	RunID         string       `json:"run_id"`
	Mode          string       `json:"mode"` // "unsynchronized" | "synchronized"
	Workers       []WorkerView `json:"workers"`
	Counters      Counters     `json:"counters"`
	Expected      int64        `json:"expected"`
	Actual        int64        `json:"actual"`
	Discrepancy   int64        `json:"discrepancy"`
	ActiveWorkers int64        `json:"active_workers"`
}

// ModeRequest selects the counter mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// RefuelRequest refuels one worker. A missing amount fills the tank.
type RefuelRequest struct {
	Amount *float64 `json:"amount,omitempty"`
}

// ReportPayload is the expected-versus-actual summary of a run.
type ReportPayload struct {
	RunID       string `json:"run_id"`
	Mode        string `json:"mode"`
	Expected    int64  `json:"expected"`
	Actual      int64  `json:"actual"`
	Discrepancy int64  `json:"discrepancy"`
	Verdict     string `json:"verdict"` // "race_detected" | "no_loss_observed" | "synchronized_ok" | "synchronization_defect"
}

// CommandResponse is returned by every command endpoint.
type CommandResponse struct {
	Status  string         `json:"status"` // "ok" | "error"
	Command string         `json:"command"`
	Report  *ReportPayload `json:"report,omitempty"`
	Error   *ErrorPayload  `json:"error,omitempty"`
}

// ErrorPayload describes an error response.
type ErrorPayload struct {
	Kind    string `json:"kind"`              // "unknown_worker", "stop_timeout"
	Message string `json:"message,omitempty"` // optional, human-readable error message
}
