// Package apperr defines the error taxonomy shared by the simulation
// and its transports.
package apperr

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrStopTimeout   = errors.New("worker did not stop in time")
	ErrNotQuiesced   = errors.New("workers still running")
	ErrUnknownWorker = errors.New("unknown worker")
	ErrInvalidMode   = errors.New("invalid counter mode")
	ErrInvalidAmount = errors.New("invalid refuel amount")
)

// Kind returns a stable classification string for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"

	case errors.Is(err, ErrStopTimeout):
		return "stop_timeout"

	case errors.Is(err, ErrNotQuiesced):
		return "not_quiesced"

	case errors.Is(err, ErrUnknownWorker):
		return "unknown_worker"

	case errors.Is(err, ErrInvalidMode):
		return "invalid_mode"

	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}
