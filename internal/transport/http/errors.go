package httptransport

import (
	"net/http"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
)

// kindToStatus maps error classification kinds
// to HTTP status codes.
var kindToStatus = map[string]int{
	"invalid_config": http.StatusBadRequest,
	"invalid_mode":   http.StatusBadRequest,
	"invalid_amount": http.StatusBadRequest,
	"unknown_worker": http.StatusNotFound,
	"not_quiesced":   http.StatusConflict,
	"stop_timeout":   http.StatusGatewayTimeout,
	"timeout":        http.StatusGatewayTimeout,
	"canceled":       http.StatusRequestTimeout,
}

// errorKind returns the kind of an error.
func errorKind(err error) string {
	return apperr.Kind(err)
}

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[errorKind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}
