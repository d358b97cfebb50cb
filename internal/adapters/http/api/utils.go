package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/staffmatch/internal/domain/types"
)

// Error codes returned in the error body.
const (
	codeBadRequest          = "bad_request"
	codeNotFound            = "not_found"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeInternal            = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusOf maps an error to its HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, codeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
