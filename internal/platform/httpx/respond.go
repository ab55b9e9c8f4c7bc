// Package httpx provides JSON response and error-mapping utilities shared by
// every HTTP handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrorBody is the JSON shape of every error response. The "error" field is
// stable and safe to match on by clients; "detail" is informational.
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error body.
func Error(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ErrorBody{Error: title, Status: status, Detail: detail})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// RespondError maps domain errors onto the taxonomy: validation and invalid
// transitions are client errors, missing resources are 404, everything else
// is an internal error with the detail withheld from the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		Error(w, http.StatusBadRequest, "invalid_transition", err.Error())
	case errors.Is(err, ErrMutationFailed):
		Error(w, http.StatusInternalServerError, "mutation_failed", err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "")
	}
}

// ActorID reads the optional X-Actor-Id header set by the fronting gateway.
// Zero means unattributed.
func ActorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
	return id
}
