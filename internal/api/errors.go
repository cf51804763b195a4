// Package api wires the command façade and editor buffer store onto a
// JSON HTTP API and a WebSocket stream transport. Framing follows
// ehrlich-b-wingthing's net/http.ServeMux + github.com/coder/websocket
// pattern.
package api

import (
	"encoding/json"
	"net/http"

	"termrt/internal/apperr"
)

// statusFor maps an apperr.Kind to the HTTP status it should produce.
// exec_wait's own wait never produces a Timeout kind — it always succeeds
// once the sleep elapses — so Timeout only comes from a PTY write that
// timed out (including exec_wait's initial write); map it to 504.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.ResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	case apperr.PtyError, apperr.IoError, apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.BadRequestf("request body is required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequestf("invalid request body: %v", err)
	}
	return nil
}
