package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptdesk/libs/apperr"
)

// ProviderIDHeader carries the caller's provider id once the gateway has verified its token.
const ProviderIDHeader = "X-Provider-Id"

// ErrorBody is the envelope for every failed request.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Debug   string `json:"debug,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as {success:false, error}. The wrapped cause is only exposed
// through the debug field when debug is true.
func WriteError(w http.ResponseWriter, err error, debug bool) {
	body := ErrorBody{Error: apperr.Message(err)}
	if debug {
		body.Debug = err.Error()
	}
	WriteJSON(w, StatusFor(apperr.KindOf(err)), body)
}

// DecodeJSON strictly decodes a request body: unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.Validation("request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperr.Validation("unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return apperr.Validation("invalid json body")
		}
	}
	if dec.More() {
		return apperr.Validation("invalid json body")
	}
	return nil
}
