package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// envelope wraps every JSON response from the action API so clients can
// test exactly one field: {"data": ..., "error": ...}.
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		slog.Error("encoding json response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		slog.Error("encoding json error response", "error", err)
	}
}

// maxRequestBodySize caps JSON request bodies at 1 MB. The largest
// legitimate body this API sees is a push registration token, a few KB.
const maxRequestBodySize = 1 << 20

var (
	errBodyTooLarge  = errors.New("request body too large")
	errBodyMalformed = errors.New("request body is not valid json for this request")
	errBodyTrailing  = errors.New("request body must contain a single json object")
)

// readJSON decodes the request body into dst. Unknown fields are rejected
// so a misspelled field fails loudly instead of silently placing a call
// with a default. The returned error text is safe to relay to the client.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return errBodyTooLarge
		}
		return errBodyMalformed
	}

	if dec.More() {
		return errBodyTrailing
	}

	return nil
}
