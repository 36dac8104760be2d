package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// statusRecorder captures the status code and body size written by the
// handler chain. Only the first WriteHeader counts; later calls would
// panic anyway and the recorded status must match what went on the wire.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// StructuredLogger returns middleware that emits one slog line per request:
// request ID, method, path, status, duration and response size. On webhook
// paths the signature middleware has parsed the provider's form by the time
// the request completes, so the call or message SID is attached when
// present and the whole lifecycle of a call can be grepped by one field.
func StructuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if sid := r.PostForm.Get("CallSid"); sid != "" {
			attrs = append(attrs, "call_id", sid)
		} else if sid := r.PostForm.Get("MessageSid"); sid != "" {
			attrs = append(attrs, "message_id", sid)
		}

		slog.Info("http request", attrs...)
	})
}
