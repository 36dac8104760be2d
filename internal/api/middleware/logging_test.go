package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parsing log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestStructuredLoggerWebhookCarriesCallID(t *testing.T) {
	buf := captureLog(t)

	// The signature middleware parses the form before the handler runs;
	// the inner ParseForm stands in for it here.
	handler := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm() //nolint:errcheck
		w.Write([]byte("<Response/>"))
	}))

	form := url.Values{"CallSid": {"CA1234"}, "CallStatus": {"ringing"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-inbound",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entry := lastLogEntry(t, buf)
	if entry["call_id"] != "CA1234" {
		t.Fatalf("call_id = %v, want CA1234", entry["call_id"])
	}
	if entry["path"] != "/webhooks/voice-inbound" {
		t.Fatalf("path = %v", entry["path"])
	}
	// JSON numbers decode as float64.
	if entry["status"] != float64(200) {
		t.Fatalf("status = %v, want 200", entry["status"])
	}
	if entry["bytes"] != float64(len("<Response/>")) {
		t.Fatalf("bytes = %v, want %d", entry["bytes"], len("<Response/>"))
	}
}

func TestStructuredLoggerMessageWebhookCarriesMessageID(t *testing.T) {
	buf := captureLog(t)

	handler := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm() //nolint:errcheck
	}))

	form := url.Values{"MessageSid": {"SM9876"}, "Body": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms-inbound",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, buf)
	if entry["message_id"] != "SM9876" {
		t.Fatalf("message_id = %v, want SM9876", entry["message_id"])
	}
	if _, ok := entry["call_id"]; ok {
		t.Fatal("call_id logged for a message webhook")
	}
}

func TestStructuredLoggerAPIRequestHasNoSID(t *testing.T) {
	buf := captureLog(t)

	handler := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/token?identity_id=ghost", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, buf)
	if entry["status"] != float64(404) {
		t.Fatalf("status = %v, want 404", entry["status"])
	}
	if entry["path"] != "/api/v1/token" {
		t.Fatalf("path = %v", entry["path"])
	}
	if _, ok := entry["call_id"]; ok {
		t.Fatal("call_id logged for a non-webhook request")
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Fatal("duration_ms missing from log output")
	}
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	buf := captureLog(t)

	handler := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.WriteHeader(http.StatusOK) // ignored
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, buf)
	if entry["status"] != float64(502) {
		t.Fatalf("status = %v, want first write 502", entry["status"])
	}
}

func TestStatusRecorderDefaultsTo200(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())

	if rec.status != http.StatusOK {
		t.Fatalf("status = %d, want 200 before any write", rec.status)
	}

	rec.Write([]byte("ok")) //nolint:errcheck
	if rec.bytes != 2 {
		t.Fatalf("bytes = %d, want 2", rec.bytes)
	}
}
