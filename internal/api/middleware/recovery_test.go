package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecovererAnswersWebhookAfterPanic(t *testing.T) {
	buf := captureLog(t)

	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("resolver blew up")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-inbound", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing response body: %v", err)
	}
	if resp["error"] != "internal server error" {
		t.Fatalf("error = %v, want 'internal server error'", resp["error"])
	}

	entry := lastLogEntry(t, buf)
	if entry["msg"] != "panic recovered" {
		t.Fatalf("msg = %v, want 'panic recovered'", entry["msg"])
	}
	if entry["panic"] != "resolver blew up" {
		t.Fatalf("panic = %v", entry["panic"])
	}
	if entry["path"] != "/webhooks/voice-inbound" {
		t.Fatalf("path = %v", entry["path"])
	}
	stack, ok := entry["stack"].(string)
	if !ok || stack == "" {
		t.Fatal("stack trace missing from log output")
	}
}

func TestRecovererPassesThroughWithoutPanic(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"call_sid":"CA1"}}`)) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if rr.Body.String() != `{"data":{"call_sid":"CA1"}}` {
		t.Fatalf("body = %q", rr.Body.String())
	}
}
