package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func postWebhook(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func inboundCallForm(callID, from, to, state string) url.Values {
	form := url.Values{}
	form.Set("CallSid", callID)
	form.Set("From", from)
	form.Set("To", to)
	form.Set("CallStatus", state)
	return form
}

func TestVoiceInboundConnectsKnownCallee(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	rr := postWebhook(s, "/webhooks/voice-inbound",
		inboundCallForm("CA1", "+15559998888", "+15550001111", "ringing"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("expected text/xml, got %q", ct)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "client-alice") {
		t.Errorf("expected dial to client-alice, got:\n%s", body)
	}
	if !strings.Contains(body, "https://relay.example.com/webhooks/call-status") {
		t.Errorf("expected status callback subscription, got:\n%s", body)
	}
}

func TestVoiceInboundUnknownNumberGoesToVoicemail(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	rr := postWebhook(s, "/webhooks/voice-inbound",
		inboundCallForm("CA2", "+15559998888", "+15553334444", "ringing"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "<Record") {
		t.Errorf("expected voicemail recording, got:\n%s", body)
	}
	if !strings.Contains(body, "https://relay.example.com/webhooks/voicemail/recorded") {
		t.Errorf("expected recorded-callback action, got:\n%s", body)
	}
	if strings.Contains(body, "<Dial") {
		t.Errorf("voicemail response must not dial, got:\n%s", body)
	}
}

func TestVoiceInboundLaterLifecycleStateAcked(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	rr := postWebhook(s, "/webhooks/voice-inbound",
		inboundCallForm("CA3", "+15559998888", "+15550001111", "completed"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); strings.Contains(body, "<Dial") || strings.Contains(body, "<Record") {
		t.Errorf("non-trigger state must not produce call control, got:\n%s", body)
	}
}

func TestVoiceInboundDuplicateWebhookAckedOnce(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())
	form := inboundCallForm("CA4", "+15559998888", "+15550001111", "ringing")

	first := postWebhook(s, "/webhooks/voice-inbound", form)
	second := postWebhook(s, "/webhooks/voice-inbound", form)

	if !strings.Contains(first.Body.String(), "client-alice") {
		t.Fatalf("first webhook should connect, got:\n%s", first.Body.String())
	}
	if strings.Contains(second.Body.String(), "<Dial") {
		t.Errorf("duplicate webhook must not re-dial, got:\n%s", second.Body.String())
	}
}

func TestVoiceInboundMissingCallSid(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	form := url.Values{}
	form.Set("To", "+15550001111")
	form.Set("CallStatus", "ringing")

	rr := postWebhook(s, "/webhooks/voice-inbound", form)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCallStatusAuditedAndAcked(t *testing.T) {
	deps := defaultTestDeps()
	s := newTestServer(t, deps)

	form := url.Values{}
	form.Set("CallSid", "CA5")
	form.Set("CallStatus", "completed")
	form.Set("CallDuration", "42")

	rr := postWebhook(s, "/webhooks/call-status", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if len(deps.events.events) != 1 {
		t.Fatalf("expected 1 audited event, got %d", len(deps.events.events))
	}
	ev := deps.events.events[0]
	if ev.CallID != "CA5" || ev.State != "completed" || ev.Duration != "42" {
		t.Errorf("unexpected audited event: %+v", ev)
	}
}

func TestVoicemailPromptsAndRecords(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	rr := postWebhook(s, "/webhooks/voicemail", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "<Say>") || !strings.Contains(body, "<Record") {
		t.Errorf("expected say+record, got:\n%s", body)
	}
}

func TestVoicemailRecordedSaysGoodbye(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	form := url.Values{}
	form.Set("CallSid", "CA6")
	form.Set("RecordingUrl", "https://api.twilio.com/recording/RE1")

	rr := postWebhook(s, "/webhooks/voicemail/recorded", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "<Say>") || !strings.Contains(body, "<Hangup") {
		t.Errorf("expected say+hangup, got:\n%s", body)
	}
}

func TestSMSInboundReplies(t *testing.T) {
	s := newTestServer(t, defaultTestDeps())

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "+15559998888")
	form.Set("Body", "hello there")

	rr := postWebhook(s, "/webhooks/sms-inbound", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "<Message>") || !strings.Contains(body, "hello there") {
		t.Errorf("expected message echo, got:\n%s", body)
	}
}
