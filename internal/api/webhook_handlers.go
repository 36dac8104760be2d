package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/callbridge/callbridge/internal/router"
	"github.com/callbridge/callbridge/internal/twiml"
)

// CallEvent is one provider lifecycle callback, kept for auditing.
type CallEvent struct {
	CallID   string
	State    string
	From     string
	To       string
	Duration string
	At       time.Time
}

// EventLogger records provider lifecycle callbacks. Implementations handle
// their own failures; auditing never changes a response.
type EventLogger interface {
	LogCallEvent(ev CallEvent)
}

// writeTwiML renders a call-control document as the webhook response.
func writeTwiML(w http.ResponseWriter, resp twiml.Response) {
	body, err := twiml.Render(resp)
	if err != nil {
		slog.Error("failed to render twiml", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body)) //nolint:errcheck
}

// writeAck acknowledges a webhook that needs no call-control instruction.
func writeAck(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

// handleVoiceInbound handles POST /webhooks/voice-inbound: the provider
// asks what to do with an inbound call. The routing decision maps to a
// call-control document; anything that is not a fresh trigger gets a bare
// acknowledgement.
func (s *Server) handleVoiceInbound(w http.ResponseWriter, r *http.Request) {
	callID := r.PostForm.Get("CallSid")
	if callID == "" {
		writeError(w, http.StatusBadRequest, "CallSid is required")
		return
	}
	to := r.PostForm.Get("To")
	if to == "" {
		writeError(w, http.StatusBadRequest, "To is required")
		return
	}

	decision := s.decider.Route(r.Context(), router.Event{
		CallID:       callID,
		CallerNumber: r.PostForm.Get("From"),
		CalleeNumber: to,
		State:        r.PostForm.Get("CallStatus"),
	})

	switch decision.Action {
	case router.ActionConnect:
		writeTwiML(w, twiml.Connect(decision.ClientIdentity, s.cfg.CallbackURL("/webhooks/call-status")))
	case router.ActionVoicemail:
		writeTwiML(w, twiml.Voicemail(s.cfg.CallbackURL("/webhooks/voicemail/recorded")))
	default:
		writeAck(w)
	}
}

// handleCallStatus handles POST /webhooks/call-status: lifecycle updates
// for calls already decided. Always acknowledged, never re-routed.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	ev := CallEvent{
		CallID:   r.PostForm.Get("CallSid"),
		State:    r.PostForm.Get("CallStatus"),
		From:     r.PostForm.Get("From"),
		To:       r.PostForm.Get("To"),
		Duration: r.PostForm.Get("CallDuration"),
		At:       time.Now().UTC(),
	}

	slog.Info("call status update",
		"call_id", ev.CallID,
		"state", ev.State,
		"duration", ev.Duration,
	)
	if s.events != nil {
		s.events.LogCallEvent(ev)
	}

	writeAck(w)
}

// handleVoicemail handles POST /webhooks/voicemail: prompts the caller and
// starts recording.
func (s *Server) handleVoicemail(w http.ResponseWriter, r *http.Request) {
	writeTwiML(w, twiml.Voicemail(s.cfg.CallbackURL("/webhooks/voicemail/recorded")))
}

// handleVoicemailRecorded handles POST /webhooks/voicemail/recorded: the
// provider reports the finished recording. The recording stays with the
// provider; only its location is logged.
func (s *Server) handleVoicemailRecorded(w http.ResponseWriter, r *http.Request) {
	slog.Info("voicemail recorded",
		"call_id", r.PostForm.Get("CallSid"),
		"recording_sid", r.PostForm.Get("RecordingSid"),
		"recording_url", r.PostForm.Get("RecordingUrl"),
		"duration", r.PostForm.Get("RecordingDuration"),
	)
	writeTwiML(w, twiml.VoicemailDone())
}

// handleSMSInbound handles POST /webhooks/sms-inbound: logs the message
// and sends a canned acknowledgement back to the sender.
func (s *Server) handleSMSInbound(w http.ResponseWriter, r *http.Request) {
	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")

	slog.Info("inbound sms",
		"message_sid", r.PostForm.Get("MessageSid"),
		"from", from,
		"to", r.PostForm.Get("To"),
	)

	writeTwiML(w, twiml.MessageReply("Thanks for your message: "+body))
}
