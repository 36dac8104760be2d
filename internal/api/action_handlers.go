package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/callbridge/callbridge/internal/identity"
	"github.com/callbridge/callbridge/internal/telco"
)

// defaultListLimit caps provider listings when the client does not ask for
// a specific page size.
const defaultListLimit = 50

// maxListLimit is the hard cap on provider listing sizes.
const maxListLimit = 500

type makeCallRequest struct {
	IdentityID       string `json:"identity_id"`
	From             string `json:"from"`
	To               string `json:"to"`
	CallbackURL      string `json:"callback_url"`
	Record           bool   `json:"record"`
	VoicemailTimeout int    `json:"voicemail_timeout"`
	StatusCallback   string `json:"status_callback"`
}

type makeCallResponse struct {
	CallSID string `json:"call_sid"`
}

// handleMakeCall handles POST /api/v1/calls — place an outbound call. The
// caller names either a raw from number or an app identity whose assigned
// number is looked up; with voicemail_timeout set the call is pointed at
// the voicemail flow instead of a caller-supplied control URL.
func (s *Server) handleMakeCall(w http.ResponseWriter, r *http.Request) {
	var req makeCallRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errMsg := validateDialTarget("to", req.To); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.IdentityID == "" && req.From == "" {
		writeError(w, http.StatusBadRequest, "identity_id or from is required")
		return
	}
	if req.CallbackURL == "" && req.VoicemailTimeout <= 0 {
		writeError(w, http.StatusBadRequest, "callback_url is required")
		return
	}
	for field, value := range map[string]string{
		"callback_url":    req.CallbackURL,
		"status_callback": req.StatusCallback,
	} {
		if errMsg := validateURL(field, value); errMsg != "" {
			writeError(w, http.StatusBadRequest, errMsg)
			return
		}
	}

	from := req.From
	if req.IdentityID != "" {
		user, err := s.resolver.ResolveByIdentity(r.Context(), req.IdentityID)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown identity")
			return
		case err != nil:
			slog.Error("make call failed, identity lookup error",
				"identity_id", req.IdentityID, "error", err)
			writeError(w, http.StatusBadGateway, "record store unavailable")
			return
		case user.AssignedNumber == "":
			writeError(w, http.StatusConflict, "identity has no assigned number")
			return
		}
		from = user.AssignedNumber
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.cfg.CallbackURL("/webhooks/voicemail")
	}
	statusCallback := req.StatusCallback
	if statusCallback == "" {
		statusCallback = s.cfg.CallbackURL("/webhooks/call-status")
	}

	sid, err := s.gateway.PlaceCall(r.Context(), telco.PlaceCallParams{
		From:           from,
		To:             req.To,
		CallbackURL:    callbackURL,
		StatusCallback: statusCallback,
		Record:         req.Record,
		Timeout:        req.VoicemailTimeout,
	})
	if err != nil {
		writeProviderError(w, "place call", err)
		return
	}

	writeJSON(w, http.StatusOK, makeCallResponse{CallSID: sid})
}

type sendMessageRequest struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	Body           string   `json:"body"`
	MediaURLs      []string `json:"media_urls"`
	StatusCallback string   `json:"status_callback"`
}

type sendMessageResponse struct {
	MessageSID string `json:"message_sid"`
}

// handleSendMessage handles POST /api/v1/messages — send an outbound
// message through the provider.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errMsg := validateDialTarget("to", req.To); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateDialTarget("from", req.From); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("body", req.Body, maxMessageBodyLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateURL("status_callback", req.StatusCallback); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	for _, u := range req.MediaURLs {
		if errMsg := validateURL("media_urls", u); errMsg != "" {
			writeError(w, http.StatusBadRequest, errMsg)
			return
		}
	}

	sid, err := s.gateway.SendMessage(r.Context(), telco.SendMessageParams{
		From:           req.From,
		To:             req.To,
		Body:           req.Body,
		MediaURLs:      req.MediaURLs,
		StatusCallback: req.StatusCallback,
	})
	if err != nil {
		writeProviderError(w, "send message", err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{MessageSID: sid})
}

// handleListCalls handles GET /api/v1/calls — pass-through provider call log.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit, errMsg := parseLimit(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	calls, err := s.gateway.ListCalls(r.Context(), limit)
	if err != nil {
		writeProviderError(w, "list calls", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

// handleListMessages handles GET /api/v1/messages — pass-through provider
// message log.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, errMsg := parseLimit(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	msgs, err := s.gateway.ListMessages(r.Context(), limit)
	if err != nil {
		writeProviderError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// handleListRecordings handles GET /api/v1/recordings[?call_sid=] —
// provider recordings, optionally narrowed to one call.
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	limit, errMsg := parseLimit(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	recs, err := s.gateway.ListRecordings(r.Context(), r.URL.Query().Get("call_sid"), limit)
	if err != nil {
		writeProviderError(w, "list recordings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

// parseLimit reads the optional ?limit= query parameter, clamped to
// maxListLimit. Returns an error message for non-numeric or non-positive
// values.
func parseLimit(r *http.Request) (int, string) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, "limit must be a positive integer"
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, ""
}

// writeProviderError maps a gateway failure to a response. Provider
// rejections surface verbatim as 502; anything else is an internal error.
func writeProviderError(w http.ResponseWriter, op string, err error) {
	var perr *telco.ProviderError
	if errors.As(err, &perr) {
		slog.Error("provider request failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, perr.Error())
		return
	}
	slog.Error("gateway request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
