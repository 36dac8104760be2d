package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/callbridge/callbridge/internal/identity"
)

type registerDeviceRequest struct {
	IdentityID string `json:"identity_id"`
	Token      string `json:"token"`
}

type registerDeviceResponse struct {
	Registered bool `json:"registered"`
}

// handleRegisterDevice handles POST /api/v1/devices — bind a push
// registration token to an app identity. Last write wins.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errMsg := validateRequiredStringLen("identity_id", req.IdentityID, maxIdentityLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("token", req.Token, maxTokenLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	err := s.registry.Register(r.Context(), req.IdentityID, req.Token)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown identity")
		return
	case errors.Is(err, identity.ErrStoreUnavailable):
		slog.Error("device registration failed, store unreachable",
			"identity_id", req.IdentityID, "error", err)
		writeError(w, http.StatusBadGateway, "record store unavailable")
		return
	case err != nil:
		slog.Error("device registration failed",
			"identity_id", req.IdentityID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("device token registered", "identity_id", req.IdentityID)
	writeJSON(w, http.StatusOK, registerDeviceResponse{Registered: true})
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleToken handles GET /api/v1/token?identity_id= — mint a provider
// voice access token addressed to the identity's client.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.minter == nil {
		writeError(w, http.StatusServiceUnavailable, "access tokens not configured")
		return
	}

	identityID := r.URL.Query().Get("identity_id")
	if errMsg := validateRequiredStringLen("identity_id", identityID, maxIdentityLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	user, err := s.resolver.ResolveByIdentity(r.Context(), identityID)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown identity")
		return
	case err != nil:
		slog.Error("token minting failed, identity lookup error",
			"identity_id", identityID, "error", err)
		writeError(w, http.StatusBadGateway, "record store unavailable")
		return
	case user.ClientIdentity == "":
		writeError(w, http.StatusConflict, "identity has no registered client")
		return
	}

	token, err := s.minter.MintVoiceToken(user.ClientIdentity)
	if err != nil {
		slog.Error("token minting failed", "identity_id", identityID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
