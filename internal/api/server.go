// Package api is the HTTP surface of the relay: provider webhooks on one
// side, the key-authenticated client API on the other.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/callbridge/callbridge/internal/api/middleware"
	"github.com/callbridge/callbridge/internal/config"
	"github.com/callbridge/callbridge/internal/identity"
	"github.com/callbridge/callbridge/internal/registry"
	"github.com/callbridge/callbridge/internal/router"
	"github.com/callbridge/callbridge/internal/telco"
)

// VoiceTokenMinter mints provider voice access tokens. Nil when the API
// key pair is not configured; the token endpoint then returns 503.
type VoiceTokenMinter interface {
	MintVoiceToken(clientIdentity string) (string, error)
}

// Deps are the collaborators the HTTP layer dispatches into. Decider,
// Resolver, Registry and Gateway are required; Minter and Metrics are
// optional.
type Deps struct {
	Config    *config.Config
	Decider   *router.Router
	Resolver  identity.Resolver
	Registry  registry.Registry
	Gateway   telco.Gateway
	Minter    VoiceTokenMinter
	Validator middleware.SignatureValidator
	Events    EventLogger
	Metrics   http.Handler
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	decider  *router.Router
	resolver identity.Resolver
	registry registry.Registry
	gateway  telco.Gateway
	minter   VoiceTokenMinter
	events   EventLogger // may be nil

	apiLimiter     *middleware.IPRateLimiter
	webhookLimiter *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(d Deps) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		cfg:            d.Config,
		decider:        d.Decider,
		resolver:       d.Resolver,
		registry:       d.Registry,
		gateway:        d.Gateway,
		minter:         d.Minter,
		events:         d.Events,
		apiLimiter:     middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
		webhookLimiter: middleware.NewIPRateLimiter(middleware.WebhookRateLimitConfig()),
	}

	s.routes(d.Validator, d.Metrics)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiters' background cleanup goroutines.
func (s *Server) Close() {
	s.apiLimiter.Stop()
	s.webhookLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes(validator middleware.SignatureValidator, metrics http.Handler) {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// Provider webhooks: form-encoded, signature-validated.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.webhookLimiter))
		r.Use(middleware.TwilioSignature(validator, s.cfg.BaseURL, s.cfg.SkipWebhookAuth))

		r.Post("/voice-inbound", s.handleVoiceInbound)
		r.Post("/call-status", s.handleCallStatus)
		r.Post("/voicemail", s.handleVoicemail)
		r.Post("/voicemail/recorded", s.handleVoicemailRecorded)
		r.Post("/sms-inbound", s.handleSMSInbound)
	})

	// Client API: JSON envelope, shared-secret auth.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.ParseCORSOrigins(s.cfg.CORSOrigins)))
		r.Use(middleware.RateLimit(s.apiLimiter))
		r.Use(middleware.APIKey(s.cfg.APIKey))

		r.Post("/devices", s.handleRegisterDevice)
		r.Get("/token", s.handleToken)

		r.Post("/calls", s.handleMakeCall)
		r.Get("/calls", s.handleListCalls)
		r.Post("/messages", s.handleSendMessage)
		r.Get("/messages", s.handleListMessages)
		r.Get("/recordings", s.handleListRecordings)
	})
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
