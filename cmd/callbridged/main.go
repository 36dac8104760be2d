// Command callbridged is the telephony relay daemon: it answers provider
// webhooks for inbound calls, wakes callee devices over FCM, and exposes a
// key-authenticated action API for outbound calls and messages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/callbridge/callbridge/internal/api"
	"github.com/callbridge/callbridge/internal/audit"
	"github.com/callbridge/callbridge/internal/config"
	"github.com/callbridge/callbridge/internal/identity"
	"github.com/callbridge/callbridge/internal/metrics"
	"github.com/callbridge/callbridge/internal/push"
	"github.com/callbridge/callbridge/internal/registry"
	"github.com/callbridge/callbridge/internal/router"
	"github.com/callbridge/callbridge/internal/telco"
)

func main() {
	start := time.Now()

	// A .env file is a development convenience; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "callbridged: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callbridged", "http_port", cfg.HTTPPort, "registry", cfg.Registry)

	// Record store client: resolves identities and persists device tokens.
	ninox := identity.NewNinoxClient(identity.NinoxConfig{
		BaseURL:    cfg.NinoxBaseURL,
		APIKey:     cfg.NinoxAPIKey,
		TeamID:     cfg.NinoxTeamID,
		DatabaseID: cfg.NinoxDatabaseID,
		TableID:    cfg.NinoxTableID,
	})

	var reg registry.Registry
	switch cfg.Registry {
	case "memory":
		slog.Warn("using in-memory token registry, tokens are lost on restart")
		reg = registry.NewMemory()
	default:
		reg = registry.NewStore(ninox)
	}

	// Optional audit store.
	var auditStore *audit.Store
	if cfg.DBDSN != "" {
		auditStore, err = audit.New(cfg.DBDSN)
		if err != nil {
			slog.Error("failed to open audit store", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()
	} else {
		slog.Warn("no -db-dsn provided, routing decisions are not persisted")
	}

	// Push sender. The relay still routes calls without one; callees just
	// do not get woken before the dial.
	var notifier router.Notifier
	var dispatcher *push.Dispatcher
	fcmSender, err := push.NewFCMSender(context.Background(), cfg.FCMCredentials)
	if err != nil {
		slog.Warn("fcm sender not available, wake-up notifications disabled", "error", err)
		notifier = noopNotifier{}
	} else {
		var attempts push.AttemptLogger
		if auditStore != nil {
			attempts = auditStore
		}
		dispatcher = push.NewDispatcher(fcmSender, attempts)
		defer dispatcher.Drain()
		notifier = dispatcher
	}

	var decisions router.DecisionLogger
	var events api.EventLogger
	if auditStore != nil {
		decisions = auditStore
		events = auditStore
	}

	decider := router.New(ninox, reg, notifier, decisions)
	defer decider.Close()

	gateway := telco.NewTwilioGateway(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)

	var minter api.VoiceTokenMinter
	if cfg.TokensEnabled() {
		minter = telco.NewTokenMinter(cfg.TwilioAccountSID, cfg.TwilioAPIKeySID,
			cfg.TwilioAPIKeySecret, cfg.TwilioAppSID)
	} else {
		slog.Warn("twilio api key pair not configured, access token endpoint disabled")
	}

	var pushStats metrics.PushStatsProvider
	if dispatcher != nil {
		pushStats = dispatcher
	}
	collector := metrics.NewCollector(decider, pushStats, start)

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Decider:   decider,
		Resolver:  ninox,
		Registry:  reg,
		Gateway:   gateway,
		Minter:    minter,
		Validator: telco.Validator(cfg.TwilioAuthToken),
		Events:    events,
		Metrics:   metrics.Handler(collector),
	})
	defer server.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down http server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("callbridged stopped")
}

// noopNotifier stands in when no push sender is configured.
type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _ string, _ push.Payload) {}
