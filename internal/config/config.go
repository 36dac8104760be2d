package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the callbridge relay.
// Precedence: CLI flags > env vars > defaults. It is built once in main
// and passed explicitly to every component constructor; nothing reads the
// environment ad hoc at request time.
type Config struct {
	HTTPPort int
	BaseURL  string // public base URL used in provider callbacks (e.g. "https://relay.example.com")
	APIKey   string // shared secret required on all /api/v1 endpoints

	LogLevel    string
	LogFormat   string // "text" or "json"
	CORSOrigins string

	// Registry selects the device-token persistence strategy:
	// "store" delegates to the external record store, "memory" keeps
	// tokens in process memory (single instance, lost on restart).
	Registry string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioAPIKeySID    string // API key pair used for minting voice access tokens
	TwilioAPIKeySecret string
	TwilioAppSID       string // TwiML application SID granted to outgoing client calls

	NinoxBaseURL    string
	NinoxAPIKey     string
	NinoxTeamID     string
	NinoxDatabaseID string
	NinoxTableID    string // table holding the app-user records

	FCMCredentials string // path to Firebase service account JSON (optional, falls back to ADC)

	DBDSN string // optional PostgreSQL DSN for the audit store

	// SkipWebhookAuth disables Twilio signature validation on /webhooks.
	// Local testing only.
	SkipWebhookAuth bool
}

// defaults
const (
	defaultHTTPPort     = 8080
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultRegistry     = "store"
	defaultNinoxBaseURL = "https://api.ninox.com/v1"
)

// envPrefix is the prefix for all callbridge environment variables.
const envPrefix = "CALLBRIDGE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("callbridge", flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "public base URL for provider callbacks (e.g. https://relay.example.com)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "shared secret required in the X-API-Key header on client API endpoints")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.Registry, "registry", defaultRegistry, "device-token registry backend (store, memory)")
	fs.StringVar(&cfg.TwilioAccountSID, "twilio-account-sid", "", "Twilio account SID")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token (also used to validate webhook signatures)")
	fs.StringVar(&cfg.TwilioAPIKeySID, "twilio-api-key-sid", "", "Twilio API key SID for voice access tokens")
	fs.StringVar(&cfg.TwilioAPIKeySecret, "twilio-api-key-secret", "", "Twilio API key secret for voice access tokens")
	fs.StringVar(&cfg.TwilioAppSID, "twilio-app-sid", "", "TwiML application SID for outgoing client calls")
	fs.StringVar(&cfg.NinoxBaseURL, "ninox-base-url", defaultNinoxBaseURL, "base URL of the Ninox record store API")
	fs.StringVar(&cfg.NinoxAPIKey, "ninox-api-key", "", "Ninox API key")
	fs.StringVar(&cfg.NinoxTeamID, "ninox-team-id", "", "Ninox team ID")
	fs.StringVar(&cfg.NinoxDatabaseID, "ninox-database-id", "", "Ninox database ID")
	fs.StringVar(&cfg.NinoxTableID, "ninox-table-id", "", "Ninox table ID holding app-user records")
	fs.StringVar(&cfg.FCMCredentials, "fcm-credentials", "", "path to Firebase service account JSON file (or set GOOGLE_APPLICATION_CREDENTIALS)")
	fs.StringVar(&cfg.DBDSN, "db-dsn", "", "PostgreSQL connection string for the audit store (optional)")
	fs.BoolVar(&cfg.SkipWebhookAuth, "skip-webhook-auth", false, "disable Twilio signature validation on webhooks (local testing only)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the
	// command line. CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envMap := map[string]string{
		"http-port":             envPrefix + "HTTP_PORT",
		"base-url":              envPrefix + "BASE_URL",
		"api-key":               envPrefix + "API_KEY",
		"log-level":             envPrefix + "LOG_LEVEL",
		"log-format":            envPrefix + "LOG_FORMAT",
		"cors-origins":          envPrefix + "CORS_ORIGINS",
		"registry":              envPrefix + "REGISTRY",
		"twilio-account-sid":    envPrefix + "TWILIO_ACCOUNT_SID",
		"twilio-auth-token":     envPrefix + "TWILIO_AUTH_TOKEN",
		"twilio-api-key-sid":    envPrefix + "TWILIO_API_KEY_SID",
		"twilio-api-key-secret": envPrefix + "TWILIO_API_KEY_SECRET",
		"twilio-app-sid":        envPrefix + "TWILIO_APP_SID",
		"ninox-base-url":        envPrefix + "NINOX_BASE_URL",
		"ninox-api-key":         envPrefix + "NINOX_API_KEY",
		"ninox-team-id":         envPrefix + "NINOX_TEAM_ID",
		"ninox-database-id":     envPrefix + "NINOX_DATABASE_ID",
		"ninox-table-id":        envPrefix + "NINOX_TABLE_ID",
		"fcm-credentials":       envPrefix + "FCM_CREDENTIALS",
		"db-dsn":                envPrefix + "DB_DSN",
		"skip-webhook-auth":     envPrefix + "SKIP_WEBHOOK_AUTH",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "base-url":
			cfg.BaseURL = val
		case "api-key":
			cfg.APIKey = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "cors-origins":
			cfg.CORSOrigins = val
		case "registry":
			cfg.Registry = val
		case "twilio-account-sid":
			cfg.TwilioAccountSID = val
		case "twilio-auth-token":
			cfg.TwilioAuthToken = val
		case "twilio-api-key-sid":
			cfg.TwilioAPIKeySID = val
		case "twilio-api-key-secret":
			cfg.TwilioAPIKeySecret = val
		case "twilio-app-sid":
			cfg.TwilioAppSID = val
		case "ninox-base-url":
			cfg.NinoxBaseURL = val
		case "ninox-api-key":
			cfg.NinoxAPIKey = val
		case "ninox-team-id":
			cfg.NinoxTeamID = val
		case "ninox-database-id":
			cfg.NinoxDatabaseID = val
		case "ninox-table-id":
			cfg.NinoxTableID = val
		case "fcm-credentials":
			cfg.FCMCredentials = val
		case "db-dsn":
			cfg.DBDSN = val
		case "skip-webhook-auth":
			if v, err := strconv.ParseBool(val); err == nil {
				cfg.SkipWebhookAuth = v
			}
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	if c.Registry != "store" && c.Registry != "memory" {
		return fmt.Errorf("registry must be one of store, memory; got %q", c.Registry)
	}

	if c.APIKey == "" {
		return fmt.Errorf("api-key is required")
	}

	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base-url must be an absolute URL, got %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		return fmt.Errorf("twilio-account-sid and twilio-auth-token are required")
	}

	// The access-token key pair must be set together or not at all. When
	// absent the token endpoint responds 503 instead of failing startup.
	if (c.TwilioAPIKeySID == "") != (c.TwilioAPIKeySecret == "") {
		return fmt.Errorf("twilio-api-key-sid and twilio-api-key-secret must both be provided or both be omitted")
	}

	if c.NinoxAPIKey == "" || c.NinoxTeamID == "" || c.NinoxDatabaseID == "" || c.NinoxTableID == "" {
		return fmt.Errorf("ninox-api-key, ninox-team-id, ninox-database-id and ninox-table-id are required")
	}
	c.NinoxBaseURL = strings.TrimRight(c.NinoxBaseURL, "/")

	return nil
}

// CallbackURL joins the public base URL with a webhook path.
func (c *Config) CallbackURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// TokensEnabled reports whether the voice access-token endpoint can mint
// tokens (the Twilio API key pair is configured).
func (c *Config) TokensEnabled() bool {
	return c.TwilioAPIKeySID != "" && c.TwilioAPIKeySecret != ""
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
