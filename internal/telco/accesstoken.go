package telco

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const tokenTTL = time.Hour

// ErrNoTokenCredentials is returned when the minter was built without an
// API key pair.
var ErrNoTokenCredentials = errors.New("telco: access token credentials not configured")

// TokenMinter mints Twilio voice access tokens for client SDK instances.
// The token is an HS256 JWT signed with the API key secret, carrying a
// voice grant that allows incoming calls and routes outgoing ones through
// the configured TwiML application.
type TokenMinter struct {
	accountSID   string
	apiKeySID    string
	apiKeySecret string
	appSID       string
	ttl          time.Duration

	now func() time.Time
}

func NewTokenMinter(accountSID, apiKeySID, apiKeySecret, appSID string) *TokenMinter {
	return &TokenMinter{
		accountSID:   accountSID,
		apiKeySID:    apiKeySID,
		apiKeySecret: apiKeySecret,
		appSID:       appSID,
		ttl:          tokenTTL,
		now:          time.Now,
	}
}

// MintVoiceToken returns a signed access token granting the given client
// identity voice access.
func (m *TokenMinter) MintVoiceToken(clientIdentity string) (string, error) {
	if m.apiKeySID == "" || m.apiKeySecret == "" {
		return "", ErrNoTokenCredentials
	}

	voice := map[string]any{
		"incoming": map[string]any{"allow": true},
	}
	if m.appSID != "" {
		voice["outgoing"] = map[string]any{"application_sid": m.appSID}
	}

	now := m.now()
	claims := jwt.MapClaims{
		"jti": m.apiKeySID + "-" + uuid.NewString(),
		"iss": m.apiKeySID,
		"sub": m.accountSID,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
		"grants": map[string]any{
			"identity": clientIdentity,
			"voice":    voice,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["cty"] = "twilio-fpa;v=1"
	return tok.SignedString([]byte(m.apiKeySecret))
}
