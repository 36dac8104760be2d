package telco

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testMinter() *TokenMinter {
	m := NewTokenMinter("AC123", "SK456", "supersecret", "AP789")
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	return m
}

func TestMintVoiceToken(t *testing.T) {
	signed, err := testMinter().MintVoiceToken("client-alice")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	tok, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte("supersecret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return time.Unix(1700000100, 0) }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tok.Valid {
		t.Fatal("token not valid")
	}
	if cty := tok.Header["cty"]; cty != "twilio-fpa;v=1" {
		t.Errorf("cty = %v, want twilio-fpa;v=1", cty)
	}

	claims := tok.Claims.(jwt.MapClaims)
	if claims["iss"] != "SK456" {
		t.Errorf("iss = %v, want SK456", claims["iss"])
	}
	if claims["sub"] != "AC123" {
		t.Errorf("sub = %v, want AC123", claims["sub"])
	}
	if claims["exp"].(float64)-claims["iat"].(float64) != tokenTTL.Seconds() {
		t.Errorf("ttl = %v, want %v", claims["exp"].(float64)-claims["iat"].(float64), tokenTTL.Seconds())
	}

	grants, ok := claims["grants"].(map[string]any)
	if !ok {
		t.Fatalf("grants missing: %v", claims)
	}
	if grants["identity"] != "client-alice" {
		t.Errorf("identity = %v, want client-alice", grants["identity"])
	}
	voice := grants["voice"].(map[string]any)
	incoming := voice["incoming"].(map[string]any)
	if incoming["allow"] != true {
		t.Errorf("incoming.allow = %v, want true", incoming["allow"])
	}
	outgoing := voice["outgoing"].(map[string]any)
	if outgoing["application_sid"] != "AP789" {
		t.Errorf("application_sid = %v, want AP789", outgoing["application_sid"])
	}
}

func TestMintVoiceTokenNoOutgoingApp(t *testing.T) {
	m := testMinter()
	m.appSID = ""

	signed, err := m.MintVoiceToken("client-bob")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	tok, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	grants := tok.Claims.(jwt.MapClaims)["grants"].(map[string]any)
	voice := grants["voice"].(map[string]any)
	if _, ok := voice["outgoing"]; ok {
		t.Error("outgoing grant present without application sid")
	}
}

func TestMintVoiceTokenMissingCredentials(t *testing.T) {
	m := NewTokenMinter("AC123", "", "", "AP789")
	if _, err := m.MintVoiceToken("client-alice"); !errors.Is(err, ErrNoTokenCredentials) {
		t.Errorf("err = %v, want ErrNoTokenCredentials", err)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ProviderError{Op: "create call", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ProviderError does not unwrap to inner error")
	}
	if err.Error() != "provider: create call: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
