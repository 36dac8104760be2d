package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// lookupTimeout bounds every round trip to the record store. A store that
// answers slower than this is treated as unavailable.
const lookupTimeout = 5 * time.Second

// NinoxConfig holds the connection parameters for the Ninox record store.
type NinoxConfig struct {
	BaseURL    string // e.g. "https://api.ninox.com/v1"
	APIKey     string
	TeamID     string
	DatabaseID string
	TableID    string // table holding app-user records
}

// NinoxClient implements Resolver against the Ninox HTTP API. It also
// exposes UpdateNotificationToken, which the store-backed token registry
// uses to persist push tokens on the user's record.
type NinoxClient struct {
	httpClient *http.Client
	cfg        NinoxConfig
}

// NewNinoxClient creates a record store client with a bounded timeout.
func NewNinoxClient(cfg NinoxConfig) *NinoxClient {
	return &NinoxClient{
		httpClient: &http.Client{Timeout: lookupTimeout},
		cfg:        cfg,
	}
}

// record is one row returned by the Ninox query endpoint.
type record struct {
	ID     int64        `json:"id"`
	Fields recordFields `json:"fields"`
}

// recordFields maps the app-user table's column names. These names are the
// record store's own convention and must not leak past this package.
type recordFields struct {
	AppUserID         string `json:"AppUserId"`
	AssignedNumber    string `json:"AssignedTwilioNumber"`
	ClientIdentity    string `json:"TwilioClientIdentity"`
	NotificationToken string `json:"FCMToken"`
}

// queryRequest is the JSON body for POST <db>/query.
type queryRequest struct {
	Query string `json:"query"`
}

// ResolveByIdentity looks up a user by the opaque app-user identifier.
func (c *NinoxClient) ResolveByIdentity(ctx context.Context, identityID string) (*User, error) {
	q := fmt.Sprintf(`select %s where AppUserId = "%s"`, c.cfg.TableID, escapeNQL(identityID))
	return c.queryOne(ctx, q)
}

// ResolveByNumber looks up a user by the number that was dialed.
func (c *NinoxClient) ResolveByNumber(ctx context.Context, number string) (*User, error) {
	q := fmt.Sprintf(`select %s where AssignedTwilioNumber = "%s"`, c.cfg.TableID, escapeNQL(number))
	return c.queryOne(ctx, q)
}

// UpdateNotificationToken overwrites the push token stored on the user's
// record. Last write wins; there is no ordering guarantee between
// concurrent updates for the same identity.
func (c *NinoxClient) UpdateNotificationToken(ctx context.Context, identityID, token string) error {
	user, err := c.ResolveByIdentity(ctx, identityID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"fields": map[string]string{"FCMToken": token},
	})
	if err != nil {
		return fmt.Errorf("identity: marshalling token update: %w", err)
	}

	url := fmt.Sprintf("%s/teams/%s/databases/%s/tables/%s/records/%d",
		c.cfg.BaseURL, c.cfg.TeamID, c.cfg.DatabaseID, c.cfg.TableID, user.RecordID)

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: creating update request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: updating token: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: token update returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	slog.Debug("notification token updated", "identity_id", identityID, "record_id", user.RecordID)
	return nil
}

// queryOne runs a record query and returns the first matching user.
func (c *NinoxClient) queryOne(ctx context.Context, query string) (*User, error) {
	body, err := json.Marshal(queryRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("identity: marshalling query: %w", err)
	}

	url := fmt.Sprintf("%s/teams/%s/databases/%s/query", c.cfg.BaseURL, c.cfg.TeamID, c.cfg.DatabaseID)

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: creating query request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading query response: %v", ErrStoreUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: query returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}

	var rows []record
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("%w: decoding query response: %v", ErrStoreUnavailable, err)
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	// The store enforces at most one active owner per number; if it ever
	// returns several rows the first one wins.
	r := rows[0]
	return &User{
		RecordID:          r.ID,
		IdentityID:        r.Fields.AppUserID,
		AssignedNumber:    r.Fields.AssignedNumber,
		ClientIdentity:    r.Fields.ClientIdentity,
		NotificationToken: r.Fields.NotificationToken,
	}, nil
}

// setHeaders applies the authorization and content-type headers common to
// all record store requests.
func (c *NinoxClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// escapeNQL escapes characters that would break out of a quoted NQL
// string. The value itself is preserved so identities containing quotes
// or backslashes can still be looked up.
func escapeNQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
