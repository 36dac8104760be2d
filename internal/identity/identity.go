// Package identity resolves app users against the external record store
// that owns phone-number assignment and device-token state. Lookups are
// live round trips; nothing is cached locally.
package identity

import (
	"context"
	"errors"
)

// User is one app user's routing record as held by the external store.
type User struct {
	RecordID          int64  // record store row ID, needed for updates
	IdentityID        string // opaque, stable app-user identifier
	AssignedNumber    string // E.164 number owned by this user
	ClientIdentity    string // address used for the provider's client-dial primitive
	NotificationToken string // most recent push token; may be empty
}

// Reachable reports whether an inbound call can be connected to this user:
// it must own the dialed number and have a registered client identity.
// The notification token is advisory and plays no part here.
func (u *User) Reachable() bool {
	return u.AssignedNumber != "" && u.ClientIdentity != ""
}

// ErrNotFound indicates the query succeeded but matched no user. Distinct
// from transport failures: callers route on this difference.
var ErrNotFound = errors.New("identity: no matching user")

// ErrStoreUnavailable indicates the record store could not be reached or
// answered outside its bounded timeout. Errors wrapping it are transport
// errors in the router's taxonomy.
var ErrStoreUnavailable = errors.New("identity: record store unavailable")

// Resolver looks up users in the external record store.
type Resolver interface {
	// ResolveByIdentity returns the user with the given app-user
	// identifier, or ErrNotFound.
	ResolveByIdentity(ctx context.Context, identityID string) (*User, error)

	// ResolveByNumber returns the user whose assigned number matches the
	// dialed number, or ErrNotFound.
	ResolveByNumber(ctx context.Context, number string) (*User, error)
}
