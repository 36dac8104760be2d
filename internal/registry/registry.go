// Package registry associates an app-user identity with its most recent
// push-notification token. Persistence is pluggable: the store-backed
// implementation delegates to the external record store, the memory
// implementation keeps tokens in process memory for single-instance
// deployments.
package registry

import (
	"context"
	"errors"
)

// ErrAbsent indicates no token is registered for the identity. Callers
// treat this as advisory: the absence of a token never blocks a call, it
// only skips the wake-up notification.
var ErrAbsent = errors.New("registry: no token registered")

// Registry stores the latest push token per identity. Register is
// last-write-wins; concurrent registrations for the same identity are
// benign and readers may observe either value, never a corrupted one.
type Registry interface {
	// Register idempotently overwrites the stored token for an identity.
	Register(ctx context.Context, identityID, token string) error

	// Lookup returns the stored token for an identity, or ErrAbsent.
	Lookup(ctx context.Context, identityID string) (string, error)
}
