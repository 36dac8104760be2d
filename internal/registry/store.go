package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/callbridge/callbridge/internal/identity"
)

// TokenStore is the slice of the record store client the registry needs.
// Implemented by *identity.NinoxClient.
type TokenStore interface {
	identity.Resolver
	UpdateNotificationToken(ctx context.Context, identityID, token string) error
}

// Store is the record-store-backed Registry: tokens live on the user's
// record in the external store, so every instance of the relay observes
// the same value and tokens survive restarts.
type Store struct {
	store TokenStore
}

// NewStore creates a registry backed by the external record store.
func NewStore(store TokenStore) *Store {
	return &Store{store: store}
}

// Register persists the token on the user's record. The write that reaches
// the store last determines the stored value.
func (s *Store) Register(ctx context.Context, identityID, token string) error {
	if err := s.store.UpdateNotificationToken(ctx, identityID, token); err != nil {
		return fmt.Errorf("registry: persisting token: %w", err)
	}
	return nil
}

// Lookup reads the token from the user's record via a live resolver query.
func (s *Store) Lookup(ctx context.Context, identityID string) (string, error) {
	user, err := s.store.ResolveByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return "", ErrAbsent
		}
		return "", fmt.Errorf("registry: reading token: %w", err)
	}
	if user.NotificationToken == "" {
		return "", ErrAbsent
	}
	return user.NotificationToken, nil
}
