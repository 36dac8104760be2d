package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/callbridge/callbridge/internal/identity"
)

func TestMemoryLastWriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Register(ctx, "u1", "tokA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Register(ctx, "u1", "tokB"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.Lookup(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "tokB" {
		t.Errorf("Lookup = %q, want tokB", got)
	}
}

func TestMemoryAbsent(t *testing.T) {
	m := NewMemory()

	if _, err := m.Lookup(context.Background(), "u1"); !errors.Is(err, ErrAbsent) {
		t.Fatalf("err = %v, want ErrAbsent", err)
	}
}

func TestMemoryConcurrentRegister(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Register(ctx, "u1", "tokA") //nolint:errcheck
		}()
		go func() {
			defer wg.Done()
			if tok, err := m.Lookup(ctx, "u1"); err == nil && tok != "tokA" {
				t.Errorf("observed corrupted token %q", tok)
			}
		}()
	}
	wg.Wait()
}

// fakeTokenStore implements TokenStore for testing the store-backed registry.
type fakeTokenStore struct {
	users      map[string]*identity.User
	updates    map[string]string
	resolveErr error
	updateErr  error
}

func (f *fakeTokenStore) ResolveByIdentity(_ context.Context, id string) (*identity.User, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeTokenStore) ResolveByNumber(_ context.Context, _ string) (*identity.User, error) {
	return nil, identity.ErrNotFound
}

func (f *fakeTokenStore) UpdateNotificationToken(_ context.Context, id, token string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = make(map[string]string)
	}
	f.updates[id] = token
	return nil
}

func TestStoreRegister(t *testing.T) {
	fake := &fakeTokenStore{}
	s := NewStore(fake)

	if err := s.Register(context.Background(), "u1", "tokB"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.updates["u1"] != "tokB" {
		t.Errorf("stored token = %q, want tokB", fake.updates["u1"])
	}
}

func TestStoreLookup(t *testing.T) {
	fake := &fakeTokenStore{users: map[string]*identity.User{
		"u1": {IdentityID: "u1", NotificationToken: "tokB"},
	}}
	s := NewStore(fake)

	got, err := s.Lookup(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "tokB" {
		t.Errorf("Lookup = %q, want tokB", got)
	}
}

func TestStoreLookupAbsent(t *testing.T) {
	fake := &fakeTokenStore{users: map[string]*identity.User{
		"u2": {IdentityID: "u2"}, // record exists, no token field
	}}
	s := NewStore(fake)

	if _, err := s.Lookup(context.Background(), "u2"); !errors.Is(err, ErrAbsent) {
		t.Errorf("err = %v, want ErrAbsent for empty token", err)
	}
	if _, err := s.Lookup(context.Background(), "ghost"); !errors.Is(err, ErrAbsent) {
		t.Errorf("err = %v, want ErrAbsent for missing record", err)
	}
}

func TestStoreLookupTransportError(t *testing.T) {
	fake := &fakeTokenStore{resolveErr: identity.ErrStoreUnavailable}
	s := NewStore(fake)

	_, err := s.Lookup(context.Background(), "u1")
	if !errors.Is(err, identity.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want wrapped ErrStoreUnavailable", err)
	}
	if errors.Is(err, ErrAbsent) {
		t.Fatal("transport error must not look like ErrAbsent")
	}
}
