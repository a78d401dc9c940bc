package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/user"
)

func newAuthService(store *mockStore) *AuthService {
	svc := NewAuthService(store)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func seedUser(store *mockStore, role user.Role, enabled bool) *user.User {
	u := user.User{
		ID:      store.nextID("user"),
		Email:   store.nextID("mail") + "@example.com",
		Name:    "Test User",
		Role:    role,
		Enabled: enabled,
	}
	store.users = append(store.users, u)
	return &u
}

func TestAuthServiceCreateAndValidateAPIKey(t *testing.T) {
	store := newMockStore()
	u := seedUser(store, user.RoleReviewer, true)
	svc := newAuthService(store)

	resp, err := svc.CreateAPIKey(context.Background(), u.ID, "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(resp.PlainKey, APIKeyPrefix) {
		t.Fatalf("expected key prefix %q, got %q", APIKeyPrefix, resp.PlainKey)
	}
	if resp.APIKey.Prefix != resp.PlainKey[:12] {
		t.Fatalf("stored prefix %q does not match key", resp.APIKey.Prefix)
	}

	got, err := svc.ValidateAPIKey(context.Background(), resp.PlainKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.ID)
	}
	if store.apiKeys[0].LastUsedAt == nil {
		t.Fatal("expected last_used_at touched on validation")
	}
}

func TestAuthServiceCreateAPIKeyRequiresName(t *testing.T) {
	store := newMockStore()
	u := seedUser(store, user.RoleReviewer, true)

	_, err := newAuthService(store).CreateAPIKey(context.Background(), u.ID, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAuthServiceCreateAPIKeyUnknownUser(t *testing.T) {
	store := newMockStore()
	_, err := newAuthService(store).CreateAPIKey(context.Background(), "nobody", "ci")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthServiceValidateMalformedKey(t *testing.T) {
	store := newMockStore()
	_, err := newAuthService(store).ValidateAPIKey(context.Background(), "short")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthServiceValidateUnknownKey(t *testing.T) {
	store := newMockStore()
	_, err := newAuthService(store).ValidateAPIKey(context.Background(), APIKeyPrefix+"deadbeefdeadbeefdeadbeef")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthServiceValidateDisabledUser(t *testing.T) {
	store := newMockStore()
	u := seedUser(store, user.RoleReviewer, false)
	svc := newAuthService(store)

	resp, err := svc.CreateAPIKey(context.Background(), u.ID, "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	_, err = svc.ValidateAPIKey(context.Background(), resp.PlainKey)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for disabled user, got %v", err)
	}
}

func TestAuthServiceBootstrapAdmin(t *testing.T) {
	store := newMockStore()
	svc := newAuthService(store)

	u, key, err := svc.BootstrapAdmin(context.Background(), "ops@example.com", "Ops")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if u.Role != user.RoleAdmin || !u.Enabled {
		t.Fatalf("expected enabled admin, got %+v", u)
	}
	if key.PlainKey == "" {
		t.Fatal("expected a plaintext bootstrap key")
	}

	if _, _, err := svc.BootstrapAdmin(context.Background(), "ops@example.com", "Ops"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second bootstrap, got %v", err)
	}
}
