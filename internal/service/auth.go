package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/port/database"
)

// APIKeyPrefix prefixes every issued key so stray tokens are recognizable.
const APIKeyPrefix = "tdk_"

// AuthService issues and validates API keys. Keys are stored bcrypt-hashed;
// the plaintext is returned once at creation.
type AuthService struct {
	store      database.Store
	bcryptCost int
}

// NewAuthService creates an AuthService.
func NewAuthService(store database.Store) *AuthService {
	return &AuthService{store: store, bcryptCost: bcrypt.DefaultCost}
}

// CreateAPIKeyResponse carries the one-time plaintext key.
type CreateAPIKeyResponse struct {
	APIKey   user.APIKey `json:"api_key"`
	PlainKey string      `json:"plain_key"`
}

// CreateAPIKey generates a new API key for a user.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string) (*CreateAPIKeyResponse, error) {
	if name == "" {
		return nil, fmt.Errorf("key name is required: %w", domain.ErrValidation)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	plainKey := APIKeyPrefix + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	key := &user.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Prefix:    plainKey[:12],
		Hash:      string(hash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return &CreateAPIKeyResponse{APIKey: *key, PlainKey: plainKey}, nil
}

// ValidateAPIKey resolves a plaintext key to its user. Candidate rows are
// narrowed by the stored prefix before the bcrypt comparison.
func (s *AuthService) ValidateAPIKey(ctx context.Context, plainKey string) (*user.User, error) {
	if len(plainKey) < 12 {
		return nil, fmt.Errorf("malformed api key: %w", domain.ErrUnauthorized)
	}
	keys, err := s.store.ListAPIKeysByPrefix(ctx, plainKey[:12])
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if bcrypt.CompareHashAndPassword([]byte(keys[i].Hash), []byte(plainKey)) != nil {
			continue
		}
		u, err := s.store.GetUser(ctx, keys[i].UserID)
		if err != nil {
			return nil, err
		}
		if !u.Enabled {
			return nil, fmt.Errorf("user %s is disabled: %w", u.ID, domain.ErrUnauthorized)
		}
		if err := s.store.TouchAPIKey(ctx, keys[i].ID); err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, fmt.Errorf("unknown api key: %w", domain.ErrUnauthorized)
}

// BootstrapAdmin creates the initial admin user and key when none exists.
// Used by the admin CLI on first install.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, name string) (*user.User, *CreateAPIKeyResponse, error) {
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, fmt.Errorf("user %s already exists: %w", email, domain.ErrConflict)
	}
	u := &user.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      user.RoleAdmin,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, nil, err
	}
	key, err := s.CreateAPIKey(ctx, u.ID, "bootstrap")
	if err != nil {
		return nil, nil, err
	}
	return u, key, nil
}
