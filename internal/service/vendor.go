package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/domain/vendor"
	"github.com/openprocure/tenderd/internal/port/database"
)

// VendorService manages the vendor registry.
type VendorService struct {
	store database.Store
}

// NewVendorService creates a VendorService.
func NewVendorService(store database.Store) *VendorService {
	return &VendorService{store: store}
}

// Create registers a vendor.
func (s *VendorService) Create(ctx context.Context, actor *user.User, req vendor.CreateRequest) (*vendor.Vendor, error) {
	if err := requireRole(actor, user.RoleReviewer); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if !strings.Contains(req.Email, "@") {
		return nil, fmt.Errorf("a valid email is required: %w", domain.ErrValidation)
	}
	return s.store.CreateVendor(ctx, req)
}

// List returns all vendors.
func (s *VendorService) List(ctx context.Context) ([]vendor.Vendor, error) {
	return s.store.ListVendors(ctx)
}

// Get returns one vendor.
func (s *VendorService) Get(ctx context.Context, id string) (*vendor.Vendor, error) {
	return s.store.GetVendor(ctx, id)
}
