// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/openprocure/tenderd/internal/domain/award"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/domain/settings"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/domain/vendor"
)

// Store is the port interface for database operations. Update methods that
// take an entity pointer apply an optimistic version check: a stale Version
// surfaces domain.ErrConflict and increments nothing.
type Store interface {
	// Requisitions
	ListRequisitions(ctx context.Context) ([]requisition.Requisition, error)
	GetRequisition(ctx context.Context, id string) (*requisition.Requisition, error)
	CreateRequisition(ctx context.Context, req requisition.CreateRequest) (*requisition.Requisition, error)
	UpdateRequisition(ctx context.Context, r *requisition.Requisition) error

	// Quotations
	ListQuotations(ctx context.Context, requisitionID string) ([]quotation.Quotation, error)
	GetQuotation(ctx context.Context, id string) (*quotation.Quotation, error)
	CreateQuotation(ctx context.Context, requisitionID string, req quotation.SubmitRequest) (*quotation.Quotation, error)
	UpdateQuotation(ctx context.Context, q *quotation.Quotation) error

	// Committee score sets
	UpsertScoreSet(ctx context.Context, set *quotation.CommitteeScoreSet) error
	ListScoreSets(ctx context.Context, requisitionID string) ([]quotation.CommitteeScoreSet, error)
	MarkScoresSubmitted(ctx context.Context, requisitionID, scorerID string) error
	SubmittedScorers(ctx context.Context, requisitionID string) ([]string, error)
	ClearScoreSubmissions(ctx context.Context, requisitionID string) error

	// Per-item award details
	CreateAwardDetails(ctx context.Context, details []award.PerItemAwardDetail) error
	ListAwardDetails(ctx context.Context, requisitionID string) ([]award.PerItemAwardDetail, error)
	GetAwardDetail(ctx context.Context, id string) (*award.PerItemAwardDetail, error)
	UpdateAwardDetail(ctx context.Context, d *award.PerItemAwardDetail) error

	// Vendors
	ListVendors(ctx context.Context) ([]vendor.Vendor, error)
	GetVendor(ctx context.Context, id string) (*vendor.Vendor, error)
	CreateVendor(ctx context.Context, req vendor.CreateRequest) (*vendor.Vendor, error)

	// Users and API keys
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	CreateAPIKey(ctx context.Context, key *user.APIKey) error
	ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]user.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error

	// Procurement settings
	GetSettings(ctx context.Context) (settings.Procurement, error)
	UpdateSettings(ctx context.Context, s settings.Procurement) error
}
