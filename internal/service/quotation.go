package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/award"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/port/database"
)

// QuotationService handles vendor quotation intake and reads.
type QuotationService struct {
	store database.Store
	now   func() time.Time
}

// NewQuotationService creates a QuotationService.
func NewQuotationService(store database.Store) *QuotationService {
	return &QuotationService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Submit records a vendor's quotation. Quoting must be open, the deadline not
// passed, and the vendor must not have bid already (one quotation per
// requisition and vendor).
func (s *QuotationService) Submit(ctx context.Context, actor *user.User, requisitionID string, req quotation.SubmitRequest) (*quotation.Quotation, error) {
	if actor == nil {
		return nil, fmt.Errorf("no authenticated user: %w", domain.ErrUnauthorized)
	}
	if actor.Role == user.RoleVendor {
		req.VendorID = actor.VendorID
	}
	if req.VendorID == "" {
		return nil, fmt.Errorf("vendor_id is required: %w", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one quote item is required: %w", domain.ErrValidation)
	}

	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if r.Status != requisition.StatusAcceptingQuotes {
		return nil, fmt.Errorf("requisition %s is %s, not accepting quotes: %w",
			r.ID, r.Status, domain.ErrInvalidTransition)
	}
	if s.now().After(r.Deadline) {
		return nil, fmt.Errorf("quote deadline has passed: %w", domain.ErrPreconditionNotMet)
	}

	seen := make(map[string]struct{}, len(req.Items))
	for i, item := range req.Items {
		if itemByID(r.Items, item.RequisitionItemID) == nil {
			return nil, fmt.Errorf("quote item %d references unknown requisition item %s: %w",
				i, item.RequisitionItemID, domain.ErrValidation)
		}
		if _, dup := seen[item.RequisitionItemID]; dup {
			return nil, fmt.Errorf("duplicate proposal for requisition item %s: %w",
				item.RequisitionItemID, domain.ErrValidation)
		}
		seen[item.RequisitionItemID] = struct{}{}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("quote item %d: unit price must not be negative: %w", i, domain.ErrValidation)
		}
	}

	// The partial unique (requisition, vendor) index backs this up; checking
	// first gives the vendor a readable error instead of a raw conflict.
	// Superseded rows from a restarted cycle do not count against the vendor.
	existing, err := s.store.ListQuotations(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Status.Superseded() {
			continue
		}
		if existing[i].VendorID == req.VendorID {
			return nil, fmt.Errorf("vendor %s already submitted a quotation: %w",
				req.VendorID, domain.ErrConflict)
		}
	}

	return s.store.CreateQuotation(ctx, requisitionID, req)
}

// List returns a requisition's quotations. Under the per-item strategy each
// quotation's status is the derived projection over its award details.
func (s *QuotationService) List(ctx context.Context, requisitionID string) ([]quotation.Quotation, error) {
	r, err := s.store.GetRequisition(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	quotations, err := s.store.ListQuotations(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	if r.RFQ.Strategy != requisition.StrategyItem {
		return quotations, nil
	}

	details, err := s.store.ListAwardDetails(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	byQuotation := make(map[string][]award.PerItemAwardDetail)
	for i := range details {
		byQuotation[details[i].QuotationID] = append(byQuotation[details[i].QuotationID], details[i])
	}
	for i := range quotations {
		if ds := byQuotation[quotations[i].ID]; len(ds) > 0 {
			quotations[i].Status = award.OverallQuotationStatus(ds, quotations[i].Status)
		}
	}
	return quotations, nil
}

// Get returns one quotation with its derived status applied when the
// requisition awards per item.
func (s *QuotationService) Get(ctx context.Context, id string) (*quotation.Quotation, error) {
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRequisition(ctx, q.RequisitionID)
	if err != nil {
		return nil, err
	}
	if r.RFQ.Strategy != requisition.StrategyItem {
		return q, nil
	}
	details, err := s.store.ListAwardDetails(ctx, q.RequisitionID)
	if err != nil {
		return nil, err
	}
	var mine []award.PerItemAwardDetail
	for i := range details {
		if details[i].QuotationID == q.ID {
			mine = append(mine, details[i])
		}
	}
	if len(mine) > 0 {
		q.Status = award.OverallQuotationStatus(mine, q.Status)
	}
	return q, nil
}

func itemByID(items []requisition.Item, id string) *requisition.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
