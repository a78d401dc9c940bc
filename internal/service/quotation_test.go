package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
	"github.com/openprocure/tenderd/internal/domain/award"
	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/domain/requisition"
)

func TestQuotationServiceSubmit(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	q, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-1", UnitPrice: 1100, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if q.Status != quotation.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", q.Status)
	}
	if q.VendorID != "vendor-1" {
		t.Fatalf("expected vendor-1, got %s", q.VendorID)
	}
}

func TestQuotationServiceSubmitVendorBindsOwnID(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	// A vendor principal cannot bid on behalf of another vendor.
	q, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		VendorID: "vendor-2",
		Items:    []quotation.QuoteItem{{RequisitionItemID: "item-1", UnitPrice: 900, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if q.VendorID != "vendor-1" {
		t.Fatalf("expected vendor_id forced to vendor-1, got %s", q.VendorID)
	}
}

func TestQuotationServiceSubmitNotAcceptingQuotes(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)

	_, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-1", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestQuotationServiceSubmitPastDeadline(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	svc := NewQuotationService(store)
	svc.now = func() time.Time { return r.Deadline.Add(time.Minute) }

	_, err := svc.Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-1", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}
}

func TestQuotationServiceSubmitUnknownItem(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	_, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-99", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestQuotationServiceSubmitDuplicateItemProposal(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	_, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{
			{RequisitionItemID: "item-1", Quantity: 1},
			{RequisitionItemID: "item-1", Quantity: 2},
		},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestQuotationServiceSubmitSecondBidConflicts(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)
	seedQuotation(store, r.ID, "vendor-1", quotation.StatusSubmitted, "item-1")

	_, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-1", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestQuotationServiceSubmitAfterRestartAllowsPriorBidder(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)
	// Leftover from a restarted cycle; must not block the re-bid.
	seedQuotation(store, r.ID, "vendor-1", quotation.StatusRejected, "item-1")

	q, err := NewQuotationService(store).Submit(context.Background(), vendorActor("vendor-1"), r.ID, quotation.SubmitRequest{
		Items: []quotation.QuoteItem{{RequisitionItemID: "item-1", UnitPrice: 900, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("re-bid after restart: %v", err)
	}
	if q.Status != quotation.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", q.Status)
	}
}

func TestQuotationServiceListDerivesStatusPerItem(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAwarded, requisition.StrategyItem)
	q := seedQuotation(store, r.ID, "vendor-a", quotation.StatusSubmitted, "item-1", "item-2")

	seedDetail(store, r.ID, "item-1", "vendor-a", 1, award.StatusAccepted)
	seedDetail(store, r.ID, "item-2", "vendor-a", 2, award.StatusStandby)
	for i := range store.details {
		store.details[i].QuotationID = q.ID
	}

	quotations, err := NewQuotationService(store).List(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quotations) != 1 {
		t.Fatalf("expected 1 quotation, got %d", len(quotations))
	}
	if quotations[0].Status != quotation.StatusAccepted {
		t.Fatalf("expected derived status accepted, got %s", quotations[0].Status)
	}

	// The stored row stays untouched; the projection is read-time only.
	stored := store.quotations[0]
	if stored.Status != quotation.StatusSubmitted {
		t.Fatalf("expected stored status unchanged, got %s", stored.Status)
	}
}

func TestQuotationServiceGetDerivesStatusPerItem(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAwarded, requisition.StrategyItem)
	q := seedQuotation(store, r.ID, "vendor-a", quotation.StatusSubmitted, "item-1", "item-2")

	seedDetail(store, r.ID, "item-1", "vendor-a", 1, award.StatusPendingAward)
	seedDetail(store, r.ID, "item-2", "vendor-a", 1, award.StatusDeclined)
	for i := range store.details {
		store.details[i].QuotationID = q.ID
	}

	got, err := NewQuotationService(store).Get(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != quotation.StatusPartiallyAwarded {
		t.Fatalf("expected partially_awarded, got %s", got.Status)
	}
}
