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

func newAwardService(store *mockStore) *AwardService {
	return NewAwardService(store, newTestLocks(), nil, nil, nil, nil, nil)
}

// closeScoring moves the scoring deadline behind the clock so a finalize from
// scoring_in_progress passes the window guard.
func closeScoring(m *mockStore, r *requisition.Requisition) {
	past := time.Now().UTC().Add(-time.Hour)
	for i := range m.requisitions {
		if m.requisitions[i].ID == r.ID {
			m.requisitions[i].ScoringDeadline = past
		}
	}
	r.ScoringDeadline = past
}

func TestAwardServiceFinalizeRequiresReviewer(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)

	_, err := newAwardService(store).Finalize(context.Background(), scorerOne, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAwardServiceFinalizeWrongStage(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAcceptingQuotes, requisition.StrategyAll)

	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAwardServiceFinalizeAlreadyAwarded(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusAwarded, requisition.StrategyAll)

	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAwardServiceFinalizeOutstandingScorers(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	closeScoring(store, r)
	seedQuotation(store, r.ID, "vendor-1", quotation.StatusSubmitted, "item-1")
	// Only one of two committee members has submitted.
	_ = store.MarkScoresSubmitted(context.Background(), r.ID, scorerOne.ID)

	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}
}

func TestAwardServiceFinalizeNoQuotations(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	closeScoring(store, r)
	submitAllScores(store, r.ID)

	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}
}

func TestAwardServiceFinalizeSingleVendor(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	closeScoring(store, r)
	scores := []float64{70, 95, 85, 60}
	for i, sc := range scores {
		q := seedQuotation(store, r.ID, "vendor-"+string(rune('a'+i)), quotation.StatusSubmitted, "item-1", "item-2")
		seedScores(store, q, sc)
	}
	submitAllScores(store, r.ID)

	result, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if result.RequisitionStatus != requisition.StatusAwarded {
		t.Fatalf("expected awarded, got %s", result.RequisitionStatus)
	}
	if len(result.Quotations) != 4 {
		t.Fatalf("expected 4 ranked quotations, got %d", len(result.Quotations))
	}
	wantStatus := []quotation.Status{
		quotation.StatusPendingAward,
		quotation.StatusStandby,
		quotation.StatusStandby,
		quotation.StatusRejected,
	}
	wantVendor := []string{"vendor-b", "vendor-c", "vendor-a", "vendor-d"}
	for i, q := range result.Quotations {
		if q.Rank != i+1 {
			t.Fatalf("rank %d: expected %d, got %d", i, i+1, q.Rank)
		}
		if q.Status != wantStatus[i] {
			t.Fatalf("rank %d: expected status %s, got %s", i+1, wantStatus[i], q.Status)
		}
		if q.VendorID != wantVendor[i] {
			t.Fatalf("rank %d: expected vendor %s, got %s", i+1, wantVendor[i], q.VendorID)
		}
	}

	stored, _ := store.GetRequisition(context.Background(), r.ID)
	if stored.Status != requisition.StatusAwarded {
		t.Fatalf("expected requisition awarded, got %s", stored.Status)
	}
	if stored.AwardResponseDeadline == nil {
		t.Fatal("expected award response deadline to be set")
	}
	if remaining := time.Until(*stored.AwardResponseDeadline); remaining < 6*24*time.Hour {
		t.Fatalf("expected default response window of about 7 days, got %s", remaining)
	}
}

func TestAwardServiceFinalizeTieBreakEarliestSubmissionWins(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	closeScoring(store, r)
	first := seedQuotation(store, r.ID, "vendor-first", quotation.StatusSubmitted, "item-1")
	second := seedQuotation(store, r.ID, "vendor-second", quotation.StatusSubmitted, "item-1")
	seedScores(store, first, 88)
	seedScores(store, second, 88)
	submitAllScores(store, r.ID)

	result, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Quotations[0].ID != first.ID {
		t.Fatalf("expected earliest submission to win the tie, got %s", result.Quotations[0].VendorID)
	}
}

func TestAwardServiceFinalizeExplicitDeadline(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringComplete, requisition.StrategyAll)
	q := seedQuotation(store, r.ID, "vendor-1", quotation.StatusSubmitted, "item-1")
	seedScores(store, q, 75)
	submitAllScores(store, r.ID)

	deadline := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{
		ResponseDeadline: &deadline,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	stored, _ := store.GetRequisition(context.Background(), r.ID)
	if stored.AwardResponseDeadline == nil || !stored.AwardResponseDeadline.Equal(deadline) {
		t.Fatalf("expected explicit deadline %s, got %v", deadline, stored.AwardResponseDeadline)
	}
}

func TestAwardServiceFinalizePerItem(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyItem)
	closeScoring(store, r)
	// vendor-a bids on both items, vendor-b and vendor-c on item-1 only.
	qa := seedQuotation(store, r.ID, "vendor-a", quotation.StatusSubmitted, "item-1", "item-2")
	qb := seedQuotation(store, r.ID, "vendor-b", quotation.StatusSubmitted, "item-1")
	qc := seedQuotation(store, r.ID, "vendor-c", quotation.StatusSubmitted, "item-1")
	seedScores(store, qa, 70)
	seedScores(store, qb, 90)
	seedScores(store, qc, 80)
	submitAllScores(store, r.ID)

	result, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// item-1 has three candidates, item-2 one.
	if len(result.Details) != 4 {
		t.Fatalf("expected 4 award details, got %d", len(result.Details))
	}

	byItem := make(map[string][]award.PerItemAwardDetail)
	for _, d := range result.Details {
		byItem[d.RequisitionItemID] = append(byItem[d.RequisitionItemID], d)
	}

	item1 := byItem["item-1"]
	if len(item1) != 3 {
		t.Fatalf("expected 3 candidates for item-1, got %d", len(item1))
	}
	wantStatus := []award.Status{award.StatusPendingAward, award.StatusStandby, award.StatusRejected}
	wantVendor := []string{"vendor-b", "vendor-c", "vendor-a"}
	for i, d := range item1 {
		if d.Rank != i+1 {
			t.Fatalf("item-1 candidate %d: expected rank %d, got %d", i, i+1, d.Rank)
		}
		if d.Status != wantStatus[i] {
			t.Fatalf("item-1 rank %d: expected %s, got %s", d.Rank, wantStatus[i], d.Status)
		}
		if d.VendorID != wantVendor[i] {
			t.Fatalf("item-1 rank %d: expected vendor %s, got %s", d.Rank, wantVendor[i], d.VendorID)
		}
	}

	item2 := byItem["item-2"]
	if len(item2) != 1 || item2[0].Status != award.StatusPendingAward || item2[0].VendorID != "vendor-a" {
		t.Fatalf("expected vendor-a pending award on item-2, got %+v", item2)
	}
}

func TestAwardServiceFinalizeStandbyDepthFromSettings(t *testing.T) {
	store := newMockStore()
	store.cfg.StandbyDepth = 1
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	closeScoring(store, r)
	for i, sc := range []float64{90, 80, 70} {
		q := seedQuotation(store, r.ID, "vendor-"+string(rune('a'+i)), quotation.StatusSubmitted, "item-1")
		seedScores(store, q, sc)
	}
	submitAllScores(store, r.ID)

	result, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	got := []quotation.Status{result.Quotations[0].Status, result.Quotations[1].Status, result.Quotations[2].Status}
	want := []quotation.Status{quotation.StatusPendingAward, quotation.StatusStandby, quotation.StatusRejected}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank %d: expected %s, got %s", i+1, want[i], got[i])
		}
	}
}

func TestAwardServiceFinalizeScoringWindowStillOpen(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringInProgress, requisition.StrategyAll)
	q := seedQuotation(store, r.ID, "vendor-1", quotation.StatusSubmitted, "item-1")
	seedScores(store, q, 80)
	submitAllScores(store, r.ID)

	_, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet while the scoring window is open, got %v", err)
	}
}

func TestAwardServiceFinalizeIgnoresSupersededQuotations(t *testing.T) {
	store := newMockStore()
	r := seedRequisition(store, requisition.StatusScoringComplete, requisition.StrategyAll)
	// Leftover of a restarted cycle; must not be ranked again.
	seedQuotation(store, r.ID, "vendor-old", quotation.StatusRejected, "item-1")
	q := seedQuotation(store, r.ID, "vendor-new", quotation.StatusSubmitted, "item-1")
	seedScores(store, q, 80)
	submitAllScores(store, r.ID)

	result, err := newAwardService(store).Finalize(context.Background(), reviewerActor, r.ID, FinalizeRequest{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(result.Quotations) != 1 || result.Quotations[0].VendorID != "vendor-new" {
		t.Fatalf("expected only the live quotation ranked, got %+v", result.Quotations)
	}
}
