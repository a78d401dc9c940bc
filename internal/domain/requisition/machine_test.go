package requisition

import (
	"errors"
	"testing"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPreApproved, StatusAcceptingQuotes, true},
		{StatusPreApproved, StatusClosed, true},
		{StatusPreApproved, StatusAwarded, false},
		{StatusAcceptingQuotes, StatusScoringInProgress, true},
		{StatusAcceptingQuotes, StatusPreApproved, true},
		{StatusScoringInProgress, StatusScoringComplete, true},
		{StatusScoringInProgress, StatusAwarded, true},
		{StatusScoringComplete, StatusAwarded, true},
		{StatusAwarded, StatusAwardDeclined, true},
		{StatusAwarded, StatusPostApproved, true},
		{StatusAwardDeclined, StatusAwarded, true},
		{StatusAwardDeclined, StatusPreApproved, true},
		{StatusPostApproved, StatusPOCreated, true},
		{StatusPOCreated, StatusPartiallyFulfilled, true},
		{StatusPOCreated, StatusFulfilled, true},
		{StatusPartiallyFulfilled, StatusFulfilled, true},
		{StatusFulfilled, StatusClosed, true},
		{StatusClosed, StatusPreApproved, false},
		{StatusClosed, StatusClosed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEveryStatusCanReachClosed(t *testing.T) {
	all := []Status{
		StatusPreApproved, StatusAcceptingQuotes, StatusScoringInProgress,
		StatusScoringComplete, StatusAwarded, StatusAwardDeclined,
		StatusPostApproved, StatusPOCreated, StatusPartiallyFulfilled,
		StatusFulfilled,
	}
	for _, from := range all {
		if !CanTransition(from, StatusClosed) {
			t.Errorf("expected %s -> closed to be allowed", from)
		}
	}
}

func TestGuardQuoteDeadlineRollover(t *testing.T) {
	deadline := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	r := &Requisition{ID: "req-1", Status: StatusAcceptingQuotes, Deadline: deadline}

	err := r.Guard(StatusScoringInProgress, GuardInput{
		Now: deadline.Add(-time.Hour), QuoteCount: 3, CommitteeQuorum: 2,
	})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet before deadline, got %v", err)
	}

	err = r.Guard(StatusScoringInProgress, GuardInput{
		Now: deadline.Add(time.Hour), QuoteCount: 1, CommitteeQuorum: 2,
	})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet below quorum, got %v", err)
	}

	err = r.Guard(StatusScoringInProgress, GuardInput{
		Now: deadline.Add(time.Hour), QuoteCount: 2, CommitteeQuorum: 2,
	})
	if err != nil {
		t.Fatalf("expected guard pass, got %v", err)
	}
}

func TestGuardAwardNeedsAllScorers(t *testing.T) {
	r := &Requisition{ID: "req-1", Status: StatusScoringComplete}

	err := r.Guard(StatusAwarded, GuardInput{ScorersOutstanding: 1})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet with outstanding scorers, got %v", err)
	}
	if err := r.Guard(StatusAwarded, GuardInput{}); err != nil {
		t.Fatalf("expected guard pass, got %v", err)
	}
}

func TestGuardEarlyAwardNeedsScoringWindowClosed(t *testing.T) {
	deadline := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	r := &Requisition{ID: "req-1", Status: StatusScoringInProgress, ScoringDeadline: deadline}

	err := r.Guard(StatusAwarded, GuardInput{Now: deadline.Add(-time.Hour)})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet while scoring is open, got %v", err)
	}

	err = r.Guard(StatusAwarded, GuardInput{Now: deadline.Add(time.Hour), ScorersOutstanding: 1})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet with outstanding scorers, got %v", err)
	}

	if err := r.Guard(StatusAwarded, GuardInput{Now: deadline.Add(time.Hour)}); err != nil {
		t.Fatalf("expected guard pass, got %v", err)
	}
}

func TestGuardPostApprovalNeedsCompleteChain(t *testing.T) {
	r := &Requisition{ID: "req-1", Status: StatusAwarded}

	err := r.Guard(StatusPostApproved, GuardInput{ApprovalComplete: false})
	if !errors.Is(err, domain.ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet without approval, got %v", err)
	}
	if err := r.Guard(StatusPostApproved, GuardInput{ApprovalComplete: true}); err != nil {
		t.Fatalf("expected guard pass, got %v", err)
	}
}

func TestGuardMissingEdge(t *testing.T) {
	r := &Requisition{ID: "req-1", Status: StatusPreApproved}
	err := r.Guard(StatusAwarded, GuardInput{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
