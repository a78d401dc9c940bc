package requisition

import (
	"fmt"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
)

// transitions is the edge set of the lifecycle graph. A status maps to the
// statuses reachable from it; anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusPreApproved:        {StatusAcceptingQuotes, StatusClosed},
	StatusAcceptingQuotes:    {StatusScoringInProgress, StatusPreApproved, StatusClosed},
	StatusScoringInProgress:  {StatusScoringComplete, StatusAwarded, StatusClosed},
	StatusScoringComplete:    {StatusAwarded, StatusClosed},
	StatusAwarded:            {StatusAwardDeclined, StatusPostApproved, StatusClosed},
	StatusAwardDeclined:      {StatusAwarded, StatusPreApproved, StatusClosed},
	StatusPostApproved:       {StatusPOCreated, StatusClosed},
	StatusPOCreated:          {StatusPartiallyFulfilled, StatusFulfilled, StatusClosed},
	StatusPartiallyFulfilled: {StatusFulfilled, StatusClosed},
	StatusFulfilled:          {StatusClosed},
	StatusClosed:             {},
}

// CanTransition reports whether the edge from -> to exists in the lifecycle
// graph, ignoring guards.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GuardInput carries the facts a transition guard may consult. Settings
// values (quorum) are injected so guards are testable without a settings
// store.
type GuardInput struct {
	Now                time.Time
	QuoteCount         int
	CommitteeQuorum    int
	ScorersOutstanding int
	ApprovalComplete   bool
}

// Guard checks the edge predicate for from -> to. It returns nil when the
// transition is structurally valid and its guard passes,
// domain.ErrInvalidTransition when the edge does not exist, and
// domain.ErrPreconditionNotMet when the edge exists but its guard fails.
func (r *Requisition) Guard(to Status, in GuardInput) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("requisition %s: %s -> %s: %w", r.ID, r.Status, to, domain.ErrInvalidTransition)
	}

	switch {
	case r.Status == StatusAcceptingQuotes && to == StatusScoringInProgress:
		if in.Now.Before(r.Deadline) {
			return fmt.Errorf("quote deadline not reached: %w", domain.ErrPreconditionNotMet)
		}
		if in.QuoteCount < in.CommitteeQuorum {
			return fmt.Errorf("%d quotations received, quorum is %d: %w",
				in.QuoteCount, in.CommitteeQuorum, domain.ErrPreconditionNotMet)
		}
	case r.Status == StatusScoringInProgress && to == StatusAwarded:
		if !in.Now.After(r.ScoringDeadline) {
			return fmt.Errorf("scoring window still open until %s: %w",
				r.ScoringDeadline.Format(time.RFC3339), domain.ErrPreconditionNotMet)
		}
		if in.ScorersOutstanding > 0 {
			return fmt.Errorf("waiting for %d more scorers: %w",
				in.ScorersOutstanding, domain.ErrPreconditionNotMet)
		}
	case r.Status == StatusScoringComplete && to == StatusAwarded:
		if in.ScorersOutstanding > 0 {
			return fmt.Errorf("waiting for %d more scorers: %w",
				in.ScorersOutstanding, domain.ErrPreconditionNotMet)
		}
	case r.Status == StatusAwarded && to == StatusPostApproved:
		if !in.ApprovalComplete {
			return fmt.Errorf("hierarchical approval not complete: %w", domain.ErrPreconditionNotMet)
		}
	}
	return nil
}
