package requisition

import (
	"fmt"
	"time"

	"github.com/openprocure/tenderd/internal/domain"
)

// ValidateCreate checks a CreateRequest before any state is touched.
func ValidateCreate(req *CreateRequest, now time.Time) error {
	if req.Title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if req.RequesterID == "" {
		return fmt.Errorf("requester_id is required: %w", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("at least one item is required: %w", domain.ErrValidation)
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive: %w", i, domain.ErrValidation)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d: unit price must not be negative: %w", i, domain.ErrValidation)
		}
	}

	switch req.RFQ.Strategy {
	case StrategyAll, StrategyItem:
	default:
		return fmt.Errorf("unknown award strategy %q: %w", req.RFQ.Strategy, domain.ErrValidation)
	}

	if err := validateCriteria(req.Criteria); err != nil {
		return err
	}

	if !req.Deadline.After(now) {
		return fmt.Errorf("deadline must be in the future: %w", domain.ErrValidation)
	}
	if !req.ScoringDeadline.After(req.Deadline) {
		return fmt.Errorf("scoring deadline must be after the quote deadline: %w", domain.ErrValidation)
	}

	if len(req.FinancialCommittee) == 0 && len(req.TechnicalCommittee) == 0 {
		return fmt.Errorf("at least one committee member is required: %w", domain.ErrValidation)
	}
	financial := make(map[string]struct{}, len(req.FinancialCommittee))
	for _, id := range req.FinancialCommittee {
		financial[id] = struct{}{}
	}
	for _, id := range req.TechnicalCommittee {
		if _, ok := financial[id]; ok {
			return fmt.Errorf("committee member %s is in both financial and technical groups: %w",
				id, domain.ErrValidation)
		}
	}

	return nil
}

// validateCriteria checks that group weights sum to 100 within each non-empty
// group and that the two group weights sum to 100. A requisition with zero
// criteria is allowed; scoring then short-circuits to zero.
func validateCriteria(c EvaluationCriteria) error {
	if c.Empty() {
		return nil
	}
	if c.FinancialWeight+c.TechnicalWeight != 100 {
		return fmt.Errorf("financial and technical group weights must sum to 100, got %d: %w",
			c.FinancialWeight+c.TechnicalWeight, domain.ErrValidation)
	}
	if err := validateGroup("financial", c.Financial, c.FinancialWeight); err != nil {
		return err
	}
	return validateGroup("technical", c.Technical, c.TechnicalWeight)
}

func validateGroup(name string, group []Criterion, groupWeight int) error {
	if len(group) == 0 {
		if groupWeight != 0 {
			return fmt.Errorf("%s group has weight %d but no criteria: %w",
				name, groupWeight, domain.ErrValidation)
		}
		return nil
	}
	sum := 0
	for _, crit := range group {
		if crit.Name == "" {
			return fmt.Errorf("%s criterion name is required: %w", name, domain.ErrValidation)
		}
		if crit.Weight <= 0 {
			return fmt.Errorf("%s criterion %q: weight must be positive: %w",
				name, crit.Name, domain.ErrValidation)
		}
		sum += crit.Weight
	}
	if sum != 100 {
		return fmt.Errorf("%s criteria weights must sum to 100, got %d: %w",
			name, sum, domain.ErrValidation)
	}
	return nil
}
