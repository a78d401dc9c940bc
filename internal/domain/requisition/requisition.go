// Package requisition defines the Requisition domain entity and its
// lifecycle status machine.
package requisition

import "time"

// Status represents the current lifecycle stage of a requisition.
type Status string

const (
	StatusPreApproved        Status = "pre_approved"
	StatusAcceptingQuotes    Status = "accepting_quotes"
	StatusScoringInProgress  Status = "scoring_in_progress"
	StatusScoringComplete    Status = "scoring_complete"
	StatusAwarded            Status = "awarded"
	StatusAwardDeclined      Status = "award_declined"
	StatusPostApproved       Status = "post_approved"
	StatusPOCreated          Status = "po_created"
	StatusPartiallyFulfilled Status = "partially_fulfilled"
	StatusFulfilled          Status = "fulfilled"
	StatusClosed             Status = "closed"
)

// Strategy selects how an award is assigned across a requisition's items.
type Strategy string

const (
	// StrategyAll awards the whole requisition to a single vendor.
	StrategyAll Strategy = "all"
	// StrategyItem awards each line item independently.
	StrategyItem Strategy = "item"
)

// Item is a single line of a requisition.
type Item struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Criterion is one named evaluation criterion with its weight within its group.
type Criterion struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// EvaluationCriteria holds the weighted financial and technical criterion
// groups. Weights sum to 100 within each group, and FinancialWeight +
// TechnicalWeight sum to 100 across groups.
type EvaluationCriteria struct {
	FinancialWeight int         `json:"financial_weight"`
	TechnicalWeight int         `json:"technical_weight"`
	Financial       []Criterion `json:"financial"`
	Technical       []Criterion `json:"technical"`
}

// Empty reports whether no criteria are configured at all.
func (c EvaluationCriteria) Empty() bool {
	return len(c.Financial) == 0 && len(c.Technical) == 0
}

// RFQSettings holds per-requisition RFQ behavior flags.
type RFQSettings struct {
	Strategy   Strategy `json:"strategy"`
	AllowEdit  bool     `json:"allow_edit"`
	HideScores bool     `json:"hide_scores"`
}

// Requisition is a purchase requisition moving through the RFQ, scoring and
// award lifecycle. Never deleted; archived at closed/fulfilled.
type Requisition struct {
	ID                    string             `json:"id"`
	Title                 string             `json:"title"`
	RequesterID           string             `json:"requester_id"`
	Status                Status             `json:"status"`
	Items                 []Item             `json:"items"`
	Criteria              EvaluationCriteria `json:"criteria"`
	RFQ                   RFQSettings        `json:"rfq"`
	Deadline              time.Time          `json:"deadline"`
	ScoringDeadline       time.Time          `json:"scoring_deadline"`
	AwardResponseDeadline *time.Time         `json:"award_response_deadline,omitempty"`
	FinancialCommittee    []string           `json:"financial_committee"`
	TechnicalCommittee    []string           `json:"technical_committee"`
	Version               int                `json:"version"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Committee returns the deduplicated union of financial and technical
// committee member IDs.
func (r *Requisition) Committee() []string {
	seen := make(map[string]struct{}, len(r.FinancialCommittee)+len(r.TechnicalCommittee))
	var members []string
	for _, id := range append(append([]string{}, r.FinancialCommittee...), r.TechnicalCommittee...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}

// CreateRequest holds the fields needed to create a new requisition.
// A requisition enters the system already pre-approved; the submission
// approval chain is an external collaborator.
type CreateRequest struct {
	Title              string             `json:"title"`
	RequesterID        string             `json:"requester_id"`
	Items              []Item             `json:"items"`
	Criteria           EvaluationCriteria `json:"criteria"`
	RFQ                RFQSettings        `json:"rfq"`
	Deadline           time.Time          `json:"deadline"`
	ScoringDeadline    time.Time          `json:"scoring_deadline"`
	FinancialCommittee []string           `json:"financial_committee"`
	TechnicalCommittee []string           `json:"technical_committee"`
}
