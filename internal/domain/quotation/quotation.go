// Package quotation defines vendor quotations and committee score sets.
package quotation

import "time"

// Status represents the state of a quotation within the award lifecycle.
type Status string

const (
	StatusSubmitted        Status = "submitted"
	StatusPendingAward     Status = "pending_award"
	StatusAwarded          Status = "awarded"
	StatusPartiallyAwarded Status = "partially_awarded"
	StatusAccepted         Status = "accepted"
	StatusDeclined         Status = "declined"
	StatusStandby          Status = "standby"
	StatusRejected         Status = "rejected"
	StatusFailed           Status = "failed"
	StatusInvoiceSubmitted Status = "invoice_submitted"
)

// Superseded reports whether the quotation belongs to a spent RFQ cycle. A
// superseded quotation takes no part in quoting, quorum or ranking, and does
// not block its vendor from re-bidding after a restart.
func (s Status) Superseded() bool {
	return s == StatusRejected || s == StatusDeclined || s == StatusFailed
}

// QuoteItem is a vendor's priced proposal against one requisition item.
// A vendor may have at most one proposal per requisition item.
type QuoteItem struct {
	ID                string  `json:"id"`
	RequisitionItemID string  `json:"requisition_item_id"`
	UnitPrice         float64 `json:"unit_price"`
	Quantity          int     `json:"quantity"`
	Notes             string  `json:"notes,omitempty"`
}

// Score is one criterion score in the 0-100 range.
type Score struct {
	Criterion string  `json:"criterion"`
	Value     float64 `json:"value"`
}

// ItemScore holds one scorer's financial and technical scores for a single
// quote item, plus the derived weighted FinalScore.
type ItemScore struct {
	QuoteItemID string  `json:"quote_item_id"`
	Financial   []Score `json:"financial,omitempty"`
	Technical   []Score `json:"technical,omitempty"`
	FinalScore  float64 `json:"final_score"`
}

// CommitteeScoreSet is one committee member's full set of item scores for a
// quotation. At most one exists per (quotation, scorer) pair.
type CommitteeScoreSet struct {
	ID          string      `json:"id"`
	QuotationID string      `json:"quotation_id"`
	ScorerID    string      `json:"scorer_id"`
	ItemScores  []ItemScore `json:"item_scores"`
	Submitted   bool        `json:"submitted"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Quotation is one vendor's bid on a requisition. Exactly one exists per
// (requisition, vendor) pair.
type Quotation struct {
	ID                string              `json:"id"`
	RequisitionID     string              `json:"requisition_id"`
	VendorID          string              `json:"vendor_id"`
	Status            Status              `json:"status"`
	Items             []QuoteItem         `json:"items"`
	ScoreSets         []CommitteeScoreSet `json:"score_sets,omitempty"`
	FinalAverageScore float64             `json:"final_average_score"`
	Rank              int                 `json:"rank,omitempty"`
	ResponseReason    string              `json:"response_reason,omitempty"`
	Version           int                 `json:"version"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// ItemFor returns the vendor's proposal for the given requisition item, or
// nil when the vendor did not bid on it.
func (q *Quotation) ItemFor(requisitionItemID string) *QuoteItem {
	for i := range q.Items {
		if q.Items[i].RequisitionItemID == requisitionItemID {
			return &q.Items[i]
		}
	}
	return nil
}

// SubmitRequest holds the fields a vendor provides when bidding.
type SubmitRequest struct {
	VendorID string      `json:"vendor_id"`
	Items    []QuoteItem `json:"items"`
}
