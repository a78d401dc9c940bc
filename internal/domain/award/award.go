// Package award defines per-item award records and award target states.
package award

import (
	"time"

	"github.com/openprocure/tenderd/internal/domain/quotation"
)

// Status represents the state of one award target. Under the single-vendor
// strategy the target is a whole quotation; under the per-item strategy it is
// one PerItemAwardDetail.
type Status string

const (
	StatusPendingAward  Status = "pending_award"
	StatusAwarded       Status = "awarded"
	StatusStandby       Status = "standby"
	StatusAccepted      Status = "accepted"
	StatusDeclined      Status = "declined"
	StatusRejected      Status = "rejected"
	StatusFailedToAward Status = "failed_to_award"
	StatusRestarted     Status = "restarted"
)

// Open reports whether the status still awaits a vendor response.
func (s Status) Open() bool { return s == StatusPendingAward }

// Terminal reports whether no further cascade action applies to the target.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusFailedToAward || s == StatusRejected
}

// PerItemAwardDetail is one ranked candidate for one requisition item under
// the per-item strategy. Within one item's candidate list, ranks are a strict
// total order; raw scores may tie, stored ranks never do.
type PerItemAwardDetail struct {
	ID                string    `json:"id"`
	RequisitionID     string    `json:"requisition_id"`
	RequisitionItemID string    `json:"requisition_item_id"`
	QuotationID       string    `json:"quotation_id"`
	QuoteItemID       string    `json:"quote_item_id"`
	VendorID          string    `json:"vendor_id"`
	Rank              int       `json:"rank"`
	Status            Status    `json:"status"`
	Score             float64   `json:"score"`
	ResponseReason    string    `json:"response_reason,omitempty"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ScopeStatus derives the state of one scope (a requisition item's candidate
// list, or all quotations of a requisition under the single-vendor strategy)
// from its candidates' states. It is a pure projection, recomputed on read.
func ScopeStatus(statuses []Status) Status {
	var anyPending, anyAccepted, anyStandby bool
	for _, s := range statuses {
		switch s {
		case StatusAccepted:
			anyAccepted = true
		case StatusPendingAward, StatusAwarded:
			anyPending = true
		case StatusStandby:
			anyStandby = true
		}
	}
	switch {
	case anyAccepted:
		return StatusAccepted
	case anyPending:
		return StatusPendingAward
	case anyStandby:
		return StatusStandby
	default:
		return StatusFailedToAward
	}
}

// OverallQuotationStatus derives a vendor's overall quotation status from its
// per-item award details. The per-item rows are the source of truth; the
// overall status is recomputed on read, never stored.
func OverallQuotationStatus(details []PerItemAwardDetail, fallback quotation.Status) quotation.Status {
	var anyAccepted, anyAwarded, anyStandby, anyDeclined bool
	for i := range details {
		switch details[i].Status {
		case StatusAccepted:
			anyAccepted = true
		case StatusAwarded, StatusPendingAward:
			anyAwarded = true
		case StatusStandby:
			anyStandby = true
		case StatusDeclined, StatusFailedToAward:
			anyDeclined = true
		}
	}
	switch {
	case anyAccepted:
		return quotation.StatusAccepted
	case anyAwarded:
		return quotation.StatusPartiallyAwarded
	case anyStandby:
		return quotation.StatusStandby
	case anyDeclined:
		return quotation.StatusDeclined
	default:
		return fallback
	}
}
