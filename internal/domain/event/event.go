// Package event defines lifecycle events and audit entries emitted by the
// award core.
package event

import "time"

// Event type constants, used as NATS subjects suffixes and WebSocket types.
const (
	TypeRequisitionStatus = "requisition.status"
	TypeAwardFinalized    = "award.finalized"
	TypeVendorResponded   = "award.response"
	TypeStandbyPromoted   = "award.promoted"
	TypeAwardExpired      = "award.expired"
	TypeFailedToAward     = "award.failed"
)

// RequisitionStatusEvent is emitted on every requisition status transition.
type RequisitionStatusEvent struct {
	RequisitionID string `json:"requisition_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Reason        string `json:"reason,omitempty"`
}

// AwardEvent is emitted for award target state changes (finalize, response,
// promotion, expiry, exhaustion).
type AwardEvent struct {
	RequisitionID     string `json:"requisition_id"`
	RequisitionItemID string `json:"requisition_item_id,omitempty"`
	QuotationID       string `json:"quotation_id,omitempty"`
	VendorID          string `json:"vendor_id,omitempty"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
}

// AuditEntry is one append-only record of a state transition.
type AuditEntry struct {
	ID            string    `json:"id"`
	RequisitionID string    `json:"requisition_id"`
	ActorID       string    `json:"actor_id"`
	Scope         string    `json:"scope"` // "requisition", "quotation" or a requisition item ID
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}
