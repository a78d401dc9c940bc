package http

import (
	"net/http"
	"time"

	"github.com/openprocure/tenderd/internal/domain/requisition"
	"github.com/openprocure/tenderd/internal/middleware"
	"github.com/openprocure/tenderd/internal/port/auditlog"
	"github.com/openprocure/tenderd/internal/port/database"
	"github.com/openprocure/tenderd/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Requisitions *service.RequisitionService
	Quotations   *service.QuotationService
	Scoring      *service.ScoringService
	Awards       *service.AwardService
	Cascade      *service.CascadeService
	Vendors      *service.VendorService
	Auth         *service.AuthService
	Audit        auditlog.Store
	Store        database.Store
}

// ---------------------------------------------------------------------------
// Requisitions
// ---------------------------------------------------------------------------

// CreateRequisition handles POST /api/v1/requisitions
func (h *Handlers) CreateRequisition(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[requisition.CreateRequest](w, r)
	if !ok {
		return
	}

	created, err := h.Requisitions.Create(r.Context(), middleware.UserFromContext(r.Context()), req)
	if err != nil {
		writeDomainError(w, err, "requisition not created")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListRequisitions handles GET /api/v1/requisitions
func (h *Handlers) ListRequisitions(w http.ResponseWriter, r *http.Request) {
	list, err := h.Requisitions.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if list == nil {
		list = []requisition.Requisition{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRequisition handles GET /api/v1/requisitions/{id}. Deadline-driven
// transitions that have become due are applied before the read returns.
func (h *Handlers) GetRequisition(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requisitions.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DistributeRFQ handles POST /api/v1/requisitions/{id}/distribute
func (h *Handlers) DistributeRFQ(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		VendorIDs []string `json:"vendor_ids"`
	}](w, r)
	if !ok {
		return
	}

	req, err := h.Requisitions.DistributeRFQ(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.VendorIDs)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// FinalizeAward handles POST /api/v1/requisitions/{id}/finalize
func (h *Handlers) FinalizeAward(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[service.FinalizeRequest](w, r)
	if !ok {
		return
	}

	result, err := retryOnConflict(func() (*service.FinalizeResult, error) {
		return h.Awards.Finalize(r.Context(), middleware.UserFromContext(r.Context()),
			urlParam(r, "id"), body)
	})
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ReopenRequisition handles POST /api/v1/requisitions/{id}/reopen
func (h *Handlers) ReopenRequisition(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		Deadline time.Time `json:"deadline"`
	}](w, r)
	if !ok {
		return
	}

	req, err := h.Requisitions.Reopen(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.Deadline)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RestartRFQ handles POST /api/v1/requisitions/{id}/restart-rfq
func (h *Handlers) RestartRFQ(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requisitions.RestartRFQ(r.Context(), middleware.UserFromContext(r.Context()), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelRequisition handles POST /api/v1/requisitions/{id}/cancel
func (h *Handlers) CancelRequisition(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		Reason string `json:"reason"`
	}](w, r)
	if !ok {
		return
	}

	req, err := h.Requisitions.Cancel(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.Reason)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// PostApproveRequisition handles POST /api/v1/requisitions/{id}/post-approve
func (h *Handlers) PostApproveRequisition(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		ApprovalComplete bool `json:"approval_complete"`
	}](w, r)
	if !ok {
		return
	}

	req, err := h.Requisitions.PostApprove(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.ApprovalComplete)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// AdvanceRequisition handles POST /api/v1/requisitions/{id}/advance for the
// post-award progression stages (PO created, fulfillment, closed).
func (h *Handlers) AdvanceRequisition(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		To     requisition.Status `json:"to"`
		Reason string             `json:"reason"`
	}](w, r)
	if !ok {
		return
	}
	if body.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	req, err := h.Requisitions.Advance(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.To, body.Reason)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// GetAuditTrail handles GET /api/v1/requisitions/{id}/audit
func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Audit.ListByRequisition(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
