package http

import (
	"net/http"

	"github.com/openprocure/tenderd/internal/domain/quotation"
	"github.com/openprocure/tenderd/internal/middleware"
	"github.com/openprocure/tenderd/internal/service"
)

// ---------------------------------------------------------------------------
// Quotations
// ---------------------------------------------------------------------------

// SubmitQuotation handles POST /api/v1/requisitions/{id}/quotations
func (h *Handlers) SubmitQuotation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[quotation.SubmitRequest](w, r)
	if !ok {
		return
	}

	q, err := h.Quotations.Submit(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ListQuotations handles GET /api/v1/requisitions/{id}/quotations. Under the
// per-item strategy the returned statuses are the derived overall projection.
func (h *Handlers) ListQuotations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Quotations.List(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	if list == nil {
		list = []quotation.Quotation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetQuotation handles GET /api/v1/quotations/{id}
func (h *Handlers) GetQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.Quotations.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "quotation not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ---------------------------------------------------------------------------
// Committee scoring
// ---------------------------------------------------------------------------

// UpsertScores handles PUT /api/v1/quotations/{id}/scores
func (h *Handlers) UpsertScores(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		ItemScores []quotation.ItemScore `json:"item_scores"`
	}](w, r)
	if !ok {
		return
	}
	if len(body.ItemScores) == 0 {
		writeError(w, http.StatusBadRequest, "item_scores must not be empty")
		return
	}

	set, err := h.Scoring.UpsertScoreSet(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"), body.ItemScores)
	if err != nil {
		writeDomainError(w, err, "quotation not found")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// SubmitScores handles POST /api/v1/requisitions/{id}/scores/submit
func (h *Handlers) SubmitScores(w http.ResponseWriter, r *http.Request) {
	outstanding, err := h.Scoring.SubmitScores(r.Context(), middleware.UserFromContext(r.Context()),
		urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"outstanding_scorers": outstanding})
}

// GetScoreboard handles GET /api/v1/requisitions/{id}/scoreboard
func (h *Handlers) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Scoring.GetScoreboard(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "requisition not found")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// ---------------------------------------------------------------------------
// Vendor responses
// ---------------------------------------------------------------------------

type respondRequest struct {
	Action service.ResponseAction `json:"action"`
	Reason string                 `json:"reason"`
}

// RespondQuotation handles POST /api/v1/quotations/{id}/respond
// (single-vendor strategy).
func (h *Handlers) RespondQuotation(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[respondRequest](w, r)
	if !ok {
		return
	}

	result, err := retryOnConflict(func() (*service.CascadeResult, error) {
		return h.Cascade.RespondQuotation(r.Context(), middleware.UserFromContext(r.Context()),
			urlParam(r, "id"), body.Action, body.Reason)
	})
	if err != nil {
		writeDomainError(w, err, "quotation not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RespondAwardItem handles POST /api/v1/award-items/{id}/respond (per-item
// strategy).
func (h *Handlers) RespondAwardItem(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[respondRequest](w, r)
	if !ok {
		return
	}

	result, err := retryOnConflict(func() (*service.CascadeResult, error) {
		return h.Cascade.RespondItem(r.Context(), middleware.UserFromContext(r.Context()),
			urlParam(r, "id"), body.Action, body.Reason)
	})
	if err != nil {
		writeDomainError(w, err, "award item not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListAwardDetails handles GET /api/v1/requisitions/{id}/award-items
func (h *Handlers) ListAwardDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.Store.ListAwardDetails(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
