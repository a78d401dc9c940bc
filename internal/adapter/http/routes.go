package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Requisitions
		r.Get("/requisitions", h.ListRequisitions)
		r.Post("/requisitions", h.CreateRequisition)
		r.Get("/requisitions/{id}", h.GetRequisition)
		r.Post("/requisitions/{id}/distribute", h.DistributeRFQ)
		r.Post("/requisitions/{id}/finalize", h.FinalizeAward)
		r.Post("/requisitions/{id}/reopen", h.ReopenRequisition)
		r.Post("/requisitions/{id}/restart-rfq", h.RestartRFQ)
		r.Post("/requisitions/{id}/cancel", h.CancelRequisition)
		r.Post("/requisitions/{id}/post-approve", h.PostApproveRequisition)
		r.Post("/requisitions/{id}/advance", h.AdvanceRequisition)
		r.Get("/requisitions/{id}/audit", h.GetAuditTrail)

		// Quotations (nested under requisitions + direct access)
		r.Post("/requisitions/{id}/quotations", h.SubmitQuotation)
		r.Get("/requisitions/{id}/quotations", h.ListQuotations)
		r.Get("/quotations/{id}", h.GetQuotation)
		r.Post("/quotations/{id}/respond", h.RespondQuotation)

		// Committee scoring
		r.Put("/quotations/{id}/scores", h.UpsertScores)
		r.Post("/requisitions/{id}/scores/submit", h.SubmitScores)
		r.Get("/requisitions/{id}/scoreboard", h.GetScoreboard)

		// Per-item award targets
		r.Get("/requisitions/{id}/award-items", h.ListAwardDetails)
		r.Post("/award-items/{id}/respond", h.RespondAwardItem)

		// Vendors
		r.Get("/vendors", h.ListVendors)
		r.Post("/vendors", h.CreateVendor)
		r.Get("/vendors/{id}", h.GetVendor)

		// Auth
		r.Post("/auth/api-keys", h.CreateAPIKeyHandler)
		r.Get("/auth/me", h.GetCurrentUser)

		// Procurement settings
		r.Get("/settings", h.GetProcurementSettings)
		r.Put("/settings", h.UpdateProcurementSettings)
	})
}
