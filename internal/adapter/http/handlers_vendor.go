package http

import (
	"net/http"

	"github.com/openprocure/tenderd/internal/domain/settings"
	"github.com/openprocure/tenderd/internal/domain/user"
	"github.com/openprocure/tenderd/internal/domain/vendor"
	"github.com/openprocure/tenderd/internal/middleware"
)

// ---------------------------------------------------------------------------
// Vendors
// ---------------------------------------------------------------------------

// CreateVendor handles POST /api/v1/vendors
func (h *Handlers) CreateVendor(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[vendor.CreateRequest](w, r)
	if !ok {
		return
	}

	v, err := h.Vendors.Create(r.Context(), middleware.UserFromContext(r.Context()), req)
	if err != nil {
		writeDomainError(w, err, "vendor not created")
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// ListVendors handles GET /api/v1/vendors
func (h *Handlers) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Vendors.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if vendors == nil {
		vendors = []vendor.Vendor{}
	}
	writeJSON(w, http.StatusOK, vendors)
}

// GetVendor handles GET /api/v1/vendors/{id}
func (h *Handlers) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.Vendors.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "vendor not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// CreateAPIKeyHandler handles POST /api/v1/auth/api-keys. Admins may issue
// keys for any user; everyone else only for themselves.
func (h *Handlers) CreateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	body, ok := readJSON[struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}](w, r)
	if !ok {
		return
	}
	if body.UserID == "" {
		body.UserID = actor.ID
	}
	if body.UserID != actor.ID && actor.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, "only admins may issue keys for other users")
		return
	}

	resp, err := h.Auth.CreateAPIKey(r.Context(), body.UserID, body.Name)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetCurrentUser handles GET /api/v1/auth/me
func (h *Handlers) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

// ---------------------------------------------------------------------------
// Procurement settings
// ---------------------------------------------------------------------------

// GetProcurementSettings handles GET /api/v1/settings
func (h *Handlers) GetProcurementSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.GetSettings(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateProcurementSettings handles PUT /api/v1/settings (admin only).
func (h *Handlers) UpdateProcurementSettings(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if actor == nil || actor.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	cfg, ok := readJSON[settings.Procurement](w, r)
	if !ok {
		return
	}
	if cfg.CommitteeQuorum < 1 || cfg.StandbyDepth < 0 || cfg.ResponseWindow <= 0 {
		writeError(w, http.StatusBadRequest, "quorum must be >= 1, standby depth >= 0, response window > 0")
		return
	}

	if err := h.Store.UpdateSettings(r.Context(), cfg); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
