// Package handler contains the HTTP layer: request parsing, response
// shaping, and nothing else. Business rules live in internal/service.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/refr-io/refr/internal/auth"
	"github.com/refr-io/refr/internal/service"
)

// ReferralHandler serves the referral CRUD endpoints. Every route it owns
// sits behind auth.RequireIdentity, so IdentityFromContext always succeeds
// here; the ok-check is priced as a guard against future wiring mistakes.
type ReferralHandler struct {
	referrals *service.ReferralService
	logger    *slog.Logger
}

// NewReferralHandler creates a ReferralHandler.
func NewReferralHandler(referrals *service.ReferralService, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, logger: logger}
}

// HandleList returns all referrals, newest first.
//
// HTTP: GET /api/referrals
//
// Cache-Control: no-store keeps browsers from replaying a stale list after a
// create or delete; the list must always reflect the store on reload.
func (h *ReferralHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	referrals, err := h.referrals.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, envelope{Message: "success", Data: referrals})
}

// HandleListMine returns only the caller's referrals.
//
// HTTP: GET /api/my-referrals
func (h *ReferralHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	referrals, err := h.referrals.ListMine(r.Context(), *ident)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, envelope{Message: "success", Data: referrals})
}

// createRequest is the client-supplied body of POST /api/referrals. The
// owner is deliberately absent: it comes from the verified token, so a
// client cannot post referrals in someone else's name.
type createRequest struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// HandleCreate inserts a new referral owned by the caller.
//
// HTTP: POST /api/referrals
// Body: {"title":..., "link":..., "description":..., "category":...}
func (h *ReferralHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid referral JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	ref, err := h.referrals.Create(r.Context(), *ident, service.CreateInput{
		Title:       req.Title,
		Link:        req.Link,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Message: "success", Data: ref})
}

// HandleDelete removes one of the caller's referrals.
//
// HTTP: DELETE /api/referrals/{id}
//
// Deleting an id that does not exist and deleting someone else's referral
// produce the same 404; the response must not reveal which it was.
func (h *ReferralHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Referral not found"})
		return
	}

	if err := h.referrals.Delete(r.Context(), *ident, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Message: "Referral deleted successfully"})
}
