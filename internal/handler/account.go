package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/refr-io/refr/internal/auth"
	"github.com/refr-io/refr/internal/service"
)

// AccountHandler serves the signup/login bridge to the identity provider
// plus the authenticated profile endpoint.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup registers a new account with the identity provider.
//
// HTTP: POST /api/signup (no auth — no token exists yet)
//
// Provider failures ("user exists", "weak password") come back as
// 400 {"error": <provider message>}, untranslated.
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	if err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Message: "User registered successfully. Please check your email for a confirmation code.",
	})
}

type confirmRequest struct {
	Email            string `json:"email"`
	ConfirmationCode string `json:"confirmationCode"`
}

// HandleConfirmSignup forwards the emailed confirmation code.
//
// HTTP: POST /api/confirm-signup (no auth)
func (h *AccountHandler) HandleConfirmSignup(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	if err := h.accounts.Confirm(r.Context(), req.Email, req.ConfirmationCode); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Message: "Email confirmed successfully. You can now log in.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin exchanges credentials for the provider's token triple and
// returns it to the client as-is (AccessToken/IdToken/RefreshToken...).
//
// HTTP: POST /api/login (no auth)
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	tokens, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	// The token triple is the whole response body; the client stores the
	// three tokens under the same names the provider uses.
	writeJSON(w, http.StatusOK, tokens)
}

// HandleGetUser returns the identity provider's view of the caller's
// account, in the provider's own shape ({Username, UserAttributes}). The
// profile page reads name/email out of the attribute list.
//
// HTTP: GET /api/user (bearer)
func (h *AccountHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.RawTokenFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication required"})
		return
	}

	profile, err := h.accounts.ProfileByToken(r.Context(), token)
	if err != nil {
		h.logger.Error("profile lookup failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
