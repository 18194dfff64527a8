package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tavernworks/doorman/internal/auth/service"
	"github.com/tavernworks/doorman/pkg/httpx"
	"github.com/tavernworks/doorman/pkg/slogx"
)

type ResetIssueHandler struct {
	AuthService *service.AuthService
}

type resetIssueRequest struct {
	Email string `json:"email"`
}

type resetIssueResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// ServeHTTP issues a password-reset token for the given email. Unknown emails
// map to 403; this endpoint already requires knowing the email, so it does not
// follow the login endpoints' anti-enumeration policy.
func (h *ResetIssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	token, err := h.AuthService.IssueResetToken(ctx, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusForbidden, "user_not_found", "")
			return
		}
		log.Error("reset token issuance failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resetIssueResponse{Email: req.Email, ResetToken: token})
}

type ResetRedeemHandler struct {
	AuthService *service.AuthService
}

type resetRedeemRequest struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

type resetRedeemResponse struct {
	Message string `json:"message"`
}

// ServeHTTP redeems a reset token, swapping in the new password and consuming
// the token. Invalid (or already consumed) tokens map to 403.
func (h *ResetRedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req resetRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "new_password is required")
		return
	}

	if err := h.AuthService.RedeemReset(ctx, req.ResetToken, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			httpx.WriteError(w, http.StatusForbidden, "invalid_token", "")
			return
		}
		log.Error("reset redemption failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resetRedeemResponse{Message: "password updated"})
}
