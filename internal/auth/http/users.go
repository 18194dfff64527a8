package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tavernworks/doorman/internal/auth/service"
	"github.com/tavernworks/doorman/pkg/httpx"
	"github.com/tavernworks/doorman/pkg/slogx"
)

type RegisterHandler struct {
	AuthService *service.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ServeHTTP handles new account registration. Duplicate emails are a
// user-correctable condition and map to 409.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.AuthService.Register(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyRegistered) {
			httpx.WriteError(w, http.StatusConflict, "already_registered", "email already registered")
			return
		}
		log.Error("registration failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		Email:   user.Email,
		Message: "user created",
	})
}
