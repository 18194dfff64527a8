package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tavernworks/doorman/internal/auth/service"
	"github.com/tavernworks/doorman/internal/auth/store"
	"github.com/tavernworks/doorman/pkg/httpx"
	"github.com/tavernworks/doorman/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ServeHTTP verifies credentials and, on success, mints a session token
// delivered via the session cookie. Unknown emails and wrong passwords both
// map to a plain 401.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	ok, err := h.AuthService.ValidateLogin(ctx, req.Email, req.Password)
	if err != nil {
		log.Error("login validation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "")
		return
	}

	token, err := h.AuthService.CreateSession(ctx, req.Email)
	if err != nil {
		log.Error("session creation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if token == "" {
		// The account vanished between validation and session creation.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Email: req.Email, Message: "logged in"})
}

type LogoutHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP destroys the session named by the request cookie. Requests with
// no resolvable session get 403; a second logout with the same cookie is
// therefore also a 403, not an error in the service.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	user, err := h.AuthService.GetUserBySession(ctx, sessionIDFromCookie(r))
	if err != nil {
		log.Error("session lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if user == nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_session", "")
		return
	}

	if err := h.AuthService.DestroySession(ctx, user.ID); err != nil {
		// The user vanishing between lookup and destroy still counts as
		// logged out.
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("session destroy failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
	}

	expireSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type ProfileHandler struct {
	AuthService *service.AuthService
}

type profileResponse struct {
	Email string `json:"email"`
}

// ServeHTTP returns the profile of the session holder, or 403 when the
// cookie is missing or resolves to nothing.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	user, err := h.AuthService.GetUserBySession(ctx, sessionIDFromCookie(r))
	if err != nil {
		log.Error("session lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	if user == nil {
		httpx.WriteError(w, http.StatusForbidden, "invalid_session", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profileResponse{Email: user.Email})
}

func sessionIDFromCookie(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func expireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
