package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tavernworks/doorman/internal/auth/service"
	"github.com/tavernworks/doorman/internal/auth/store"
	"github.com/tavernworks/doorman/pkg/httpx"
	"github.com/tavernworks/doorman/pkg/slogx"
)

// SessionCookieName is the cookie used to transport the opaque session token.
const SessionCookieName = "session_id"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	AuthService *service.AuthService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSessions()
	r.registerReset()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	registerHandler := &RegisterHandler{AuthService: r.AuthService}
	r.Mux.Handle("POST /v1/users", registerHandler)
}

func (r *Router) registerSessions() {
	loginHandler := &LoginHandler{AuthService: r.AuthService}
	logoutHandler := &LogoutHandler{AuthService: r.AuthService}
	profileHandler := &ProfileHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/sessions", loginHandler)
	r.Mux.Handle("DELETE /v1/sessions", logoutHandler)
	r.Mux.Handle("GET /v1/profile", profileHandler)
}

func (r *Router) registerReset() {
	issueHandler := &ResetIssueHandler{AuthService: r.AuthService}
	redeemHandler := &ResetRedeemHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/reset_password", issueHandler)
	r.Mux.Handle("PUT /v1/reset_password", redeemHandler)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
