package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/membergate/membergate/internal/api/handler"
	apimiddleware "github.com/membergate/membergate/internal/api/middleware"
	"github.com/membergate/membergate/internal/services/authn"
	"github.com/membergate/membergate/internal/services/csrf"
	"github.com/membergate/membergate/internal/services/provision"
	"github.com/membergate/membergate/internal/services/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *authn.Service
	SessionManager *session.Manager
	Provisioner    *provision.Provisioner
	CSRFGuard      *csrf.Guard
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.CSRFGuard)
	memberHandler := handler.NewMemberHandler(cfg.Provisioner)
	sessionHandler := handler.NewSessionHandler(cfg.SessionManager)

	// Create middleware
	authMiddleware := apimiddleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := apimiddleware.OptionalAuth(cfg.AuthService)
	loggingMiddleware := apimiddleware.Logging(cfg.Logger)
	recoveryMiddleware := apimiddleware.Recovery(cfg.Logger)
	// Login is exempt since no guard pair can exist before the first
	// response; it rotates the pair on success. Signup is guarded whenever
	// the browser already holds the guard cookie.
	csrfMiddleware := apimiddleware.CSRF(cfg.Logger, cfg.CSRFGuard,
		"/api/v1/auth/login",
	)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	api.Use(csrfMiddleware)

	// Auth routes (no session required for login/signup/logout)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/signup", authHandler.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/oauth/{provider}", authHandler.OAuthStart).Methods(http.MethodGet)

	// Current-caller endpoint; anonymous callers get the sentinel so clients
	// can render a signed-out state.
	optional := api.NewRoute().Subrouter()
	optional.Use(optionalAuthMiddleware)
	optional.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(authMiddleware)

	// Member management routes
	authed.HandleFunc("/members", memberHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/members/invite", memberHandler.Invite).Methods(http.MethodPost)
	authed.HandleFunc("/members/{username}", memberHandler.Get).Methods(http.MethodGet)
	authed.HandleFunc("/members/{username}/invitation", memberHandler.Uninvite).Methods(http.MethodDelete)
	authed.HandleFunc("/members/{username}/disable", memberHandler.Disable).Methods(http.MethodPost)
	authed.HandleFunc("/members/{username}/permissions", memberHandler.SetPermissions).Methods(http.MethodPut)
	authed.HandleFunc("/members/{username}/permission-group", memberHandler.SetPermissionGroup).Methods(http.MethodPut)

	// Caller's own sessions
	authed.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{token}", sessionHandler.Revoke).Methods(http.MethodDelete)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
