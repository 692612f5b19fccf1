package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/membergate/membergate/internal/api/apierr"
	"github.com/membergate/membergate/internal/api/middleware"
	"github.com/membergate/membergate/internal/api/request"
	"github.com/membergate/membergate/internal/api/response"
	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/services/authn"
	"github.com/membergate/membergate/internal/services/csrf"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *authn.Service
	guard       *csrf.Guard
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *authn.Service, guard *csrf.Guard) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		guard:       guard,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password, req.DeviceLabel)
	if err != nil {
		// Unknown usernames and wrong passwords get the same response.
		if errors.Is(err, model.ErrNotFound) {
			err = apierr.NewInvalidCredentialsError()
		}
		WriteError(w, err)
		return
	}

	h.establishSession(w, r, token, http.StatusOK)
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req request.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.SlotID == "" {
		WriteError(w, NewInvalidRequestError("slot_id is required"))
		return
	}
	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	token, err := h.authService.SignUp(r.Context(), req.Username, req.Password, req.DeviceLabel, model.UserID(req.SlotID))
	if err != nil {
		WriteError(w, err)
		return
	}

	h.establishSession(w, r, token, http.StatusCreated)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.Token(r)
	if err := h.authService.Logout(r.Context(), model.SessionToken(token)); err != nil {
		WriteError(w, err)
		return
	}

	clearCookie(w, middleware.SessionCookieName)
	clearCookie(w, middleware.CSRFCookieName)
	response.NoContent(w)
}

// Me handles GET /api/v1/auth/me. Callers without a resolvable session get
// the anonymous sentinel rather than an error.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	response.JSON(w, http.StatusOK, response.MeFromSession(session))
}

// OAuthStart handles GET /api/v1/auth/oauth/{provider}.
// External identity providers are not wired up yet.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	WriteError(w, model.ErrUnimplemented)
}

// establishSession sets the session cookie, rotates the CSRF guard cookie
// and writes the auth response. The guard rotation ensures a fresh principal
// never carries the previous visitor's token.
func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request, token model.SessionToken, status int) {
	session, err := h.authService.ExtractSession(r.Context(), string(token))
	if err != nil {
		WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    string(token),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	if err := middleware.IssueCSRFCookie(w, h.guard); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, status, response.AuthResponse{
		Username:     session.Username,
		SessionToken: string(token),
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
