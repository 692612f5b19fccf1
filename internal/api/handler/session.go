package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/membergate/membergate/internal/api/middleware"
	"github.com/membergate/membergate/internal/api/response"
	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/services/session"
)

// SessionHandler handles the caller's own session endpoints
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
	}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())

	sessions, err := h.sessions.List(r.Context(), sess.Username)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.Session, len(sessions))
	for i, s := range sessions {
		out[i] = response.SessionFromModel(s)
	}
	response.JSON(w, http.StatusOK, response.SessionList{Sessions: out})
}

// Revoke handles DELETE /api/v1/sessions/{token}.
// A member may only revoke their own sessions.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	sess := middleware.MustGetSession(r.Context())
	token := model.SessionToken(mux.Vars(r)["token"])

	target, err := h.sessions.Resolve(r.Context(), token)
	if err != nil {
		WriteError(w, err)
		return
	}
	if model.CanonicalUsername(target.Username) != model.CanonicalUsername(sess.Username) {
		WriteError(w, NewForbiddenError())
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
