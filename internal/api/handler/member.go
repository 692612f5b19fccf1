package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/membergate/membergate/internal/api/middleware"
	"github.com/membergate/membergate/internal/api/request"
	"github.com/membergate/membergate/internal/api/response"
	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/services/provision"
)

// MemberHandler handles member-management endpoints
type MemberHandler struct {
	provisioner *provision.Provisioner
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(provisioner *provision.Provisioner) *MemberHandler {
	return &MemberHandler{
		provisioner: provisioner,
	}
}

// List handles GET /api/v1/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermViewMembers) {
		WriteError(w, NewForbiddenError())
		return
	}

	users, err := h.provisioner.ListUsers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	showInvited := session.Permissions.Contains(model.PermViewInvitedMembers)
	showSettings := session.Permissions.Contains(model.PermViewMemberSettings)

	members := make([]response.Member, 0, len(users))
	for _, user := range users {
		if user.Unfilled && !showInvited {
			continue
		}
		members = append(members, response.MemberFromModel(user, showSettings))
	}
	sort.Slice(members, func(i, j int) bool {
		return model.CanonicalUsername(members[i].Username) < model.CanonicalUsername(members[j].Username)
	})

	response.JSON(w, http.StatusOK, response.MemberList{Members: members})
}

// Get handles GET /api/v1/members/{username}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermViewMembers) {
		WriteError(w, NewForbiddenError())
		return
	}

	user, err := h.provisioner.GetUser(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if user.Unfilled && !session.Permissions.Contains(model.PermViewInvitedMembers) {
		// Hide unfilled slots from callers who may not see invitations.
		WriteError(w, model.ErrNotFound)
		return
	}

	showSettings := session.Permissions.Contains(model.PermViewMemberSettings)
	response.JSON(w, http.StatusOK, response.MemberFromModel(user, showSettings))
}

// Invite handles POST /api/v1/members/invite
func (h *MemberHandler) Invite(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermCreateMembers) {
		WriteError(w, NewForbiddenError())
		return
	}

	var req request.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.TempName == "" {
		WriteError(w, NewInvalidRequestError("temp_name is required"))
		return
	}

	permissions, err := model.ParsePermissions(req.Permissions)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !model.CanGrant(session.Permissions, permissions) {
		WriteError(w, NewForbiddenError())
		return
	}
	if !model.CanActOn(session.PermissionGroup, req.PermissionGroup) {
		WriteError(w, NewForbiddenError())
		return
	}

	slotID, err := h.provisioner.CreateSlot(r.Context(), permissions, req.PermissionGroup, req.TempName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.Slot{
		SlotID:   string(slotID),
		TempName: req.TempName,
	})
}

// Uninvite handles DELETE /api/v1/members/{username}/invitation
func (h *MemberHandler) Uninvite(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermUninviteMembers) {
		WriteError(w, NewForbiddenError())
		return
	}

	username := mux.Vars(r)["username"]
	if err := h.requireActOn(w, r, session, username); err != nil {
		return
	}

	if err := h.provisioner.Uninvite(r.Context(), username); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// Disable handles POST /api/v1/members/{username}/disable
func (h *MemberHandler) Disable(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermDisableMembers) {
		WriteError(w, NewForbiddenError())
		return
	}

	username := mux.Vars(r)["username"]
	if err := h.requireActOn(w, r, session, username); err != nil {
		return
	}

	slotID, err := h.provisioner.Disable(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Slot{
		SlotID:   string(slotID),
		TempName: username,
	})
}

// SetPermissions handles PUT /api/v1/members/{username}/permissions
func (h *MemberHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermEditMemberSettings) {
		WriteError(w, NewForbiddenError())
		return
	}

	var req request.SetPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	permissions, err := model.ParsePermissions(req.Permissions)
	if err != nil {
		WriteError(w, err)
		return
	}
	if !model.CanGrant(session.Permissions, permissions) {
		WriteError(w, NewForbiddenError())
		return
	}

	username := mux.Vars(r)["username"]
	if err := h.requireActOn(w, r, session, username); err != nil {
		return
	}

	if err := h.provisioner.SetPermissions(r.Context(), username, permissions); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// SetPermissionGroup handles PUT /api/v1/members/{username}/permission-group
func (h *MemberHandler) SetPermissionGroup(w http.ResponseWriter, r *http.Request) {
	session := middleware.MustGetSession(r.Context())
	if !session.Permissions.Contains(model.PermEditMemberSettings) {
		WriteError(w, NewForbiddenError())
		return
	}

	var req request.SetPermissionGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	// Moving a member into the caller's own group or above would put them out
	// of the caller's reach, so the destination must also be actionable.
	if !model.CanActOn(session.PermissionGroup, req.PermissionGroup) {
		WriteError(w, NewForbiddenError())
		return
	}

	username := mux.Vars(r)["username"]
	if err := h.requireActOn(w, r, session, username); err != nil {
		return
	}

	if err := h.provisioner.SetPermissionGroup(r.Context(), username, req.PermissionGroup); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// requireActOn checks the group hierarchy against the target member and
// writes the error response itself when the check fails.
func (h *MemberHandler) requireActOn(w http.ResponseWriter, r *http.Request, session *model.Session, username string) error {
	target, err := h.provisioner.GetUser(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return err
	}
	if !model.CanActOn(session.PermissionGroup, target.PermissionGroup) {
		err := NewForbiddenError()
		WriteError(w, err)
		return err
	}
	return nil
}
