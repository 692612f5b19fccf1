package model

import "strings"

// Permissions is a bitmask of member-management capabilities.
//
// Public capabilities are OR-combinations of a base "view" bit and one or
// more private implementation bits, so holding a higher capability always
// implies the capabilities beneath it. Authorization checks must go through
// Contains rather than comparing values directly.
type Permissions uint64

// Private implementation bits. These are never granted on their own; they
// only appear inside the public composites below.
const (
	permViewMembers Permissions = 1 << iota
	permViewMemberSettings
	permEditMemberSettings
	permCreateMembers
	permDisableMembers
	permViewInvitedMembers
	permUninviteMembers

	// permSysAdmin is the top reserved bit. Everything below it belongs to
	// PermAdmin; setting it grants the full mask.
	permSysAdmin
)

// Public capabilities.
const (
	PermNone Permissions = 0

	PermViewMembers        = permViewMembers
	PermViewMemberSettings = PermViewMembers | permViewMemberSettings
	PermEditMemberSettings = PermViewMemberSettings | permEditMemberSettings
	PermCreateMembers      = PermViewMembers | permCreateMembers
	PermDisableMembers     = PermViewMembers | permDisableMembers
	PermViewInvitedMembers = PermViewMembers | permViewInvitedMembers
	PermUninviteMembers    = PermViewInvitedMembers | permUninviteMembers

	// PermAdmin is every capability bit below the reserved sys-admin bit.
	PermAdmin = permSysAdmin - 1

	// PermSysAdmin is the full mask, a strict superset of everything.
	PermSysAdmin = PermAdmin | permSysAdmin
)

// permNames is ordered from most to least specific so String picks the
// broadest names first.
var permNames = []struct {
	perm Permissions
	name string
}{
	{PermSysAdmin, "SYS_ADMIN"},
	{PermAdmin, "ADMIN"},
	{PermUninviteMembers, "UNINVITE_MEMBERS"},
	{PermViewInvitedMembers, "VIEW_INVITED_MEMBERS"},
	{PermEditMemberSettings, "EDIT_MEMBER_SETTINGS"},
	{PermViewMemberSettings, "VIEW_MEMBER_SETTINGS"},
	{PermCreateMembers, "CREATE_MEMBERS"},
	{PermDisableMembers, "DISABLE_MEMBERS"},
	{PermViewMembers, "VIEW_MEMBERS"},
}

// Contains reports whether p grants every bit of required.
func (p Permissions) Contains(required Permissions) bool {
	return p&required == required
}

// Names returns the public capability names granted by p, broadest first.
// A name is included only if all of its bits are granted, and names wholly
// covered by an already-included broader name are omitted.
func (p Permissions) Names() []string {
	var names []string
	var covered Permissions
	for _, entry := range permNames {
		if !p.Contains(entry.perm) {
			continue
		}
		if covered.Contains(entry.perm) {
			continue
		}
		names = append(names, entry.name)
		covered |= entry.perm
	}
	return names
}

// ParsePermissions combines the named public capabilities into one mask.
// Unknown names return ErrUnknownPermission.
func ParsePermissions(names []string) (Permissions, error) {
	var p Permissions
	for _, name := range names {
		found := false
		for _, entry := range permNames {
			if entry.name == name {
				p |= entry.perm
				found = true
				break
			}
		}
		if !found {
			return PermNone, ErrUnknownPermission
		}
	}
	return p, nil
}

// String renders p as a |-joined list of capability names.
func (p Permissions) String() string {
	if p == PermNone {
		return "NONE"
	}
	return strings.Join(p.Names(), "|")
}

// CanActOn reports whether an actor with the given permission group may
// manage a target in targetGroup. Groups rank privilege numerically with
// lower meaning more privileged; management requires the target to be
// strictly less privileged than the actor.
func CanActOn(actorGroup, targetGroup int) bool {
	return targetGroup > actorGroup
}

// CanGrant reports whether an actor holding actor permissions may grant the
// given permissions to someone else. Granting is capped at the actor's own
// flags so nobody can escalate beyond what they hold.
func CanGrant(actor, grant Permissions) bool {
	return actor.Contains(grant)
}
