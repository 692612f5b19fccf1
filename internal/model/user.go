package model

import "strings"

// UserID is an opaque identifier for a user slot. It is reissued when an
// account is disabled, so it never survives a slot's lifecycle transitions.
type UserID string

// AnonymousUsername is the reserved identity for requests with no session.
// No account may claim it, in any casing.
const AnonymousUsername = "anonymous"

// User represents a member account or an unfilled invitation slot
type User struct {
	ID              UserID
	Username        string // display-cased; lookups go through the canonical key
	Unfilled        bool   // true for invitation slots not yet claimed
	Permissions     Permissions
	PermissionGroup int
}

// Credentials is the stored verifier for a filled account. The fingerprint
// is a one-way hash over the username, password and nonce; the nonce is
// fixed at account creation and reused for every verification.
type Credentials struct {
	Fingerprint string
	Nonce       []byte
}

// CanonicalUsername returns the case-insensitive lookup key for a username.
func CanonicalUsername(username string) string {
	return strings.ToLower(username)
}
