package model

import "time"

// SessionToken is an opaque high-entropy string standing in for an
// authenticated identity. It is the sole session lookup key.
type SessionToken string

// Session represents one authenticated login on one device
type Session struct {
	Token       SessionToken
	CreatedAt   time.Time
	Username    string
	DeviceLabel string

	// Permissions and PermissionGroup are read live from the account profile
	// at resolution time, never frozen at session creation.
	Permissions     Permissions
	PermissionGroup int
}

// AnonymousSession returns the sentinel session used for requests without a
// valid session cookie. It is never persisted.
func AnonymousSession() *Session {
	return &Session{
		Username:        AnonymousUsername,
		DeviceLabel:     AnonymousUsername,
		Permissions:     PermNone,
		PermissionGroup: int(^uint(0) >> 1), // least privileged rank
	}
}

// IsAnonymous reports whether s is the anonymous sentinel.
func (s *Session) IsAnonymous() bool {
	return s.Username == AnonymousUsername
}
