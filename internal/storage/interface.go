package storage

import (
	"context"

	"github.com/membergate/membergate/internal/model"
)

// Storage defines the interface for data persistence.
//
// It is the single source of truth for accounts and sessions. Implementations
// must serialize conflicting writes to the same username: slot-fill
// (check unfilled + set filled), uniqueness checks, and account disable are
// read-modify-write operations that must be atomic per backend.
//
// Username arguments are matched case-insensitively everywhere; accounts keep
// their display casing alongside the canonical lowercase key.
type Storage interface {
	// Session operations
	GetSessionByToken(ctx context.Context, token model.SessionToken) (*model.Session, error)
	InsertSession(ctx context.Context, session *model.Session) error
	// ListSessions returns a user's sessions in the backend's natural order,
	// which must be deterministic; callers sort by creation time and rely on
	// the natural order to break ties.
	ListSessions(ctx context.Context, username string) ([]*model.Session, error)
	// DeleteSession is idempotent; deleting a missing token is not an error.
	DeleteSession(ctx context.Context, token model.SessionToken) error

	// Credential operations
	GetCredentials(ctx context.Context, username string) (*model.Credentials, error)

	// Account operations
	UsernameExists(ctx context.Context, username string, exceptID model.UserID) (bool, error)
	CorrectlyCasedUsername(ctx context.Context, username string) (string, error)
	// CreateAccount fills the slot identified by slotID with the final
	// username and credentials. It fails with model.ErrNotFound if the slot
	// does not exist, and model.ErrUserSlotTaken if it is already filled.
	CreateAccount(ctx context.Context, username string, creds *model.Credentials, slotID model.UserID) error
	CreateSlot(ctx context.Context, permissions model.Permissions, permissionGroup int, tempName string) (model.UserID, error)
	// DeleteUnfilledByUsername removes an unclaimed slot. It reports false if
	// no unfilled slot exists under that name; a filled account is left alone.
	DeleteUnfilledByUsername(ctx context.Context, username string) (bool, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	UpdatePermissionGroup(ctx context.Context, username string, group int) error
	UpdatePermissions(ctx context.Context, username string, permissions model.Permissions) error
	// DisableAccount atomically reverts a filled account to an unfilled slot:
	// fresh opaque id, credentials cleared, and every session for the account
	// deleted. It fails with model.ErrNotFound if the account does not exist
	// or is already unfilled.
	DisableAccount(ctx context.Context, username string) (model.UserID, error)
}
