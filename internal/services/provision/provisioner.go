package provision

import (
	"context"
	"log/slog"

	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/services/credential"
	"github.com/membergate/membergate/internal/services/session"
	"github.com/membergate/membergate/internal/storage"
)

// Provisioner manages the user-slot lifecycle: invitation slots are created
// unfilled, filled into real accounts with credentials, and can be uninvited
// while unfilled or disabled back into a fresh slot once filled.
type Provisioner struct {
	storage  storage.Storage
	codec    *credential.Codec
	sessions *session.Manager
	logger   *slog.Logger
}

// New creates a new Provisioner
func New(store storage.Storage, codec *credential.Codec, sessions *session.Manager, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		storage:  store,
		codec:    codec,
		sessions: sessions,
		logger:   logger,
	}
}

// CreateSlot reserves an unfilled invitation slot under a temporary name.
// It fails with model.ErrAlreadyExists if the name collides
// (case-insensitively) with any existing account or slot.
func (p *Provisioner) CreateSlot(ctx context.Context, permissions model.Permissions, permissionGroup int, tempName string) (model.UserID, error) {
	id, err := p.storage.CreateSlot(ctx, permissions, permissionGroup, tempName)
	if err != nil {
		return "", err
	}

	p.logger.Info("user slot created",
		slog.String("temp_name", tempName),
		slog.String("slot_id", string(id)),
	)
	return id, nil
}

// Fill claims an unfilled slot: it derives credentials for the final
// username, marks the slot filled, and issues a first session. It fails with
// model.ErrAlreadyExists if the username collides with any account other
// than the slot itself, model.ErrNotFound if the slot does not exist, and
// model.ErrUserSlotTaken if the slot is already filled.
func (p *Provisioner) Fill(ctx context.Context, username, password, deviceLabel string, slotID model.UserID) (model.SessionToken, error) {
	exists, err := p.storage.UsernameExists(ctx, username, slotID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", model.ErrAlreadyExists
	}

	creds, err := p.codec.Derive(username, password)
	if err != nil {
		return "", err
	}

	if err := p.storage.CreateAccount(ctx, username, creds, slotID); err != nil {
		return "", err
	}

	p.logger.Info("user slot filled",
		slog.String("username", username),
		slog.String("slot_id", string(slotID)),
	)
	return p.sessions.Issue(ctx, username, deviceLabel)
}

// Uninvite deletes an unfilled slot by name. It fails with
// model.ErrNotFound if no such slot exists or the slot is already filled.
func (p *Provisioner) Uninvite(ctx context.Context, username string) error {
	deleted, err := p.storage.DeleteUnfilledByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrNotFound
	}

	p.logger.Info("user slot uninvited", slog.String("username", username))
	return nil
}

// Disable reverts a filled account to an unfilled slot with a fresh opaque
// id, clears its credentials, and deletes every one of its sessions. The
// session cache is purged so revoked sessions stop resolving immediately.
// It fails with model.ErrNotFound if the account does not exist or is
// already unfilled.
func (p *Provisioner) Disable(ctx context.Context, username string) (model.UserID, error) {
	newID, err := p.storage.DisableAccount(ctx, username)
	if err != nil {
		return "", err
	}

	p.sessions.PurgeUser(username)

	p.logger.Info("account disabled",
		slog.String("username", username),
		slog.String("new_slot_id", string(newID)),
	)
	return newID, nil
}

// SetPermissions replaces an account's permission flags. It fails with
// model.ErrNotFound if the account does not exist.
func (p *Provisioner) SetPermissions(ctx context.Context, username string, permissions model.Permissions) error {
	return p.storage.UpdatePermissions(ctx, username, permissions)
}

// SetPermissionGroup replaces an account's permission group. It fails with
// model.ErrNotFound if the account does not exist.
func (p *Provisioner) SetPermissionGroup(ctx context.Context, username string, group int) error {
	return p.storage.UpdatePermissionGroup(ctx, username, group)
}

// ListUsers returns every account and unfilled slot.
func (p *Provisioner) ListUsers(ctx context.Context) ([]*model.User, error) {
	return p.storage.ListUsers(ctx)
}

// GetUser returns the profile for a username. It fails with
// model.ErrNotFound if no account or slot exists under that name.
func (p *Provisioner) GetUser(ctx context.Context, username string) (*model.User, error) {
	return p.storage.GetUser(ctx, username)
}
