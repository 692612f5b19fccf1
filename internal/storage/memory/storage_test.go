package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/membergate/membergate/internal/model"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) fillSlot(tempName, username string) model.UserID {
	id, err := s.storage.CreateSlot(s.ctx, model.PermViewMembers, 5, tempName)
	s.Require().NoError(err)
	err = s.storage.CreateAccount(s.ctx, username, &model.Credentials{
		Fingerprint: "fp-" + username,
		Nonce:       []byte("nonce-" + username),
	}, id)
	s.Require().NoError(err)
	return id
}

func (s *StorageSuite) insertSession(token model.SessionToken, username string, at time.Time) {
	err := s.storage.InsertSession(s.ctx, &model.Session{
		Token:       token,
		CreatedAt:   at,
		Username:    username,
		DeviceLabel: "test device",
	})
	s.Require().NoError(err)
}

// Slot and account tests

func (s *StorageSuite) TestCreateSlotAndGetUser() {
	id, err := s.storage.CreateSlot(s.ctx, model.PermCreateMembers, 3, "invite-1")
	s.Require().NoError(err)

	user, err := s.storage.GetUser(s.ctx, "invite-1")
	s.Require().NoError(err)
	s.Equal(id, user.ID)
	s.Equal("invite-1", user.Username)
	s.True(user.Unfilled)
	s.Equal(model.PermCreateMembers, user.Permissions)
	s.Equal(3, user.PermissionGroup)
}

func (s *StorageSuite) TestCreateSlotRejectsCollision() {
	_, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "Bob")
	s.Require().NoError(err)

	_, err = s.storage.CreateSlot(s.ctx, model.PermNone, 5, "bob")
	s.ErrorIs(err, model.ErrAlreadyExists)
}

func (s *StorageSuite) TestCreateAccountFillsSlot() {
	id := s.fillSlot("invite-1", "alice")

	user, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(user.Unfilled)
	s.Equal(id, user.ID)
	s.Equal("alice", user.Username)

	// The temp name is released once the slot is filled.
	_, err = s.storage.GetUser(s.ctx, "invite-1")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestCreateAccountFailsForUnknownSlot() {
	err := s.storage.CreateAccount(s.ctx, "alice", &model.Credentials{}, "no-such-id")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestCreateAccountFailsForFilledSlot() {
	id := s.fillSlot("invite-1", "alice")

	err := s.storage.CreateAccount(s.ctx, "bob", &model.Credentials{}, id)
	s.ErrorIs(err, model.ErrUserSlotTaken)
}

func (s *StorageSuite) TestCreateAccountFailsOnNameCollision() {
	s.fillSlot("invite-1", "alice")
	slotID, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "invite-2")
	s.Require().NoError(err)

	err = s.storage.CreateAccount(s.ctx, "ALICE", &model.Credentials{}, slotID)
	s.ErrorIs(err, model.ErrAlreadyExists)
}

func (s *StorageSuite) TestUsernameExists() {
	id := s.fillSlot("invite-1", "alice")

	exists, err := s.storage.UsernameExists(s.ctx, "ALICE", "")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.storage.UsernameExists(s.ctx, "alice", id)
	s.Require().NoError(err)
	s.False(exists, "the account's own slot id is excluded")

	exists, err = s.storage.UsernameExists(s.ctx, "nobody", "")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestCorrectlyCasedUsername() {
	s.fillSlot("invite-1", "ALiCe")

	stored, err := s.storage.CorrectlyCasedUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("ALiCe", stored)

	_, err = s.storage.CorrectlyCasedUsername(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestGetCredentials() {
	s.fillSlot("invite-1", "alice")

	creds, err := s.storage.GetCredentials(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal("fp-alice", creds.Fingerprint)
	s.Equal([]byte("nonce-alice"), creds.Nonce)
}

func (s *StorageSuite) TestGetCredentialsFailsForUnfilledSlot() {
	_, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "invite-1")
	s.Require().NoError(err)

	_, err = s.storage.GetCredentials(s.ctx, "invite-1")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestDeleteUnfilledByUsername() {
	_, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "invite-1")
	s.Require().NoError(err)

	deleted, err := s.storage.DeleteUnfilledByUsername(s.ctx, "INVITE-1")
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.storage.DeleteUnfilledByUsername(s.ctx, "invite-1")
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *StorageSuite) TestDeleteUnfilledLeavesFilledAccountsAlone() {
	s.fillSlot("invite-1", "alice")

	deleted, err := s.storage.DeleteUnfilledByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(deleted)

	_, err = s.storage.GetUser(s.ctx, "alice")
	s.NoError(err)
}

func (s *StorageSuite) TestUpdatePermissions() {
	s.fillSlot("invite-1", "alice")

	err := s.storage.UpdatePermissions(s.ctx, "alice", model.PermAdmin)
	s.Require().NoError(err)
	err = s.storage.UpdatePermissionGroup(s.ctx, "alice", 2)
	s.Require().NoError(err)

	user, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal(model.PermAdmin, user.Permissions)
	s.Equal(2, user.PermissionGroup)

	s.ErrorIs(s.storage.UpdatePermissions(s.ctx, "nobody", model.PermNone), model.ErrNotFound)
	s.ErrorIs(s.storage.UpdatePermissionGroup(s.ctx, "nobody", 1), model.ErrNotFound)
}

func (s *StorageSuite) TestListUsers() {
	s.fillSlot("invite-1", "alice")
	_, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "invite-2")
	s.Require().NoError(err)

	users, err := s.storage.ListUsers(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 2)
}

func (s *StorageSuite) TestDisableAccount() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	oldID := s.fillSlot("invite-1", "alice")
	s.insertSession("tok-1", "alice", now)
	s.insertSession("tok-2", "alice", now.Add(time.Minute))

	newID, err := s.storage.DisableAccount(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEqual(oldID, newID)

	user, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(user.Unfilled)
	s.Equal(newID, user.ID)

	_, err = s.storage.GetCredentials(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNotFound)

	_, err = s.storage.GetSessionByToken(s.ctx, "tok-1")
	s.ErrorIs(err, model.ErrNotFound)
	_, err = s.storage.GetSessionByToken(s.ctx, "tok-2")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestDisableAccountFailsWhenUnfilled() {
	_, err := s.storage.CreateSlot(s.ctx, model.PermNone, 5, "invite-1")
	s.Require().NoError(err)

	_, err = s.storage.DisableAccount(s.ctx, "invite-1")
	s.ErrorIs(err, model.ErrNotFound)

	_, err = s.storage.DisableAccount(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrNotFound)
}

// Session tests

func (s *StorageSuite) TestInsertAndGetSession() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.fillSlot("invite-1", "alice")
	s.insertSession("tok-1", "alice", now)

	session, err := s.storage.GetSessionByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal("alice", session.Username)
	s.Equal("test device", session.DeviceLabel)
	s.True(session.CreatedAt.Equal(now))
}

func (s *StorageSuite) TestInsertSessionFailsForUnknownUser() {
	err := s.storage.InsertSession(s.ctx, &model.Session{Token: "tok", Username: "nobody"})
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StorageSuite) TestListSessionsPreservesInsertionOrder() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.fillSlot("invite-1", "alice")
	// Identical timestamps; the natural order is insertion order.
	s.insertSession("tok-a", "alice", now)
	s.insertSession("tok-b", "alice", now)
	s.insertSession("tok-c", "alice", now)

	sessions, err := s.storage.ListSessions(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(sessions, 3)
	s.Equal(model.SessionToken("tok-a"), sessions[0].Token)
	s.Equal(model.SessionToken("tok-b"), sessions[1].Token)
	s.Equal(model.SessionToken("tok-c"), sessions[2].Token)
}

func (s *StorageSuite) TestDeleteSessionIsIdempotent() {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.fillSlot("invite-1", "alice")
	s.insertSession("tok-1", "alice", now)

	s.NoError(s.storage.DeleteSession(s.ctx, "tok-1"))
	s.NoError(s.storage.DeleteSession(s.ctx, "tok-1"))
	s.NoError(s.storage.DeleteSession(s.ctx, "never-inserted"))

	sessions, err := s.storage.ListSessions(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(sessions)
}
