package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/membergate/membergate/internal/dependencies/mocks"
	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/storage/memory"
	"github.com/membergate/membergate/internal/testutil"
)

type ManagerSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	manager *Manager
	ctx     context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.manager = New(s.storage, s.clock, s.random, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

// createAccount fills a fresh slot so sessions can be issued for it
func (s *ManagerSuite) createAccount(username string, permissions model.Permissions, group int) {
	slotID, err := s.storage.CreateSlot(s.ctx, permissions, group, "invite-"+username)
	s.Require().NoError(err)
	err = s.storage.CreateAccount(s.ctx, username, &model.Credentials{
		Fingerprint: "fp-" + username,
		Nonce:       []byte("nonce"),
	}, slotID)
	s.Require().NoError(err)
}

// Issue tests

func (s *ManagerSuite) TestIssueReturnsToken() {
	s.createAccount("alice", model.PermViewMembers, 5)

	token, err := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")
	s.Require().NoError(err)
	s.NotEmpty(token)
}

func (s *ManagerSuite) TestIssueFailsForUnknownUser() {
	_, err := s.manager.Issue(s.ctx, "nobody", "Chrome on Linux")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ManagerSuite) TestIssueTokensAreUnique() {
	s.createAccount("alice", model.PermNone, 5)

	first, err := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")
	s.Require().NoError(err)
	second, err := s.manager.Issue(s.ctx, "alice", "Firefox on Mac")
	s.Require().NoError(err)

	s.NotEqual(first, second)
}

func (s *ManagerSuite) TestIssuePrunesOldestSessions() {
	s.createAccount("alice", model.PermNone, 5)

	tokens := make([]model.SessionToken, 0, MaxSessionsPerUser+3)
	for i := 0; i < MaxSessionsPerUser+3; i++ {
		token, err := s.manager.Issue(s.ctx, "alice", fmt.Sprintf("device-%d", i))
		s.Require().NoError(err)
		tokens = append(tokens, token)
		s.clock.Advance(time.Minute)
	}

	sessions, err := s.manager.List(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(sessions, MaxSessionsPerUser)

	// The survivors are exactly the most recently created sessions.
	remaining := make(map[model.SessionToken]bool)
	for _, session := range sessions {
		remaining[session.Token] = true
	}
	for _, token := range tokens[:3] {
		s.False(remaining[token], "oldest sessions should have been pruned")
	}
	for _, token := range tokens[3:] {
		s.True(remaining[token])
	}
}

// Resolve tests

func (s *ManagerSuite) TestResolveReturnsSession() {
	s.createAccount("alice", model.PermViewMembers, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	session, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)

	s.Equal("alice", session.Username)
	s.Equal("Chrome on Linux", session.DeviceLabel)
	s.Equal(model.PermViewMembers, session.Permissions)
	s.Equal(5, session.PermissionGroup)
}

func (s *ManagerSuite) TestResolveFailsForUnknownToken() {
	_, err := s.manager.Resolve(s.ctx, "unknown")
	s.ErrorIs(err, model.ErrNoSession)
}

func (s *ManagerSuite) TestResolveFailsForEmptyToken() {
	_, err := s.manager.Resolve(s.ctx, "")
	s.ErrorIs(err, model.ErrNoSession)
}

func (s *ManagerSuite) TestResolveReflectsPermissionEdits() {
	s.createAccount("alice", model.PermViewMembers, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	err := s.storage.UpdatePermissions(s.ctx, "alice", model.PermEditMemberSettings)
	s.Require().NoError(err)

	// Past the cache TTL the edit must be visible on the existing session.
	s.clock.Advance(DefaultCacheTTL + time.Second)
	session, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(model.PermEditMemberSettings, session.Permissions)
}

func (s *ManagerSuite) TestResolveServesFromCacheWithinTTL() {
	s.createAccount("alice", model.PermNone, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	_, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)

	// Delete behind the manager's back; the cached entry still answers.
	err = s.storage.DeleteSession(s.ctx, token)
	s.Require().NoError(err)

	_, err = s.manager.Resolve(s.ctx, token)
	s.NoError(err)
}

func (s *ManagerSuite) TestResolveCacheEntryLapsesAfterTTL() {
	s.createAccount("alice", model.PermNone, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	_, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)

	err = s.storage.DeleteSession(s.ctx, token)
	s.Require().NoError(err)

	s.clock.Advance(DefaultCacheTTL + time.Second)
	_, err = s.manager.Resolve(s.ctx, token)
	s.ErrorIs(err, model.ErrNoSession)
}

// Revoke tests

func (s *ManagerSuite) TestRevokeInvalidatesImmediately() {
	s.createAccount("alice", model.PermNone, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	_, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)

	err = s.manager.Revoke(s.ctx, token)
	s.Require().NoError(err)

	// The cache entry is dropped along with the row, so no TTL wait.
	_, err = s.manager.Resolve(s.ctx, token)
	s.ErrorIs(err, model.ErrNoSession)
}

func (s *ManagerSuite) TestRevokeIsIdempotent() {
	s.createAccount("alice", model.PermNone, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	s.NoError(s.manager.Revoke(s.ctx, token))
	s.NoError(s.manager.Revoke(s.ctx, token))
	s.NoError(s.manager.Revoke(s.ctx, "never-issued"))
}

// List tests

func (s *ManagerSuite) TestListReturnsNewestFirst() {
	s.createAccount("alice", model.PermNone, 5)

	first, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")
	s.clock.Advance(time.Minute)
	second, _ := s.manager.Issue(s.ctx, "alice", "Firefox on Mac")

	sessions, err := s.manager.List(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(second, sessions[0].Token)
	s.Equal(first, sessions[1].Token)
}

func (s *ManagerSuite) TestListAnnotatesLivePermissions() {
	s.createAccount("alice", model.PermViewMembers, 5)
	_, _ = s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	err := s.storage.UpdatePermissions(s.ctx, "alice", model.PermAdmin)
	s.Require().NoError(err)
	err = s.storage.UpdatePermissionGroup(s.ctx, "alice", 2)
	s.Require().NoError(err)

	sessions, err := s.manager.List(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(model.PermAdmin, sessions[0].Permissions)
	s.Equal(2, sessions[0].PermissionGroup)
}

func (s *ManagerSuite) TestListFailsForUnknownUser() {
	_, err := s.manager.List(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrNotFound)
}

// Empty tests

func (s *ManagerSuite) TestEmptySessionIsAnonymous() {
	session := s.manager.Empty()
	s.True(session.IsAnonymous())
	s.Equal(model.AnonymousUsername, session.Username)
	s.Equal(model.PermNone, session.Permissions)
}

// PurgeUser tests

func (s *ManagerSuite) TestPurgeUserDropsCachedSessions() {
	s.createAccount("alice", model.PermNone, 5)
	token, _ := s.manager.Issue(s.ctx, "alice", "Chrome on Linux")

	_, err := s.manager.Resolve(s.ctx, token)
	s.Require().NoError(err)

	err = s.storage.DeleteSession(s.ctx, token)
	s.Require().NoError(err)
	s.manager.PurgeUser("ALICE") // case-insensitive

	_, err = s.manager.Resolve(s.ctx, token)
	s.ErrorIs(err, model.ErrNoSession)
}
