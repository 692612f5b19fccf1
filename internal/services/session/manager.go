package session

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/membergate/membergate/internal/dependencies/clock"
	"github.com/membergate/membergate/internal/dependencies/random"
	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/storage"
)

const (
	// MaxSessionsPerUser caps live sessions per account. Issuing beyond the
	// cap evicts the oldest-created sessions.
	MaxSessionsPerUser = 10

	// TokenSize is the raw entropy of a session token in bytes.
	TokenSize = 32

	// DefaultCacheTTL bounds how long a revoked or disabled account may
	// still resolve from the cache. Cache expiry is lazy, checked on access.
	DefaultCacheTTL = 30 * time.Second
)

// Manager issues, resolves, enumerates, prunes and revokes sessions.
//
// Resolution results are cached per token with a short TTL since every
// authenticated request resolves its cookie. The cache is the only shared
// mutable state in the core and is safe for concurrent use.
type Manager struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu       sync.RWMutex
	cache    map[model.SessionToken]cacheEntry
	cacheTTL time.Duration
}

type cacheEntry struct {
	session   model.Session
	fetchedAt time.Time
}

// Config holds configuration for the session manager
type Config struct {
	CacheTTL time.Duration
}

// DefaultConfig returns default session manager configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL: DefaultCacheTTL,
	}
}

// New creates a new session Manager
func New(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *Manager {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Manager{
		storage:  store,
		clock:    clk,
		random:   rnd,
		logger:   logger,
		cache:    make(map[model.SessionToken]cacheEntry),
		cacheTTL: cfg.CacheTTL,
	}
}

// Issue creates a session for the given account and prunes the account's
// session list back down to MaxSessionsPerUser, oldest-created first.
// It fails with model.ErrNotFound if the account does not exist.
func (m *Manager) Issue(ctx context.Context, username, deviceLabel string) (model.SessionToken, error) {
	user, err := m.storage.GetUser(ctx, username)
	if err != nil {
		return "", err
	}

	token, err := m.newToken()
	if err != nil {
		return "", err
	}

	session := &model.Session{
		Token:           token,
		CreatedAt:       m.clock.Now(),
		Username:        user.Username,
		DeviceLabel:     deviceLabel,
		Permissions:     user.Permissions,
		PermissionGroup: user.PermissionGroup,
	}

	if err := m.storage.InsertSession(ctx, session); err != nil {
		return "", err
	}

	if err := m.prune(ctx, user.Username); err != nil {
		m.logger.Warn("session prune failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
	}

	return token, nil
}

// Resolve looks up the session for a token, caching the result for the
// configured TTL. The returned session carries the account's current
// permission flags and group, read live from the profile at fetch time.
// It fails with model.ErrNoSession if the token does not resolve.
func (m *Manager) Resolve(ctx context.Context, token model.SessionToken) (*model.Session, error) {
	if token == "" {
		return nil, model.ErrNoSession
	}

	now := m.clock.Now()

	m.mu.RLock()
	entry, ok := m.cache[token]
	m.mu.RUnlock()
	if ok && now.Sub(entry.fetchedAt) < m.cacheTTL {
		session := entry.session
		return &session, nil
	}

	session, err := m.storage.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNoSession
		}
		return nil, err
	}

	// Annotate with the profile's current authorization attributes so
	// permission edits take effect on existing sessions immediately.
	user, err := m.storage.GetUser(ctx, session.Username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNoSession
		}
		return nil, err
	}
	if user.Unfilled {
		// Account was disabled between the session fetch and now.
		return nil, model.ErrNoSession
	}
	session.Permissions = user.Permissions
	session.PermissionGroup = user.PermissionGroup

	m.mu.Lock()
	m.cache[token] = cacheEntry{session: *session, fetchedAt: now}
	m.mu.Unlock()

	copied := *session
	return &copied, nil
}

// Revoke deletes a session. Revoking a missing or already-revoked token is
// not an error at this layer.
func (m *Manager) Revoke(ctx context.Context, token model.SessionToken) error {
	if err := m.storage.DeleteSession(ctx, token); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.cache, token)
	m.mu.Unlock()
	return nil
}

// List returns all live sessions for an account, newest first, each
// annotated with the account's current permission flags and group.
// It fails with model.ErrNotFound if the account does not exist.
func (m *Manager) List(ctx context.Context, username string) ([]*model.Session, error) {
	user, err := m.storage.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	sessions, err := m.storage.ListSessions(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	for _, session := range sessions {
		session.Permissions = user.Permissions
		session.PermissionGroup = user.PermissionGroup
	}

	sortNewestFirst(sessions)
	return sessions, nil
}

// Empty returns the anonymous sentinel session. It is never persisted.
func (m *Manager) Empty() *model.Session {
	return model.AnonymousSession()
}

// PurgeUser drops every cached resolution for an account. Called when an
// account is disabled so its sessions stop resolving without waiting out
// the TTL.
func (m *Manager) PurgeUser(username string) {
	canonical := model.CanonicalUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()
	for token, entry := range m.cache {
		if model.CanonicalUsername(entry.session.Username) == canonical {
			delete(m.cache, token)
		}
	}
}

// prune deletes all but the MaxSessionsPerUser most recently created
// sessions for an account.
func (m *Manager) prune(ctx context.Context, username string) error {
	sessions, err := m.storage.ListSessions(ctx, username)
	if err != nil {
		return err
	}
	if len(sessions) <= MaxSessionsPerUser {
		return nil
	}

	sortNewestFirst(sessions)
	for _, session := range sessions[MaxSessionsPerUser:] {
		if err := m.Revoke(ctx, session.Token); err != nil {
			return err
		}
	}
	return nil
}

// newToken generates an unguessable session token with TokenSize bytes of
// entropy.
func (m *Manager) newToken() (model.SessionToken, error) {
	b, err := m.random.Bytes(TokenSize)
	if err != nil {
		return "", err
	}
	return model.SessionToken(base64.RawURLEncoding.EncodeToString(b)), nil
}

// sortNewestFirst orders sessions by creation time descending. The sort is
// stable so the storage backend's natural order breaks creation-time ties
// deterministically.
func sortNewestFirst(sessions []*model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
