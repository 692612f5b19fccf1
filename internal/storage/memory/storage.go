package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
//
// A single mutex serializes every operation, which gives the atomic
// read-modify-write guarantees the interface requires for free. Sessions for
// a user are tracked in insertion order, which is the backend's natural
// ordering for tie-breaking.
type Storage struct {
	mu sync.RWMutex

	// users is keyed by the canonical (lowercase) username
	users map[string]*userRecord
	// idIndex maps a slot/account id to its canonical username
	idIndex map[model.UserID]string

	sessions map[model.SessionToken]*model.Session
	// sessionOrder keeps per-user tokens in insertion order
	sessionOrder map[string][]model.SessionToken
}

type userRecord struct {
	user  model.User
	creds *model.Credentials
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:        make(map[string]*userRecord),
		idIndex:      make(map[model.UserID]string),
		sessions:     make(map[model.SessionToken]*model.Session),
		sessionOrder: make(map[string][]model.SessionToken),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) GetSessionByToken(ctx context.Context, token model.SessionToken) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Storage) InsertSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.CanonicalUsername(session.Username)
	if _, ok := s.users[key]; !ok {
		return model.ErrNotFound
	}
	copied := *session
	s.sessions[session.Token] = &copied
	s.sessionOrder[key] = append(s.sessionOrder[key], session.Token)
	return nil
}

func (s *Storage) ListSessions(ctx context.Context, username string) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.CanonicalUsername(username)
	tokens := s.sessionOrder[key]
	sessions := make([]*model.Session, 0, len(tokens))
	for _, token := range tokens {
		if session, ok := s.sessions[token]; ok {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token model.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteSessionLocked(token)
	return nil
}

func (s *Storage) deleteSessionLocked(token model.SessionToken) {
	session, ok := s.sessions[token]
	if !ok {
		return
	}
	delete(s.sessions, token)
	key := model.CanonicalUsername(session.Username)
	order := s.sessionOrder[key]
	for i, t := range order {
		if t == token {
			s.sessionOrder[key] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

// Credential operations

func (s *Storage) GetCredentials(ctx context.Context, username string) (*model.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok || rec.creds == nil {
		return nil, model.ErrNotFound
	}
	copied := model.Credentials{
		Fingerprint: rec.creds.Fingerprint,
		Nonce:       append([]byte(nil), rec.creds.Nonce...),
	}
	return &copied, nil
}

// Account operations

func (s *Storage) UsernameExists(ctx context.Context, username string, exceptID model.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usernameExistsLocked(username, exceptID), nil
}

func (s *Storage) usernameExistsLocked(username string, exceptID model.UserID) bool {
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok {
		return false
	}
	if exceptID != "" && rec.user.ID == exceptID {
		return false
	}
	return true
}

func (s *Storage) CorrectlyCasedUsername(ctx context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok {
		return "", model.ErrNotFound
	}
	return rec.user.Username, nil
}

func (s *Storage) CreateAccount(ctx context.Context, username string, creds *model.Credentials, slotID model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, ok := s.idIndex[slotID]
	if !ok {
		return model.ErrNotFound
	}
	rec := s.users[oldKey]
	if !rec.user.Unfilled {
		return model.ErrUserSlotTaken
	}
	// The uniqueness check and the fill happen under one lock so concurrent
	// fills of the same name cannot both pass.
	if s.usernameExistsLocked(username, slotID) {
		return model.ErrAlreadyExists
	}

	newKey := model.CanonicalUsername(username)
	delete(s.users, oldKey)
	rec.user.Username = username
	rec.user.Unfilled = false
	rec.creds = &model.Credentials{
		Fingerprint: creds.Fingerprint,
		Nonce:       append([]byte(nil), creds.Nonce...),
	}
	s.users[newKey] = rec
	s.idIndex[slotID] = newKey
	return nil
}

func (s *Storage) CreateSlot(ctx context.Context, permissions model.Permissions, permissionGroup int, tempName string) (model.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.usernameExistsLocked(tempName, "") {
		return "", model.ErrAlreadyExists
	}

	id := model.UserID(uuid.NewString())
	key := model.CanonicalUsername(tempName)
	s.users[key] = &userRecord{
		user: model.User{
			ID:              id,
			Username:        tempName,
			Unfilled:        true,
			Permissions:     permissions,
			PermissionGroup: permissionGroup,
		},
	}
	s.idIndex[id] = key
	return id, nil
}

func (s *Storage) DeleteUnfilledByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.CanonicalUsername(username)
	rec, ok := s.users[key]
	if !ok || !rec.user.Unfilled {
		return false, nil
	}
	delete(s.users, key)
	delete(s.idIndex, rec.user.ID)
	return true, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, rec := range s.users {
		copied := rec.user
		users = append(users, &copied)
	}
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok {
		return nil, model.ErrNotFound
	}
	copied := rec.user
	return &copied, nil
}

func (s *Storage) UpdatePermissionGroup(ctx context.Context, username string, group int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok {
		return model.ErrNotFound
	}
	rec.user.PermissionGroup = group
	return nil
}

func (s *Storage) UpdatePermissions(ctx context.Context, username string, permissions model.Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[model.CanonicalUsername(username)]
	if !ok {
		return model.ErrNotFound
	}
	rec.user.Permissions = permissions
	return nil
}

func (s *Storage) DisableAccount(ctx context.Context, username string) (model.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.CanonicalUsername(username)
	rec, ok := s.users[key]
	if !ok || rec.user.Unfilled {
		return "", model.ErrNotFound
	}

	// Revert to an unfilled slot and drop every session in one step.
	delete(s.idIndex, rec.user.ID)
	newID := model.UserID(uuid.NewString())
	rec.user.ID = newID
	rec.user.Unfilled = true
	rec.creds = nil
	s.idIndex[newID] = key

	for _, token := range append([]model.SessionToken(nil), s.sessionOrder[key]...) {
		s.deleteSessionLocked(token)
	}
	return newID, nil
}
