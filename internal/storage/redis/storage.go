package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/membergate/membergate/internal/model"
	"github.com/membergate/membergate/internal/storage"
)

// maxTxRetries bounds optimistic-transaction retries when a watched key is
// modified concurrently.
const maxTxRetries = 5

// errTxRetriesExhausted is returned when a watched transaction keeps losing
// races; callers see it as an ordinary storage error.
var errTxRetriesExhausted = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface.
//
// User records are JSON values keyed by the canonical username, with a
// user_id index for slot lookups. Per-user sessions live in a ZSET scored by
// creation time; ZSET member ordering breaks score ties lexically, which is
// this backend's deterministic natural order.
//
// Read-modify-write operations (slot fill, disable, permission updates) run
// under WATCH/MULTI so concurrent writers to the same account serialize.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// userDoc is the stored shape of a user record
type userDoc struct {
	User        model.User
	Credentials *model.Credentials `json:",omitempty"`
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// watch runs fn under WATCH on the given keys, retrying on write conflicts.
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errTxRetriesExhausted
}

// Session operations

func (s *Storage) GetSessionByToken(ctx context.Context, token model.SessionToken) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) InsertSession(ctx context.Context, session *model.Session) error {
	canonical := model.CanonicalUsername(session.Username)

	exists, err := s.client.Exists(ctx, userKey(canonical)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrNotFound
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.Token), data, 0)
	pipe.ZAdd(ctx, sessionsForUserKey(canonical), redis.Z{
		Score:  float64(session.CreatedAt.UnixNano()),
		Member: string(session.Token),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListSessions(ctx context.Context, username string) ([]*model.Session, error) {
	canonical := model.CanonicalUsername(username)

	tokens, err := s.client.ZRange(ctx, sessionsForUserKey(canonical), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = sessionKey(model.SessionToken(token))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // index may lag a deleted session
		}
		var session model.Session
		if err := json.Unmarshal([]byte(val.(string)), &session); err != nil {
			continue // skip invalid data
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token model.SessionToken) error {
	session, err := s.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}

	canonical := model.CanonicalUsername(session.Username)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.ZRem(ctx, sessionsForUserKey(canonical), string(token))
	_, err = pipe.Exec(ctx)
	return err
}

// Credential operations

func (s *Storage) GetCredentials(ctx context.Context, username string) (*model.Credentials, error) {
	doc, err := s.getUserDoc(ctx, s.client, model.CanonicalUsername(username))
	if err != nil {
		return nil, err
	}
	if doc.Credentials == nil {
		return nil, model.ErrNotFound
	}
	return doc.Credentials, nil
}

// Account operations

func (s *Storage) UsernameExists(ctx context.Context, username string, exceptID model.UserID) (bool, error) {
	doc, err := s.getUserDoc(ctx, s.client, model.CanonicalUsername(username))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if exceptID != "" && doc.User.ID == exceptID {
		return false, nil
	}
	return true, nil
}

func (s *Storage) CorrectlyCasedUsername(ctx context.Context, username string) (string, error) {
	doc, err := s.getUserDoc(ctx, s.client, model.CanonicalUsername(username))
	if err != nil {
		return "", err
	}
	return doc.User.Username, nil
}

func (s *Storage) CreateAccount(ctx context.Context, username string, creds *model.Credentials, slotID model.UserID) error {
	// Learn the slot's current key so the transaction can watch it.
	oldCanonical, err := s.client.Get(ctx, userIDIndexKey(slotID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ErrNotFound
		}
		return err
	}
	newCanonical := model.CanonicalUsername(username)

	return s.watch(ctx, func(tx *redis.Tx) error {
		doc, err := s.getUserDoc(ctx, tx, oldCanonical)
		if err != nil {
			return err
		}
		if doc.User.ID != slotID {
			// Slot was disabled or re-created since the index read.
			return model.ErrNotFound
		}
		if !doc.User.Unfilled {
			return model.ErrUserSlotTaken
		}

		if newCanonical != oldCanonical {
			other, err := s.getUserDoc(ctx, tx, newCanonical)
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				return err
			}
			if err == nil && other.User.ID != slotID {
				return model.ErrAlreadyExists
			}
		}

		doc.User.Username = username
		doc.User.Unfilled = false
		doc.Credentials = creds

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if newCanonical != oldCanonical {
				pipe.Del(ctx, userKey(oldCanonical))
				pipe.SRem(ctx, userSetKey(), oldCanonical)
			}
			pipe.Set(ctx, userKey(newCanonical), data, 0)
			pipe.Set(ctx, userIDIndexKey(slotID), newCanonical, 0)
			pipe.SAdd(ctx, userSetKey(), newCanonical)
			return nil
		})
		return err
	}, userKey(oldCanonical), userKey(newCanonical), userIDIndexKey(slotID))
}

func (s *Storage) CreateSlot(ctx context.Context, permissions model.Permissions, permissionGroup int, tempName string) (model.UserID, error) {
	canonical := model.CanonicalUsername(tempName)
	id := model.UserID(uuid.NewString())

	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, userKey(canonical)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrAlreadyExists
		}

		doc := userDoc{
			User: model.User{
				ID:              id,
				Username:        tempName,
				Unfilled:        true,
				Permissions:     permissions,
				PermissionGroup: permissionGroup,
			},
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(canonical), data, 0)
			pipe.Set(ctx, userIDIndexKey(id), canonical, 0)
			pipe.SAdd(ctx, userSetKey(), canonical)
			return nil
		})
		return err
	}, userKey(canonical))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) DeleteUnfilledByUsername(ctx context.Context, username string) (bool, error) {
	canonical := model.CanonicalUsername(username)
	deleted := false

	err := s.watch(ctx, func(tx *redis.Tx) error {
		doc, err := s.getUserDoc(ctx, tx, canonical)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !doc.User.Unfilled {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey(canonical))
			pipe.Del(ctx, userIDIndexKey(doc.User.ID))
			pipe.SRem(ctx, userSetKey(), canonical)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, userKey(canonical))
	return deleted, err
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	canonicals, err := s.client.SMembers(ctx, userSetKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(canonicals) == 0 {
		return []*model.User{}, nil
	}

	keys := make([]string, len(canonicals))
	for i, canonical := range canonicals {
		keys[i] = userKey(canonical)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		var doc userDoc
		if err := json.Unmarshal([]byte(val.(string)), &doc); err != nil {
			continue
		}
		user := doc.User
		users = append(users, &user)
	}
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	doc, err := s.getUserDoc(ctx, s.client, model.CanonicalUsername(username))
	if err != nil {
		return nil, err
	}
	user := doc.User
	return &user, nil
}

func (s *Storage) UpdatePermissionGroup(ctx context.Context, username string, group int) error {
	return s.updateUser(ctx, username, func(doc *userDoc) {
		doc.User.PermissionGroup = group
	})
}

func (s *Storage) UpdatePermissions(ctx context.Context, username string, permissions model.Permissions) error {
	return s.updateUser(ctx, username, func(doc *userDoc) {
		doc.User.Permissions = permissions
	})
}

func (s *Storage) updateUser(ctx context.Context, username string, mutate func(*userDoc)) error {
	canonical := model.CanonicalUsername(username)

	return s.watch(ctx, func(tx *redis.Tx) error {
		doc, err := s.getUserDoc(ctx, tx, canonical)
		if err != nil {
			return err
		}

		mutate(doc)

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(canonical), data, 0)
			return nil
		})
		return err
	}, userKey(canonical))
}

func (s *Storage) DisableAccount(ctx context.Context, username string) (model.UserID, error) {
	canonical := model.CanonicalUsername(username)
	var newID model.UserID

	err := s.watch(ctx, func(tx *redis.Tx) error {
		doc, err := s.getUserDoc(ctx, tx, canonical)
		if err != nil {
			return err
		}
		if doc.User.Unfilled {
			return model.ErrNotFound
		}

		tokens, err := tx.ZRange(ctx, sessionsForUserKey(canonical), 0, -1).Result()
		if err != nil {
			return err
		}

		oldID := doc.User.ID
		newID = model.UserID(uuid.NewString())
		doc.User.ID = newID
		doc.User.Unfilled = true
		doc.Credentials = nil

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(canonical), data, 0)
			pipe.Del(ctx, userIDIndexKey(oldID))
			pipe.Set(ctx, userIDIndexKey(newID), canonical, 0)
			for _, token := range tokens {
				pipe.Del(ctx, sessionKey(model.SessionToken(token)))
			}
			pipe.Del(ctx, sessionsForUserKey(canonical))
			return nil
		})
		return err
	}, userKey(canonical), sessionsForUserKey(canonical))
	if err != nil {
		return "", err
	}
	return newID, nil
}

// getUserDoc fetches and decodes a user record via any redis command runner
// (the bare client or an open transaction).
func (s *Storage) getUserDoc(ctx context.Context, c redis.Cmdable, canonical string) (*userDoc, error) {
	data, err := c.Get(ctx, userKey(canonical)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	var doc userDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
