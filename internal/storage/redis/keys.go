package redis

import (
	"fmt"

	"github.com/membergate/membergate/internal/model"
)

// Key prefix for all membership data
const keyPrefix = "membergate"

// Key generation functions for each entity type

// userKey returns the Redis key for a user record, keyed by the canonical
// (lowercase) username
func userKey(canonical string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, canonical)
}

// userIDIndexKey returns the Redis key for the user_id -> canonical username index
func userIDIndexKey(id model.UserID) string {
	return fmt.Sprintf("%s:idx:user_id:%s", keyPrefix, id)
}

// userSetKey returns the Redis key for the SET of all canonical usernames
func userSetKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// sessionKey returns the Redis key for a session
func sessionKey(token model.SessionToken) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, token)
}

// sessionsForUserKey returns the Redis key for the ZSET of a user's session
// tokens, scored by creation time
func sessionsForUserKey(canonical string) string {
	return fmt.Sprintf("%s:idx:sessions:%s", keyPrefix, canonical)
}
